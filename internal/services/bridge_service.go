package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/peer-network/peer-backend-sub001/internal/models"
	"github.com/peer-network/peer-backend-sub001/internal/token"
)

// BridgeService moves tokens out of the internal ledger into the bridge
// pool wallet and emits a pacs.008 credit transfer instruction for the
// external settlement side. Fees do not apply to bridge movements; the
// external network charges its own.
type BridgeService struct {
	db       *sql.DB
	redis    *redis.Client
	ledger   *WalletLedgerService
	accounts *SystemAccounts
	now      func() time.Time
}

func NewBridgeService(db *sql.DB, redisClient *redis.Client, ledger *WalletLedgerService, accounts *SystemAccounts) *BridgeService {
	return &BridgeService{
		db:       db,
		redis:    redisClient,
		ledger:   ledger,
		accounts: accounts,
		now:      time.Now,
	}
}

// BridgeOut debits the sender and credits the bridge pool in one atomic
// operation, then queues the settlement instruction.
func (b *BridgeService) BridgeOut(senderID, beneficiary, network string, amount token.Amount) (*models.BridgeExport, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if beneficiary == "" || network == "" {
		return nil, fmt.Errorf("%w: beneficiary and network are required", ErrInvalidAmount)
	}

	operationID := uuid.New().String()
	bridgePool := b.accounts.Account(RoleBridgePool)
	message := fmt.Sprintf("Bridge out to %s on %s", beneficiary, network)

	legs := []Leg{
		{
			AccountID:      senderID,
			CounterpartyID: bridgePool,
			Delta:          amount.Neg(),
			Type:           models.TxTypeBridgeOut,
			Action:         models.ActionDeduct,
			Message:        message,
		},
		{
			AccountID:      bridgePool,
			CounterpartyID: senderID,
			Delta:          amount,
			Type:           models.TxTypeBridgeOut,
			Action:         models.ActionBridge,
			Message:        message,
		},
	}
	if _, err := b.ledger.ApplyEntries(operationID, legs); err != nil {
		return nil, err
	}

	export := &models.BridgeExport{
		OperationID: operationID,
		SenderID:    senderID,
		Beneficiary: beneficiary,
		Network:     network,
		Amount:      amount.String(),
		CreatedAt:   b.now(),
	}

	doc, err := b.createPacs008(export)
	if err != nil {
		return nil, err
	}
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal XML: %w", err)
	}
	export.MessageXML = xml.Header + string(xmlData)

	b.queueExport(export)

	log.Printf("[BRIDGE] %s bridged %s to %s/%s (op %s)",
		senderID, export.Amount, network, beneficiary, operationID)
	return export, nil
}

// createPacs008 maps a bridge export to a FIToFICustomerCreditTransfer.
// The bridge pool acts as the instructing agent; the external network id
// rides in the clearing-system member field.
func (b *BridgeService) createPacs008(export *models.BridgeExport) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	value, err := strconv.ParseFloat(export.Amount, 64)
	if err != nil {
		return nil, fmt.Errorf("bridge amount: %w", err)
	}

	msgID := uuid.New().String()
	creDtTm := export.CreatedAt
	settlementDate := export.CreatedAt

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode("XXX"),
				Value: value,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(export.OperationID)}[0],
					EndToEndId: common.Max35Text(export.OperationID),
					TxId:       &[]common.Max35Text{common.Max35Text(export.OperationID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode("XXX"),
					Value: value,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier("PEERNETW")}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(export.SenderID)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(export.Network),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(export.Beneficiary)}[0],
				},
			},
		},
	}

	return doc, nil
}

// createPacs002 acknowledges a processed bridge export back to the queue
// consumer (ACCP on success, RJCT when the payout failed externally).
func (b *BridgeService) createPacs002(operationID, status string) *pacs_v08.FIToFIPaymentStatusReportV08 {
	return &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(uuid.New().String()),
			CreDtTm: common.ISODateTime(b.now()),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{
			{
				OrgnlInstrId:    &[]common.Max35Text{common.Max35Text(operationID)}[0],
				OrgnlEndToEndId: &[]common.Max35Text{common.Max35Text(operationID)}[0],
				OrgnlTxId:       &[]common.Max35Text{common.Max35Text(operationID)}[0],
				TxSts:           &[]pacs_v08.ExternalPaymentTransactionStatus1Code{pacs_v08.ExternalPaymentTransactionStatus1Code(status)}[0],
			},
		},
	}
}

// AcknowledgeExport emits a pacs.002 status report for a completed export.
func (b *BridgeService) AcknowledgeExport(operationID, status string) (string, error) {
	doc := b.createPacs002(operationID, status)
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}

func (b *BridgeService) queueExport(export *models.BridgeExport) {
	if b.redis == nil {
		return
	}
	data, err := json.Marshal(export)
	if err != nil {
		log.Printf("[BRIDGE] Failed to marshal export %s: %v", export.OperationID, err)
		return
	}
	if err := b.redis.RPush(context.Background(), "bridge_exports", data).Err(); err != nil {
		log.Printf("[BRIDGE] Failed to queue export %s: %v", export.OperationID, err)
	}
}

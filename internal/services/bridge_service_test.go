package services

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/peer-network/peer-backend-sub001/internal/models"
	"github.com/peer-network/peer-backend-sub001/internal/token"
)

func newTestBridgeService(t *testing.T, db *sql.DB) *BridgeService {
	t.Helper()
	accounts, err := NewSystemAccounts(testPolicy().Accounts)
	assert.NoError(t, err)
	return NewBridgeService(db, nil, NewWalletLedgerService(db), accounts)
}

func TestBridgeService_BridgeOut(t *testing.T) {
	t.Run("moves tokens into the bridge pool", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := newTestBridgeService(t, db)
		amount := token.MustFromDecimal("25")

		mock.ExpectBegin()

		mock.ExpectQuery(walletSelectRe).WithArgs(testSender).
			WillReturnRows(walletRow("100", 1))
		mock.ExpectQuery(walletSelectRe).WithArgs(testBridgePool).
			WillReturnRows(walletRow("0", 1))

		mock.ExpectExec(entryInsertRe).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), testSender, testBridgePool,
				"-25", amount.Neg().QString(),
				models.TxTypeBridgeOut, models.ActionDeduct, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(entryInsertRe).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), testBridgePool, testSender,
				"25", amount.QString(),
				models.TxTypeBridgeOut, models.ActionBridge, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec(walletUpdateRe).
			WithArgs("75", token.MustFromDecimal("75").QString(), sqlmock.AnyArg(), testSender, 1).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(walletUpdateRe).
			WithArgs("25", amount.QString(), sqlmock.AnyArg(), testBridgePool, 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		export, err := service.BridgeOut(testSender, "0xabc123", "base", amount)
		assert.NoError(t, err)
		assert.Equal(t, "25", export.Amount)
		assert.Equal(t, "base", export.Network)
		assert.Contains(t, export.MessageXML, "<?xml")
		assert.Contains(t, export.MessageXML, export.OperationID)
		assert.Contains(t, export.MessageXML, "0xabc123")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects non positive amounts", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := newTestBridgeService(t, db)

		_, err = service.BridgeOut(testSender, "0xabc123", "base", token.Zero())
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("requires beneficiary and network", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := newTestBridgeService(t, db)

		_, err = service.BridgeOut(testSender, "", "base", token.MustFromDecimal("1"))
		assert.Error(t, err)
		_, err = service.BridgeOut(testSender, "0xabc123", "", token.MustFromDecimal("1"))
		assert.Error(t, err)
	})
}

func TestBridgeService_AcknowledgeExport(t *testing.T) {
	service := newTestBridgeServiceNoDB(t)

	xmlDoc, err := service.AcknowledgeExport("op-1", "ACCP")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(xmlDoc, "<?xml"))
	assert.Contains(t, xmlDoc, "op-1")
	assert.Contains(t, xmlDoc, "ACCP")
}

func newTestBridgeServiceNoDB(t *testing.T) *BridgeService {
	t.Helper()
	accounts, err := NewSystemAccounts(testPolicy().Accounts)
	assert.NoError(t, err)
	return NewBridgeService(nil, nil, nil, accounts)
}

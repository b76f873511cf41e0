package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/peer-network/peer-backend-sub001/internal/config"
	"github.com/peer-network/peer-backend-sub001/internal/models"
	"github.com/peer-network/peer-backend-sub001/internal/token"
)

// Ids chosen so wallet lock order matches their numeric prefixes.
const (
	testSender      = "11111111-1111-4111-8111-111111111111"
	testRecipient   = "22222222-2222-4222-8222-222222222222"
	testPool        = "33333333-3333-4333-8333-333333333333"
	testPeer        = "44444444-4444-4444-8444-444444444444"
	testBurn        = "55555555-5555-4555-8555-555555555555"
	testBridgePool  = "66666666-6666-4666-8666-666666666666"
	testInviterBank = "77777777-7777-4777-8777-777777777777"
	testMintAccount = "88888888-8888-4888-8888-888888888888"
	testInviter     = "99999999-9999-4999-8999-999999999999"
)

func testPolicy() *config.Tokenomics {
	return &config.Tokenomics{
		PoolFee:         "0.01",
		PeerFee:         "0.02",
		BurnFee:         "0.01",
		InviterFee:      "0.01",
		DailyMintBudget: "5000",
		GemsReturns: map[string]string{
			"view": "0.25", "like": "5", "dislike": "-3", "comment": "2", "post": "0",
		},
		Accounts: config.SystemAccountIDs{
			Pool:        testPool,
			Peer:        testPeer,
			Burn:        testBurn,
			BridgePool:  testBridgePool,
			InviterBank: testInviterBank,
			Mint:        testMintAccount,
		},
	}
}

func newTestTransferService(t *testing.T, db *sql.DB) *TransferService {
	t.Helper()
	accounts, err := NewSystemAccounts(testPolicy().Accounts)
	assert.NoError(t, err)
	service, err := NewTransferService(db, nil, NewWalletLedgerService(db), accounts, testPolicy())
	assert.NoError(t, err)
	return service
}

func expectUserRow(mock sqlmock.Sqlmock, uid, username string, status int, invited string) {
	mock.ExpectQuery(`SELECT uid, username, status, COALESCE\(invited, ''\) FROM users WHERE uid = \$1`).
		WithArgs(uid).
		WillReturnRows(sqlmock.NewRows([]string{"uid", "username", "status", "invited"}).
			AddRow(uid, username, status, invited))
}

func TestTransferService_Preconditions(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newTestTransferService(t, db)
	amount := token.MustFromDecimal("10")

	t.Run("self transfer", func(t *testing.T) {
		_, err := service.Transfer(testSender, testSender, amount, "", "")
		assert.ErrorIs(t, err, ErrSelfTransfer)
	})

	t.Run("system account recipient", func(t *testing.T) {
		_, err := service.Transfer(testSender, testPool, amount, "", "")
		assert.ErrorIs(t, err, ErrUnauthorizedRecipient)
	})

	t.Run("non positive amount", func(t *testing.T) {
		_, err := service.Transfer(testSender, testRecipient, token.Zero(), "", "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestTransferService_Transfer(t *testing.T) {
	t.Run("debits amount plus fees without inviter", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := newTestTransferService(t, db)
		amount := token.MustFromDecimal("10")
		opID := "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"

		mock.ExpectBegin()

		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM transactions WHERE operationid = \$1\)`).
			WithArgs(opID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		expectUserRow(mock, testRecipient, "bob", 0, "")
		expectUserRow(mock, testSender, "alice", 0, "")

		mock.ExpectQuery(walletSelectRe).WithArgs(testSender).
			WillReturnRows(walletRow("50", 1))
		mock.ExpectQuery(walletSelectRe).WithArgs(testRecipient).
			WillReturnRows(walletRow("0", 1))
		mock.ExpectQuery(walletSelectRe).WithArgs(testPool).
			WillReturnRows(walletRow("0", 1))
		mock.ExpectQuery(walletSelectRe).WithArgs(testPeer).
			WillReturnRows(walletRow("0", 1))
		mock.ExpectQuery(walletSelectRe).WithArgs(testBurn).
			WillReturnRows(walletRow("0", 1))

		// The raw q column values carry truncation at the last internal bit,
		// so expectations pin the decimal strings and accept any q.
		mock.ExpectExec(entryInsertRe).
			WithArgs(sqlmock.AnyArg(), opID, testSender, testRecipient,
				"-10.4", sqlmock.AnyArg(),
				models.TxTypeTransfer, models.ActionDeduct, nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(entryInsertRe).
			WithArgs(sqlmock.AnyArg(), opID, testRecipient, testSender,
				"10", amount.QString(),
				models.TxTypeTransfer, models.ActionCredit, nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(entryInsertRe).
			WithArgs(sqlmock.AnyArg(), opID, testPool, testSender,
				"0.1", sqlmock.AnyArg(),
				models.TxTypePoolFee, models.ActionPoolFee, nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(entryInsertRe).
			WithArgs(sqlmock.AnyArg(), opID, testPeer, testSender,
				"0.2", sqlmock.AnyArg(),
				models.TxTypePeerFee, models.ActionPeerFee, nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(entryInsertRe).
			WithArgs(sqlmock.AnyArg(), opID, testBurn, testSender,
				"0.1", sqlmock.AnyArg(),
				models.TxTypeBurnFee, models.ActionBurnFee, nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		for _, update := range []struct {
			account string
			balance string
		}{
			{testSender, "39.6"},
			{testRecipient, "10"},
			{testPool, "0.1"},
			{testPeer, "0.2"},
			{testBurn, "0.1"},
		} {
			mock.ExpectExec(walletUpdateRe).
				WithArgs(update.balance, sqlmock.AnyArg(),
					sqlmock.AnyArg(), update.account, 1).
				WillReturnResult(sqlmock.NewResult(1, 1))
		}

		mock.ExpectCommit()

		receipt, err := service.Transfer(testSender, testRecipient, amount, "", opID)
		assert.NoError(t, err)
		assert.Equal(t, opID, receipt.OperationID)
		assert.Equal(t, "10", receipt.TokensSent)
		assert.Equal(t, "10.4", receipt.TokensDebited)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inviter fee applies when sender has an active inviter", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := newTestTransferService(t, db)
		amount := token.MustFromDecimal("10")
		opID := "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"

		mock.ExpectBegin()

		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM transactions WHERE operationid = \$1\)`).
			WithArgs(opID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		expectUserRow(mock, testRecipient, "bob", 0, "")
		expectUserRow(mock, testSender, "alice", 0, testInviter)
		expectUserRow(mock, testInviter, "carol", 0, "")

		for _, account := range []string{
			testSender, testRecipient, testPool, testPeer, testBurn, testInviter,
		} {
			balance := "0"
			if account == testSender {
				balance = "50"
			}
			mock.ExpectQuery(walletSelectRe).WithArgs(account).
				WillReturnRows(walletRow(balance, 1))
		}

		for i := 0; i < 6; i++ {
			mock.ExpectExec(entryInsertRe).WillReturnResult(sqlmock.NewResult(1, 1))
		}
		for i := 0; i < 6; i++ {
			mock.ExpectExec(walletUpdateRe).WillReturnResult(sqlmock.NewResult(1, 1))
		}

		mock.ExpectCommit()

		receipt, err := service.Transfer(testSender, testRecipient, amount, "thanks", opID)
		assert.NoError(t, err)
		assert.Equal(t, "10.5", receipt.TokensDebited)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown recipient aborts before any write", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := newTestTransferService(t, db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM transactions WHERE operationid = \$1\)`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`SELECT uid, username, status, COALESCE\(invited, ''\) FROM users WHERE uid = \$1`).
			WithArgs(testRecipient).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err = service.Transfer(testSender, testRecipient, token.MustFromDecimal("10"), "", "")
		assert.ErrorIs(t, err, ErrUnknownRecipient)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deleted recipient rejected", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := newTestTransferService(t, db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM transactions WHERE operationid = \$1\)`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		expectUserRow(mock, testRecipient, "bob", models.StatusDeleted, "")
		mock.ExpectRollback()

		_, err = service.Transfer(testSender, testRecipient, token.MustFromDecimal("10"), "", "")
		assert.ErrorIs(t, err, ErrUnknownRecipient)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retry of committed operation replays the receipt", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := newTestTransferService(t, db)
		opID := "cccccccc-cccc-4ccc-8ccc-cccccccccccc"
		createdAt := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM transactions WHERE operationid = \$1\)`).
			WithArgs(opID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery(`SELECT userid, fromid, amount::text, transferaction, createdat\s+FROM transactions WHERE operationid = \$1`).
			WithArgs(opID).
			WillReturnRows(sqlmock.NewRows([]string{"userid", "fromid", "amount", "transferaction", "createdat"}).
				AddRow(testSender, testRecipient, "-10.4", models.ActionDeduct, createdAt).
				AddRow(testRecipient, testSender, "10", models.ActionCredit, createdAt))
		mock.ExpectRollback()

		receipt, err := service.Transfer(testSender, testRecipient, token.MustFromDecimal("10"), "", opID)
		assert.NoError(t, err)
		assert.Equal(t, opID, receipt.OperationID)
		assert.Equal(t, testSender, receipt.SenderID)
		assert.Equal(t, testRecipient, receipt.RecipientID)
		assert.Equal(t, "10", receipt.TokensSent)
		assert.Equal(t, "10.4", receipt.TokensDebited)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransferService_activeInviter(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newTestTransferService(t, db)

	t.Run("deleted inviter collects no fee", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()
		expectUserRow(mock, testInviter, "carol", models.StatusDeleted, "")

		inviterID, err := service.activeInviter(tx, &models.User{
			UID: testSender, Invited: testInviter,
		})
		assert.NoError(t, err)
		assert.Empty(t, inviterID)
	})

	t.Run("missing inviter row means no fee", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()
		mock.ExpectQuery(`SELECT uid, username, status, COALESCE\(invited, ''\) FROM users WHERE uid = \$1`).
			WithArgs(testInviter).
			WillReturnError(sql.ErrNoRows)

		inviterID, err := service.activeInviter(tx, &models.User{
			UID: testSender, Invited: testInviter,
		})
		assert.NoError(t, err)
		assert.Empty(t, inviterID)
	})

	t.Run("no inviter configured", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		inviterID, err := service.activeInviter(tx, &models.User{UID: testSender})
		assert.NoError(t, err)
		assert.Empty(t, inviterID)
	})
}

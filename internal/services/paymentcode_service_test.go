package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/peer-network/peer-backend-sub001/internal/token"
)

func TestPaymentCodeService_CreateCode(t *testing.T) {
	client, mock := redismock.NewClientMock()
	service := NewPaymentCodeService(client)

	t.Run("issues a single use code", func(t *testing.T) {
		mock.Regexp().ExpectSet(`paycode:.+`, `.+`, 5*time.Minute).SetVal("OK")

		code, image, err := service.CreateCode(context.Background(), testRecipient,
			token.MustFromDecimal("10"), "lunch")
		assert.NoError(t, err)
		assert.NotEmpty(t, code)
		assert.NotEmpty(t, image)

		// The code itself decodes to the request payload.
		payload, err := base64.URLEncoding.DecodeString(code)
		assert.NoError(t, err)
		var req PaymentRequest
		assert.NoError(t, json.Unmarshal(payload, &req))
		assert.Equal(t, testRecipient, req.RecipientID)
		assert.Equal(t, "10", req.Amount)
		assert.Equal(t, "lunch", req.Message)
		assert.NotEmpty(t, req.Nonce)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects non positive amounts", func(t *testing.T) {
		_, _, err := service.CreateCode(context.Background(), testRecipient, token.Zero(), "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("unavailable without redis", func(t *testing.T) {
		offline := NewPaymentCodeService(nil)

		_, _, err := offline.CreateCode(context.Background(), testRecipient,
			token.MustFromDecimal("1"), "")
		assert.ErrorIs(t, err, ErrStorageUnavailable)

		_, err = offline.ResolveCode(context.Background(), "any")
		assert.ErrorIs(t, err, ErrStorageUnavailable)
	})
}

func TestPaymentCodeService_ResolveCode(t *testing.T) {
	client, mock := redismock.NewClientMock()
	service := NewPaymentCodeService(client)

	t.Run("resolves and consumes the code", func(t *testing.T) {
		req := PaymentRequest{
			RecipientID: testRecipient,
			Amount:      "10.4",
			Timestamp:   time.Now().Unix(),
			Nonce:       "n1",
		}
		payload, err := json.Marshal(req)
		assert.NoError(t, err)
		code := base64.URLEncoding.EncodeToString(payload)

		mock.ExpectGet("paycode:" + code).SetVal(string(payload))
		mock.ExpectDel("paycode:" + code).SetVal(1)

		resolved, err := service.ResolveCode(context.Background(), code)
		assert.NoError(t, err)
		assert.Equal(t, testRecipient, resolved.RecipientID)
		assert.Equal(t, "10.4", resolved.Amount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired code fails", func(t *testing.T) {
		mock.ExpectGet("paycode:expired").RedisNil()

		_, err := service.ResolveCode(context.Background(), "expired")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "expired")
	})
}

package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/peer-network/peer-backend-sub001/internal/token"
	"github.com/skip2/go-qrcode"
)

// PaymentCodeService issues short-lived scannable payment requests. A code
// binds a recipient and an amount; scanning it resolves the pair so the
// payer can start a transfer without typing either.
type PaymentCodeService struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewPaymentCodeService(redisClient *redis.Client) *PaymentCodeService {
	return &PaymentCodeService{
		redis: redisClient,
		ttl:   5 * time.Minute,
	}
}

// PaymentRequest is the payload encoded into a payment code.
type PaymentRequest struct {
	RecipientID string `json:"recipientId"`
	Amount      string `json:"amount"`
	Message     string `json:"message,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	Nonce       string `json:"nonce"`
}

// CreateCode issues a payment code for the recipient and amount. Returns the
// opaque code and a base64 PNG of its QR rendering.
func (s *PaymentCodeService) CreateCode(ctx context.Context, recipientID string, amount token.Amount, message string) (string, string, error) {
	if amount.Sign() <= 0 {
		return "", "", ErrInvalidAmount
	}
	if s.redis == nil {
		return "", "", fmt.Errorf("payment code store: %w", ErrStorageUnavailable)
	}

	req := PaymentRequest{
		RecipientID: recipientID,
		Amount:      amount.String(),
		Message:     message,
		Timestamp:   time.Now().Unix(),
		Nonce:       generateNonce(),
	}
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", "", err
	}

	code := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("paycode:%s", code)
	if err := s.redis.Set(ctx, key, jsonData, s.ttl).Err(); err != nil {
		return "", "", storageErr("payment code store", err)
	}

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}
	image := base64.StdEncoding.EncodeToString(buf.Bytes())

	return code, image, nil
}

// ResolveCode redeems a payment code. Codes are single use; resolving one
// deletes it.
func (s *PaymentCodeService) ResolveCode(ctx context.Context, code string) (*PaymentRequest, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("payment code read: %w", ErrStorageUnavailable)
	}
	key := fmt.Sprintf("paycode:%s", code)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired payment code")
	}
	if err != nil {
		return nil, storageErr("payment code read", err)
	}

	var req PaymentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("corrupt payment code payload: %w", err)
	}

	s.redis.Del(ctx, key)

	return &req, nil
}

func generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

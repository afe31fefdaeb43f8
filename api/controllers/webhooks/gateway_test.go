package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/glowmart/storefront-backend/internal/payments"
	gatewaywebhook "github.com/glowmart/storefront-backend/internal/webhooks/gateway"
	"github.com/glowmart/storefront-backend/pkg/config"
)

func newTestVerifier(t *testing.T) *payments.GatewayClient {
	t.Helper()
	client, err := payments.NewGatewayClient(config.PaymentConfig{
		BaseURL:     "https://gateway.test",
		PartnerCode: "GLOWMART",
		AccessKey:   "access",
		SecretKey:   "secret",
	})
	if err != nil {
		t.Fatalf("gateway client: %v", err)
	}
	return client
}

func buildCallback(t *testing.T, resultCode int) ([]byte, *gatewaywebhook.GatewayCallback) {
	t.Helper()
	callback := &gatewaywebhook.GatewayCallback{
		PartnerCode: "GLOWMART",
		OrderRef:    "GM-" + uuid.NewString(),
		RequestRef:  uuid.NewString(),
		Amount:      8000,
		ResultCode:  resultCode,
		TransID:     "288200001",
	}
	raw := fmt.Sprintf("accessKey=%s&amount=%d&orderId=%s&partnerCode=%s&requestId=%s&resultCode=%d&transId=%s",
		"access", callback.Amount, callback.OrderRef, "GLOWMART", callback.RequestRef, callback.ResultCode, callback.TransID)
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(raw))
	callback.Signature = hex.EncodeToString(mac.Sum(nil))

	payload, err := json.Marshal(callback)
	if err != nil {
		t.Fatalf("marshal callback: %v", err)
	}
	return payload, callback
}

func TestGatewayWebhook_SuccessAndIdempotent(t *testing.T) {
	payload, _ := buildCallback(t, 0)
	service := &fakeGatewayWebhookService{}
	guard, err := gatewaywebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "gateway:callback")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := GatewayWebhook(service, newTestVerifier(t), guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d", rec2.Code)
	}
	if service.calls != 1 {
		t.Fatalf("duplicate should not increment calls, got %d", service.calls)
	}
}

func TestGatewayWebhook_InvalidSignature(t *testing.T) {
	_, callback := buildCallback(t, 0)
	callback.Signature = "forged"
	tampered, err := json.Marshal(callback)
	if err != nil {
		t.Fatalf("marshal callback: %v", err)
	}

	service := &fakeGatewayWebhookService{}
	guard, err := gatewaywebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "gateway:callback")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := GatewayWebhook(service, newTestVerifier(t), guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(tampered))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for invalid signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on invalid signature")
	}
}

func TestGatewayWebhook_ReleasesGuardOnFailure(t *testing.T) {
	payload, _ := buildCallback(t, 0)
	service := &fakeGatewayWebhookService{err: fmt.Errorf("db down")}
	store := newInMemoryStore()
	guard, err := gatewaywebhook.NewIdempotencyGuard(store, time.Minute, "gateway:callback")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := GatewayWebhook(service, newTestVerifier(t), guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		t.Fatalf("expected error status, got 200")
	}

	// A retry after the marker is released reaches the service again.
	service.err = nil
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on retry, got %d", rec2.Code)
	}
	if service.calls != 2 {
		t.Fatalf("expected 2 service calls, got %d", service.calls)
	}
}

type fakeGatewayWebhookService struct {
	calls int
	err   error
}

func (f *fakeGatewayWebhookService) HandleCallback(ctx context.Context, callback *gatewaywebhook.GatewayCallback) error {
	f.calls++
	return f.err
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: make(map[string]string)}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("sf:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

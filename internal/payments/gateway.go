package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/glowmart/storefront-backend/pkg/config"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
)

const (
	createPath                = "/v2/gateway/api/create"
	queryPath                 = "/v2/gateway/api/query"
	responseBodyLimit   int64 = 4096
	resultCodeSuccess         = 0
	resultCodePending         = 1000
	resultCodeUserAbort       = 1003
)

var errGatewayNotConfigured = errors.New("payment gateway credentials are required")

// GatewayTransaction is the normalized result of a gateway status query.
type GatewayTransaction struct {
	OrderRef      string
	RequestRef    string
	TransactionID string
	AmountCents   int
	ResultCode    int
	Message       string
}

// Paid reports whether the gateway settled the transaction.
func (t GatewayTransaction) Paid() bool {
	return t.ResultCode == resultCodeSuccess
}

// Gateway queries the payment provider for transaction state.
type Gateway interface {
	QueryTransaction(ctx context.Context, orderRef, requestRef string) (*GatewayTransaction, error)
}

// GatewayClient talks to the hosted payment gateway over HTTPS. Every request
// is HMAC-signed with the partner secret; responses are never trusted without
// a matching signature check on callbacks.
type GatewayClient struct {
	httpClient  *http.Client
	baseURL     string
	partnerCode string
	accessKey   string
	secretKey   string
}

// GatewayOption configures optional client behavior.
type GatewayOption func(*GatewayClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(c *GatewayClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured gateway base URL.
func WithBaseURL(baseURL string) GatewayOption {
	return func(c *GatewayClient) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewGatewayClient builds the gateway client from payment configuration.
func NewGatewayClient(cfg config.PaymentConfig, opts ...GatewayOption) (*GatewayClient, error) {
	if strings.TrimSpace(cfg.PartnerCode) == "" ||
		strings.TrimSpace(cfg.AccessKey) == "" ||
		strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errGatewayNotConfigured
	}

	client := &GatewayClient{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		partnerCode: cfg.PartnerCode,
		accessKey:   cfg.AccessKey,
		secretKey:   cfg.SecretKey,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.baseURL == "" {
		return nil, errors.New("payment gateway base url is required")
	}
	return client, nil
}

type queryRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	OrderID     string `json:"orderId"`
	Signature   string `json:"signature"`
	Lang        string `json:"lang"`
}

type queryResponse struct {
	PartnerCode string `json:"partnerCode"`
	OrderID     string `json:"orderId"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	TransID     int64  `json:"transId"`
	ResultCode  int    `json:"resultCode"`
	Message     string `json:"message"`
}

// QueryTransaction asks the gateway for the authoritative state of one
// transaction. Client-supplied success callbacks are never trusted; this is
// the only source of a PAID verdict.
func (c *GatewayClient) QueryTransaction(ctx context.Context, orderRef, requestRef string) (*GatewayTransaction, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "payment gateway client not configured")
	}
	if strings.TrimSpace(orderRef) == "" || strings.TrimSpace(requestRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order and request refs are required")
	}

	req := queryRequest{
		PartnerCode: c.partnerCode,
		RequestID:   requestRef,
		OrderID:     orderRef,
		Signature:   c.signQuery(orderRef, requestRef),
		Lang:        "en",
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "marshal gateway query")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+queryPath, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "build gateway query")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "execute gateway query")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"gateway query failed")
	}

	var apiResp queryResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseBodyLimit)).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode gateway response")
	}

	return &GatewayTransaction{
		OrderRef:      apiResp.OrderID,
		RequestRef:    apiResp.RequestID,
		TransactionID: fmt.Sprintf("%d", apiResp.TransID),
		AmountCents:   int(apiResp.Amount),
		ResultCode:    apiResp.ResultCode,
		Message:       apiResp.Message,
	}, nil
}

type createRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	OrderInfo   string `json:"orderInfo"`
	RequestType string `json:"requestType"`
	Signature   string `json:"signature"`
	Lang        string `json:"lang"`
}

type createResponse struct {
	PayURL     string `json:"payUrl"`
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
}

// CreatePaymentRequest registers a payment intent with the gateway and
// returns the hosted payment page URL the client is redirected to.
func (c *GatewayClient) CreatePaymentRequest(ctx context.Context, orderRef, requestRef string, amountCents int) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeGateway, "payment gateway client not configured")
	}
	if strings.TrimSpace(orderRef) == "" || strings.TrimSpace(requestRef) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "gateway order and request refs are required")
	}
	if amountCents <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	req := createRequest{
		PartnerCode: c.partnerCode,
		RequestID:   requestRef,
		OrderID:     orderRef,
		Amount:      int64(amountCents),
		OrderInfo:   "GlowMart order " + orderRef,
		RequestType: "captureWallet",
		Signature:   c.signCreate(orderRef, requestRef, int64(amountCents)),
		Lang:        "en",
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeGateway, err, "marshal gateway create")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createPath, bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeGateway, err, "build gateway create")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeGateway, err, "execute gateway create")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeGateway,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"gateway create failed")
	}

	var apiResp createResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseBodyLimit)).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode gateway response")
	}
	if apiResp.ResultCode != resultCodeSuccess {
		return "", pkgerrors.New(pkgerrors.CodeGateway,
			fmt.Sprintf("gateway rejected payment request: %s", apiResp.Message))
	}
	if strings.TrimSpace(apiResp.PayURL) == "" {
		return "", pkgerrors.New(pkgerrors.CodeGateway, "gateway returned no payment url")
	}
	return apiResp.PayURL, nil
}

func (c *GatewayClient) signCreate(orderRef, requestRef string, amount int64) string {
	raw := fmt.Sprintf("accessKey=%s&amount=%d&orderId=%s&partnerCode=%s&requestId=%s",
		c.accessKey, amount, orderRef, c.partnerCode, requestRef)
	return hmacHex(c.secretKey, raw)
}

func (c *GatewayClient) signQuery(orderRef, requestRef string) string {
	raw := fmt.Sprintf("accessKey=%s&orderId=%s&partnerCode=%s&requestId=%s",
		c.accessKey, orderRef, c.partnerCode, requestRef)
	return hmacHex(c.secretKey, raw)
}

// CallbackFields is the subset of webhook payload fields covered by the
// gateway's signature.
type CallbackFields struct {
	Amount     int64
	OrderRef   string
	RequestRef string
	ResultCode int
	TransID    string
}

// VerifyCallbackSignature recomputes the HMAC over the callback fields and
// compares it in constant time.
func (c *GatewayClient) VerifyCallbackSignature(fields CallbackFields, signature string) bool {
	if c == nil || signature == "" {
		return false
	}
	raw := fmt.Sprintf("accessKey=%s&amount=%d&orderId=%s&partnerCode=%s&requestId=%s&resultCode=%d&transId=%s",
		c.accessKey, fields.Amount, fields.OrderRef, c.partnerCode, fields.RequestRef, fields.ResultCode, fields.TransID)
	expected := hmacHex(c.secretKey, raw)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func hmacHex(secret, raw string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

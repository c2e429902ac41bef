package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderRequest asks a gateway to open an order.
type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
}

// Gateway is a payment provider.
type Gateway interface {
	Name() string
	// KeyID is the public key the client checkout needs.
	KeyID() string
	CreateOrder(ctx context.Context, req OrderRequest) (string, error)
	Verify(orderID, paymentID, signature string) bool
}

// LocalGateway issues orders in process and verifies signatures made with Sign.
// Intended for dev and tests.
type LocalGateway struct {
	Secret string
}

func (g LocalGateway) Name() string  { return "local" }
func (g LocalGateway) KeyID() string { return "local" }

func (g LocalGateway) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Amount <= 0 {
		return "", errors.New("amount must be positive")
	}
	return "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14], nil
}

func (g LocalGateway) Verify(orderID, paymentID, signature string) bool {
	return VerifySignature(g.Secret, orderID, paymentID, signature)
}

const razorpayBaseURL = "https://api.razorpay.com"

// RazorpayGateway creates orders through the Razorpay REST API.
type RazorpayGateway struct {
	keyID      string
	secret     string
	baseURL    string
	httpClient *http.Client
}

// NewRazorpayGateway constructs a gateway authenticating with keyID and secret.
func NewRazorpayGateway(keyID, secret string) (*RazorpayGateway, error) {
	if strings.TrimSpace(keyID) == "" || strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("PAYMENT_KEY_ID and PAYMENT_KEY_SECRET are required for razorpay")
	}
	return &RazorpayGateway{
		keyID:      keyID,
		secret:     secret,
		baseURL:    razorpayBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *RazorpayGateway) Name() string  { return "razorpay" }
func (g *RazorpayGateway) KeyID() string { return g.keyID }

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	payload, err := json.Marshal(razorpayOrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    map[string]string{"jobId": req.Receipt},
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.SetBasicAuth(g.keyID, g.secret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("razorpay request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var parsed razorpayOrderResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("razorpay response parse: %w", err)
	}
	if resp.StatusCode >= 300 || parsed.Error != nil {
		if parsed.Error != nil {
			return "", fmt.Errorf("razorpay error %d: %s (%s)", resp.StatusCode, parsed.Error.Description, parsed.Error.Code)
		}
		return "", fmt.Errorf("razorpay error %d", resp.StatusCode)
	}
	if parsed.ID == "" {
		return "", errors.New("razorpay response missing order id")
	}
	return parsed.ID, nil
}

func (g *RazorpayGateway) Verify(orderID, paymentID, signature string) bool {
	return VerifySignature(g.secret, orderID, paymentID, signature)
}

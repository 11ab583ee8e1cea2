package upi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zetalvx/mediagate/internal/infra/httpclient"
	paymentsvc "github.com/zetalvx/mediagate/internal/services/payments"
)

// ErrUnavailable covers transport failures and provider-side errors: the
// settlement verdict is unknown, not failed.
var ErrUnavailable = errors.New("payment provider unavailable")

type Config struct {
	BaseURL    string
	MerchantID string
	SaltKey    string
	SaltIndex  string
	Timeout    time.Duration
}

// Client polls a PhonePe-style transaction status endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("payment base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpclient.New(cfg.Timeout),
	}, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

// CheckStatus performs exactly one bounded status query. A non-2xx response or
// transport error maps to ErrUnavailable; a 200 with an unrecognized status is
// reported as unknown without error.
func (c *Client) CheckStatus(ctx context.Context, ref string) (paymentsvc.ProviderStatus, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return paymentsvc.ProviderUnknown, fmt.Errorf("transaction ref is required")
	}

	url := fmt.Sprintf("%s/v3/transaction/%s/status", c.cfg.BaseURL, ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return paymentsvc.ProviderUnknown, fmt.Errorf("create status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", c.verifyHeader(ref))
	if c.cfg.MerchantID != "" {
		req.Header.Set("X-MERCHANT-ID", c.cfg.MerchantID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return paymentsvc.ProviderUnknown, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return paymentsvc.ProviderUnknown, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var payload statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return paymentsvc.ProviderUnknown, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	switch strings.ToLower(strings.TrimSpace(payload.Status)) {
	case "captured", "settled":
		return paymentsvc.ProviderCaptured, nil
	case "failed":
		return paymentsvc.ProviderFailed, nil
	default:
		return paymentsvc.ProviderUnknown, nil
	}
}

func (c *Client) verifyHeader(ref string) string {
	sum := sha256.Sum256([]byte(ref + c.cfg.SaltKey))
	return hex.EncodeToString(sum[:]) + "###" + c.cfg.SaltIndex
}

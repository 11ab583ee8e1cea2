package upi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	paymentsvc "github.com/zetalvx/mediagate/internal/services/payments"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:    server.URL,
		MerchantID: "M1",
		SaltKey:    "salt",
		SaltIndex:  "1",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestCheckStatusCaptured(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/transaction/txn_7_abc/status" {
			t.Errorf("path = %s", r.URL.Path)
		}
		sum := sha256.Sum256([]byte("txn_7_abc" + "salt"))
		want := hex.EncodeToString(sum[:]) + "###1"
		if got := r.Header.Get("X-VERIFY"); got != want {
			t.Errorf("X-VERIFY = %q, want %q", got, want)
		}
		if got := r.Header.Get("X-MERCHANT-ID"); got != "M1" {
			t.Errorf("X-MERCHANT-ID = %q, want M1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"CAPTURED"}`))
	})

	status, err := client.CheckStatus(context.Background(), "txn_7_abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != paymentsvc.ProviderCaptured {
		t.Fatalf("status = %s, want captured", status)
	}
}

func TestCheckStatusFailed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"failed"}`))
	})

	status, err := client.CheckStatus(context.Background(), "txn_7_abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != paymentsvc.ProviderFailed {
		t.Fatalf("status = %s, want failed", status)
	}
}

func TestCheckStatusUnrecognizedIsUnknown(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"processing"}`))
	})

	status, err := client.CheckStatus(context.Background(), "txn_7_abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != paymentsvc.ProviderUnknown {
		t.Fatalf("status = %s, want unknown", status)
	}
}

func TestCheckStatusServerErrorIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	status, err := client.CheckStatus(context.Background(), "txn_7_abc")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if status != paymentsvc.ProviderUnknown {
		t.Fatalf("status = %s, want unknown on provider error", status)
	}
}

func TestCheckStatusTransportErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client, err := NewClient(Config{BaseURL: server.URL, SaltKey: "salt", SaltIndex: "1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	server.Close()

	status, err := client.CheckStatus(context.Background(), "txn_7_abc")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if status != paymentsvc.ProviderUnknown {
		t.Fatalf("status = %s, want unknown on transport error", status)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for empty base url")
	}
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	xerrors "Nova-Assistant/internal/errors"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error when base url is missing")
	}
}

func TestInvokeSuccess(t *testing.T) {
	var captured Request

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tools/execute" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"status": "sent"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := client.Invoke(context.Background(), Request{
		Tool:   "gmail",
		Action: "send_email",
		Args:   map[string]any{"to": "team@example.com"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["status"] != "sent" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if captured.Tool != "gmail" || captured.Action != "send_email" {
		t.Fatalf("unexpected captured request: %+v", captured)
	}
}

func TestInvokeMissingResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := client.Invoke(context.Background(), Request{Tool: "sentiment", Action: "analyze_text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || len(result) != 0 {
		t.Fatalf("expected empty result map, got %+v", result)
	}
}

func TestInvokeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.Invoke(context.Background(), Request{Tool: "gmail", Action: "send_email"})
	if err == nil {
		t.Fatalf("expected error for 500 response")
	}
	if xerrors.CodeOf(err) != CodeToolTransport {
		t.Fatalf("expected transport code, got %s", xerrors.CodeOf(err))
	}
	if !xerrors.RetryableError(err) {
		t.Fatalf("transport failures must be retryable")
	}
}

func TestInvokeNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.Invoke(context.Background(), Request{Tool: "sms", Action: "send_sms"})
	if err == nil {
		t.Fatalf("expected error when server is unreachable")
	}
	var typed *xerrors.Error
	if !errors.As(err, &typed) || typed.Code() != CodeToolTransport {
		t.Fatalf("expected transport code, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("unexpected health error: %v", err)
	}
}

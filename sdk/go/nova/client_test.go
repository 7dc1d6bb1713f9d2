package nova

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProcessSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/nova/process" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req ProcessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.UserID != "alice" || req.Content != "hello" {
			t.Fatalf("unexpected payload: %+v", req)
		}
		json.NewEncoder(w).Encode(ProcessResponse{
			Status:  "success",
			Message: "Completed intent general_assist. Executed 1 step(s).",
			Results: []StepResult{{Tool: "sentiment.analyze_text"}},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := client.Process(context.Background(), ProcessRequest{UserID: "alice", Content: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "success" || len(resp.Results) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestConfirmSendsDecision(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nova/confirm" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			UserID  string `json:"user_id"`
			Confirm bool   `json:"confirm"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.UserID != "alice" || req.Confirm {
			t.Fatalf("unexpected payload: %+v", req)
		}
		json.NewEncoder(w).Encode(ProcessResponse{Status: "success", Message: "Action cancelled as requested"})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := client.Confirm(context.Background(), "alice", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message != "Action cancelled as requested" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHistoryQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nova/history" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("user_id"); got != "alice" {
			t.Fatalf("unexpected user_id: %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Fatalf("unexpected limit: %q", got)
		}
		json.NewEncoder(w).Encode(HistoryResponse{
			UserID:  "alice",
			Actions: []HistoryItem{{UserInput: "hi", Intent: "general_assist"}},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := client.History(context.Background(), "alice", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Actions) != 1 {
		t.Fatalf("unexpected history: %+v", resp)
	}
}

func TestAccessTokenHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		json.NewEncoder(w).Encode(StatusResponse{Status: "ok"})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.SetAccessToken("secret")
	if _, err := client.Status(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "error",
			"code":   "NO_PENDING_CONFIRMATION",
			"error":  "no pending confirmation for this user",
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = client.Confirm(context.Background(), "ghost", true)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Code != "NO_PENDING_CONFIRMATION" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

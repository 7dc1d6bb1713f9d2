// Package nova provides a small Go client for the Nova Assistant REST API.
package nova

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the Nova Assistant REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// ProcessRequest represents the payload accepted by the process endpoint.
type ProcessRequest struct {
	UserID  string         `json:"user_id"`
	Content string         `json:"content"`
	Context map[string]any `json:"context,omitempty"`
}

// StepResult mirrors a single executed step in a response.
type StepResult struct {
	StepIndex   int            `json:"step_index"`
	Tool        string         `json:"tool"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	ExecutionMS float64        `json:"execution_ms,omitempty"`
}

// ProposedAction describes a plan waiting for user approval.
type ProposedAction struct {
	Intent      string `json:"intent"`
	RiskLevel   string `json:"risk_level"`
	Description string `json:"description"`
}

// ProcessResponse is the envelope returned by process and confirm calls.
type ProcessResponse struct {
	Status               string          `json:"status"`
	Message              string          `json:"message"`
	ProposedAction       *ProposedAction `json:"proposed_action,omitempty"`
	RequiresUserApproval bool            `json:"requires_user_approval,omitempty"`
	ActionsTaken         []string        `json:"actions_taken,omitempty"`
	NextSteps            []string        `json:"next_steps,omitempty"`
	Results              []StepResult    `json:"results,omitempty"`
}

// HistoryItem is a single action history record.
type HistoryItem struct {
	UserInput     string `json:"user_input"`
	Intent        string `json:"intent"`
	ResultSummary string `json:"result_summary"`
	CreatedAt     string `json:"created_at"`
}

// HistoryResponse lists a user's recent actions.
type HistoryResponse struct {
	UserID  string        `json:"user_id"`
	Actions []HistoryItem `json:"actions"`
}

// StatusResponse reports the health of the service's dependencies.
type StatusResponse struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Timestamp string            `json:"timestamp"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("nova api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("nova api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the Nova Assistant API. When httpClient
// is nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetAccessToken stores a bearer token attached to subsequent calls.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// AccessToken returns the currently stored token string.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// Process submits user input for orchestration.
func (c *Client) Process(ctx context.Context, req ProcessRequest) (ProcessResponse, error) {
	var resp ProcessResponse
	if err := c.post(ctx, "/nova/process", req, &resp); err != nil {
		return ProcessResponse{}, err
	}
	return resp, nil
}

// Confirm approves or cancels a pending risky plan.
func (c *Client) Confirm(ctx context.Context, userID string, confirm bool) (ProcessResponse, error) {
	payload := struct {
		UserID  string `json:"user_id"`
		Confirm bool   `json:"confirm"`
	}{UserID: userID, Confirm: confirm}

	var resp ProcessResponse
	if err := c.post(ctx, "/nova/confirm", payload, &resp); err != nil {
		return ProcessResponse{}, err
	}
	return resp, nil
}

// History fetches the user's recent action history.
func (c *Client) History(ctx context.Context, userID string, limit int) (HistoryResponse, error) {
	endpoint := fmt.Sprintf("/nova/history?user_id=%s", url.QueryEscape(userID))
	if limit > 0 {
		endpoint += fmt.Sprintf("&limit=%d", limit)
	}
	var resp HistoryResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return HistoryResponse{}, err
	}
	return resp, nil
}

// Status reports the service status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	if err := c.get(ctx, "/nova/status", &resp); err != nil {
		return StatusResponse{}, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

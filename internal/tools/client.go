package tools

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

	xerrors "Nova-Assistant/internal/errors"
)

// CodeToolTransport 表示调用工具后端时的传输层失败（网络错误或非 2xx 状态）。
const CodeToolTransport xerrors.Code = "TOOL_TRANSPORT_FAILURE"

func init() {
	xerrors.Register(CodeToolTransport, xerrors.Attributes{
		Message:   "tool backend transport failure",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
}

const defaultTimeout = 20 * time.Second

// Request 描述提交给工具后端的一次调用。
type Request struct {
	Tool   string         `json:"tool"`
	Action string         `json:"action"`
	Args   map[string]any `json:"args"`
}

// Invoker 定义了执行器依赖的工具调用能力。
type Invoker interface {
	Invoke(ctx context.Context, req Request) (map[string]any, error)
}

// HealthChecker 定义了工具后端的存活探测能力，仅供状态接口使用。
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config 描述工具后端客户端的连接参数。
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client 通过 HTTP 调用外部工具后端。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建工具后端客户端。Timeout 是单次调用的上限，
// 重试由上层执行器控制，客户端本身只负责一次请求。
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("工具后端地址不能为空")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Invoke 提交 POST /tools/execute 请求。2xx 响应视为成功，
// 返回 body 中的 result 字段；非 2xx 与网络错误统一包装为传输失败。
func (c *Client) Invoke(ctx context.Context, req Request) (map[string]any, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "序列化工具请求失败")
	}

	endpoint := c.baseURL + "/tools/execute"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "构建工具请求失败")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, xerrors.Wrap(CodeToolTransport, err, fmt.Sprintf("请求工具后端 %s.%s 失败", req.Tool, req.Action))
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, xerrors.New(CodeToolTransport,
			fmt.Sprintf("工具后端返回状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var decoded struct {
		Result map[string]any `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, xerrors.Wrap(CodeToolTransport, err, "解析工具后端响应失败")
	}
	if decoded.Result == nil {
		decoded.Result = map[string]any{}
	}
	return decoded.Result, nil
}

// Health 探测工具后端的 GET /health 接口。
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("工具后端健康检查返回状态 %d", resp.StatusCode)
	}
	return nil
}

var (
	_ Invoker       = (*Client)(nil)
	_ HealthChecker = (*Client)(nil)
)

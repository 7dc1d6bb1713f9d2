package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"

	xerrors "Nova-Assistant/internal/errors"
)

// Service 负责请求的身份认证。token 模式下维护一张静态令牌表，
// disabled 模式下直接放行所有请求。
type Service struct {
	mode   Mode
	tokens map[string]*Subject
	audit  *slog.Logger
}

// ServiceOption 配置认证服务的可选依赖。
type ServiceOption func(*Service)

// WithAuditLogger 注入审计日志器。
func WithAuditLogger(audit *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.audit = audit
	}
}

// NewService 创建认证服务。
func NewService(cfg Config, opts ...ServiceOption) (*Service, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeDisabled
	}
	switch mode {
	case ModeDisabled, ModeToken:
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "不支持的认证模式: "+string(mode))
	}

	svc := &Service{mode: mode, tokens: make(map[string]*Subject)}
	if mode == ModeToken {
		if len(cfg.Tokens) == 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "token 模式至少需要一个静态令牌")
		}
		for _, token := range cfg.Tokens {
			value := strings.TrimSpace(token.Token)
			if value == "" {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, "静态令牌不能为空")
			}
			svc.tokens[value] = &Subject{
				Name:        token.Name,
				Permissions: append([]string(nil), token.Permissions...),
				Disabled:    token.Disabled,
			}
		}
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Mode 返回当前认证模式。
func (s *Service) Mode() Mode {
	if s == nil {
		return ModeDisabled
	}
	return s.mode
}

// AuthenticateRequest 校验 Authorization 头并返回主体信息。
func (s *Service) AuthenticateRequest(_ context.Context, authorization string) (*Subject, error) {
	raw := strings.TrimSpace(authorization)
	if raw == "" {
		return nil, ErrMissingToken
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrInvalidToken
	}
	presented := strings.TrimSpace(parts[1])

	for value, subject := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(value), []byte(presented)) == 1 {
			if subject.Disabled {
				return nil, ErrSubjectRevoked
			}
			return subject.Clone(), nil
		}
	}
	return nil, ErrInvalidToken
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(Config{Mode: "ldap"}); err == nil {
		t.Fatalf("expected error for unsupported mode")
	}
	if _, err := NewService(Config{Mode: ModeToken}); err == nil {
		t.Fatalf("token mode requires at least one token")
	}
	if _, err := NewService(Config{Mode: ModeToken, Tokens: []StaticToken{{Token: "  "}}}); err == nil {
		t.Fatalf("blank token must be rejected")
	}
}

func TestAuthenticateRequest(t *testing.T) {
	svc, err := NewService(Config{
		Mode: ModeToken,
		Tokens: []StaticToken{
			{Token: "secret-token", Name: "ops", Permissions: []string{"nova:process"}},
			{Token: "revoked-token", Name: "old", Disabled: true},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	subject, err := svc.AuthenticateRequest(context.Background(), "Bearer secret-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject.Name != "ops" || !subject.HasPermission("nova:process") {
		t.Fatalf("unexpected subject: %+v", subject)
	}

	if _, err := svc.AuthenticateRequest(context.Background(), ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := svc.AuthenticateRequest(context.Background(), "Basic abc"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.AuthenticateRequest(context.Background(), "Bearer wrong"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.AuthenticateRequest(context.Background(), "Bearer revoked-token"); !errors.Is(err, ErrSubjectRevoked) {
		t.Fatalf("expected ErrSubjectRevoked, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	svc, err := NewService(Config{
		Mode: ModeToken,
		Tokens: []StaticToken{
			{Token: "secret-token", Name: "ops", Permissions: []string{"nova:process"}},
			{Token: "reader-token", Name: "reader"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var seenSubject *Subject
	handler := svc.Middleware(MiddlewareConfig{
		RequiredPermissions: map[string][]string{
			http.MethodPost: {"nova:process"},
		},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenSubject = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/nova/process", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seenSubject == nil || seenSubject.Name != "ops" {
		t.Fatalf("subject must reach the handler: %+v", seenSubject)
	}

	req = httptest.NewRequest(http.MethodPost, "/nova/process", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token must yield 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/nova/process", nil)
	req.Header.Set("Authorization", "Bearer reader-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing permission must yield 403, got %d", rec.Code)
	}
}

func TestMiddlewareDisabledMode(t *testing.T) {
	svc, err := NewService(Config{Mode: ModeDisabled})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := svc.Middleware(MiddlewareConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/nova/history", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("disabled mode must pass through, got %d", rec.Code)
	}
}

package auth

import "context"

// ctxKeySubject 是上下文中存放认证主体的私有键类型。
type ctxKeySubject struct{}

// WithSubject 把通过认证的主体写入上下文，nil 主体原样返回。
func WithSubject(ctx context.Context, subject *Subject) context.Context {
	if subject == nil {
		return ctx
	}
	subject.normalise()
	return context.WithValue(ctx, ctxKeySubject{}, subject)
}

// SubjectFromContext 读取上下文中的认证主体，未认证时返回 nil。
func SubjectFromContext(ctx context.Context) *Subject {
	if ctx == nil {
		return nil
	}
	subject, ok := ctx.Value(ctxKeySubject{}).(*Subject)
	if !ok {
		return nil
	}
	subject.normalise()
	return subject
}

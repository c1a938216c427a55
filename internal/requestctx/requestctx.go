// Package requestctx carries request-scoped identifiers below the HTTP layer
// so that domain logs line up with access logs.
package requestctx

import "context"

type ctxKey struct{}

// Info is shared by pointer: middleware further down the chain fills in the
// actor after authentication and the access logger, which runs outermost,
// still sees it.
type Info struct {
	RequestID string
	TenantID  string
	UserID    string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, &Info{RequestID: requestID})
}

// SetActor records the authenticated caller. It is a no-op when the context
// was not prepared by WithRequestID.
func SetActor(ctx context.Context, tenantID, userID string) {
	if info, ok := ctx.Value(ctxKey{}).(*Info); ok {
		info.TenantID = tenantID
		info.UserID = userID
	}
}

func Get(ctx context.Context) Info {
	if info, ok := ctx.Value(ctxKey{}).(*Info); ok {
		return *info
	}
	return Info{}
}

func GetRequestID(ctx context.Context) string {
	return Get(ctx).RequestID
}

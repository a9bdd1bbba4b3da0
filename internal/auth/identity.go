package auth

import "context"

// Identity is the authenticated actor attached to every lifecycle
// operation. Credential carries the raw bearer token so it can be
// forwarded to the notification channel; the service never inspects it.
type Identity struct {
	Username   string
	Credential string
}

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the actor stored by the middleware, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

package user

import "context"

type ctxKey int

const principalKey ctxKey = 0

// NewContext returns a copy of ctx carrying usr as the authenticated principal.
func NewContext(ctx context.Context, usr User) context.Context {
	return context.WithValue(ctx, principalKey, usr)
}

// FromContext returns the authenticated principal carried by ctx, if any.
func FromContext(ctx context.Context) (User, bool) {
	usr, ok := ctx.Value(principalKey).(User)
	return usr, ok
}

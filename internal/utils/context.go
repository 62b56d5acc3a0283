package utils

import (
	"context"
)

type contextKey string

// ContextClientKey holds the client address the rate limiter keyed the
// request on.
const ContextClientKey contextKey = "client"

func WithClient(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, ContextClientKey, client)
}

func GetClientFromContext(ctx context.Context) (string, bool) {
	client := ctx.Value(ContextClientKey)
	clientStr, ok := client.(string)
	return clientStr, ok
}

package rag

import (
	"context"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/auth"
)

type contextKey string

const claimsContextKey contextKey = "auth_claims"

func withClaims(ctx context.Context, claims auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

func claimsFromContext(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(auth.Claims)
	return claims, ok
}

package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/auth"
)

func TestClaimsFromContextRoundTrips(t *testing.T) {
	claims := auth.Claims{UserID: 42, Role: "admin"}
	ctx := withClaims(context.Background(), claims)

	got, ok := claimsFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, claims, got)
}

func TestClaimsFromContextMissing(t *testing.T) {
	_, ok := claimsFromContext(context.Background())
	require.False(t, ok)
}

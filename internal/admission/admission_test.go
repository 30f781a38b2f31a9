package admission

import (
	"context"
	"testing"
	"time"

	"github.com/heatguard/risk-scoring-api/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func testLayer() (*Layer, *Credential) {
	cred := &Credential{
		Key:                "test-key",
		DisplayName:        "tester",
		Permissions:        map[Permission]bool{PermissionRead: true},
		RateLimitPerMinute: intPtr(3),
		Active:             true,
	}
	table := NewTable([]*Credential{cred})
	layer := New(table, Config{CacheTTL: time.Minute, DefaultRateLimitPerMin: 10})
	return layer, cred
}

func TestAuthenticateUnknownCredentialFails(t *testing.T) {
	layer, _ := testLayer()
	_, err := layer.Authenticate("does-not-exist")
	require.Error(t, err)
	assert.Equal(t, apperrors.Unauthenticated, apperrors.KindOf(err))
}

func TestAuthenticateMissingCredentialFails(t *testing.T) {
	layer, _ := testLayer()
	_, err := layer.Authenticate("")
	require.Error(t, err)
	assert.Equal(t, apperrors.Unauthenticated, apperrors.KindOf(err))
}

func TestAuthenticateKnownCredentialSucceedsAndCaches(t *testing.T) {
	layer, cred := testLayer()
	got, err := layer.Authenticate(cred.Key)
	require.NoError(t, err)
	assert.Equal(t, cred.Key, got.Key)

	// second call should hit the cache path, not the table.
	got2, err := layer.Authenticate(cred.Key)
	require.NoError(t, err)
	assert.Equal(t, cred.Key, got2.Key)
}

func TestAuthenticateDeactivatedCredentialFails(t *testing.T) {
	cred := &Credential{Key: "k", Active: false}
	table := NewTable([]*Credential{cred})
	layer := New(table, Config{})
	_, err := layer.Authenticate("k")
	require.Error(t, err)
	assert.Equal(t, apperrors.Unauthenticated, apperrors.KindOf(err))
}

func TestAuthenticateExpiredCredentialFails(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	cred := &Credential{Key: "k", Active: true, ExpiresAt: &past}
	table := NewTable([]*Credential{cred})
	layer := New(table, Config{})
	_, err := layer.Authenticate("k")
	require.Error(t, err)
}

func TestRequirePermissionAdminImpliesAll(t *testing.T) {
	cred := &Credential{Permissions: map[Permission]bool{PermissionAdmin: true}}
	assert.NoError(t, RequirePermission(cred, PermissionWrite))
}

func TestRequirePermissionDeniedWithoutGrant(t *testing.T) {
	cred := &Credential{Permissions: map[Permission]bool{PermissionRead: true}}
	err := RequirePermission(cred, PermissionWrite)
	require.Error(t, err)
	assert.Equal(t, apperrors.Forbidden, apperrors.KindOf(err))
}

func TestCheckRateLimitExhaustsBucket(t *testing.T) {
	layer, cred := testLayer()
	ctx := context.Background()

	for i := 0; i < *cred.RateLimitPerMinute; i++ {
		_, err := layer.CheckRateLimit(ctx, cred)
		require.NoError(t, err)
	}
	_, err := layer.CheckRateLimit(ctx, cred)
	require.Error(t, err)
	assert.Equal(t, apperrors.RateLimited, apperrors.KindOf(err))
}

func TestCheckRateLimitZeroLimitAlwaysBlocks(t *testing.T) {
	cred := &Credential{Key: "zero", Active: true, RateLimitPerMinute: intPtr(0)}
	table := NewTable([]*Credential{cred})
	layer := New(table, Config{DefaultRateLimitPerMin: 100})
	_, err := layer.CheckRateLimit(context.Background(), cred)
	require.Error(t, err)
}

func TestCheckRateLimitOmittedUsesLayerDefault(t *testing.T) {
	cred := &Credential{Key: "default", Active: true}
	table := NewTable([]*Credential{cred})
	layer := New(table, Config{DefaultRateLimitPerMin: 5})
	for i := 0; i < 5; i++ {
		_, err := layer.CheckRateLimit(context.Background(), cred)
		require.NoError(t, err)
	}
	_, err := layer.CheckRateLimit(context.Background(), cred)
	require.Error(t, err)
}

func TestInMemoryLimiterMonotoneWithinWindow(t *testing.T) {
	l := newInMemoryLimiter()
	ctx := context.Background()
	d1, err := l.Check(ctx, "x", 5)
	require.NoError(t, err)
	d2, err := l.Check(ctx, "x", 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, d2.Remaining, d1.Remaining)
}

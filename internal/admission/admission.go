package admission

import (
	"context"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"

	"github.com/heatguard/risk-scoring-api/internal/apperrors"
)

// Config controls one Layer instance.
type Config struct {
	CacheTTL               time.Duration
	CacheCapacity          int
	DefaultRateLimitPerMin int
	RedisClient            *redis.Client // nil disables the shared-store backend entirely
	SecretKey              string        // JWT signing/verification key; empty disables JWT credentials
}

// FallbackObserver is notified whenever the shared-store limiter fails
// and the layer falls over to the in-memory limiter, so the caller can
// log the transition without this package importing a logger.
type FallbackObserver func(err error)

// Layer combines credential authentication (with cache), rate limiting
// (with shared-store + in-memory fallback), and the permission gate.
type Layer struct {
	table            *Table
	cache            *credentialCache
	primary          Limiter // nil if no shared store configured
	fallback         Limiter
	defaultRateLimit int
	secretKey        string
	onFallback       FallbackObserver
}

// New builds a Layer. table is the static credential set loaded at
// bootstrap; cfg.RedisClient may be nil, in which case the in-memory
// limiter is used unconditionally.
func New(table *Table, cfg Config) *Layer {
	l := &Layer{
		table:            table,
		cache:            newCredentialCache(cfg.CacheTTL, cfg.CacheCapacity),
		fallback:         newInMemoryLimiter(),
		defaultRateLimit: cfg.DefaultRateLimitPerMin,
		secretKey:        cfg.SecretKey,
	}
	if cfg.RedisClient != nil {
		l.primary = newRedisLimiter(cfg.RedisClient)
	}
	return l
}

// OnFallback registers a callback invoked every time a shared-store
// rate-limit check fails and the in-memory limiter is used instead.
func (l *Layer) OnFallback(fn FallbackObserver) { l.onFallback = fn }

// Authenticate extracts and validates the credential presented in
// rawHeader (the value of the configured API-key header, or a bearer
// JWT), consulting the cache first. It never logs or stores the raw
// credential value beyond this call's stack.
func (l *Layer) Authenticate(rawHeader string) (*Credential, error) {
	rawHeader = strings.TrimSpace(rawHeader)
	if rawHeader == "" {
		return nil, apperrors.New(apperrors.Unauthenticated, "missing credential")
	}

	if token, ok := bearerToken(rawHeader); ok && l.secretKey != "" {
		return l.authenticateJWT(token)
	}

	hash := HashCredential(rawHeader)
	if entry, ok := l.cache.get(hash); ok {
		if entry.cachedErr != nil {
			return nil, entry.cachedErr
		}
		return entry.cred, nil
	}

	cred, err := l.lookup(rawHeader)
	if err != nil {
		l.cache.put(hash, nil, err)
		return nil, err
	}
	l.cache.put(hash, cred, nil)
	return cred, nil
}

func (l *Layer) lookup(rawHeader string) (*Credential, error) {
	cred, ok := l.table.Lookup(rawHeader)
	if !ok {
		return nil, apperrors.New(apperrors.Unauthenticated, "unknown credential")
	}
	if !cred.Active {
		return nil, apperrors.New(apperrors.Unauthenticated, "credential deactivated")
	}
	if cred.Expired(time.Now()) {
		return nil, apperrors.New(apperrors.Unauthenticated, "credential expired")
	}
	return cred, nil
}

func bearerToken(raw string) (string, bool) {
	const prefix = "Bearer "
	if strings.HasPrefix(raw, prefix) {
		return strings.TrimPrefix(raw, prefix), true
	}
	return "", false
}

// jwtClaims is the alternate signed-credential format: permissions and
// rate limit travel as claims rather than a table lookup.
type jwtClaims struct {
	jwt.RegisteredClaims
	Permissions string `json:"perm"`
	RateLimit   int    `json:"rl"`
}

func (l *Layer) authenticateJWT(token string) (*Credential, error) {
	claims := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.New(apperrors.Unauthenticated, "unexpected JWT signing method")
		}
		return []byte(l.secretKey), nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperrors.Wrap(apperrors.Unauthenticated, "invalid JWT", err)
	}

	perms := make(map[Permission]bool)
	for _, p := range strings.Split(claims.Permissions, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			perms[Permission(p)] = true
		}
	}
	// The JWT claim format cannot distinguish an omitted limit from an
	// explicit zero, unlike the table-based Credential; rl<=0 is treated
	// as "omitted", so a bearer token always falls back to the layer
	// default rather than ever blocking every request outright.
	var rateLimit *int
	if claims.RateLimit > 0 {
		v := claims.RateLimit
		rateLimit = &v
	}

	return &Credential{
		Key:                claims.Subject,
		DisplayName:        claims.Subject,
		Permissions:        perms,
		RateLimitPerMinute: rateLimit,
		Active:             true,
	}, nil
}

// RequirePermission fails with Forbidden unless cred grants perm.
func RequirePermission(cred *Credential, perm Permission) error {
	if !cred.HasPermission(perm) {
		return apperrors.New(apperrors.Forbidden, "credential lacks required permission: "+string(perm))
	}
	return nil
}

// CheckRateLimit applies cred's per-minute limit (or the layer default
// if the credential doesn't set one) to the shared-store limiter,
// falling back to the in-memory limiter on any shared-store error.
func (l *Layer) CheckRateLimit(ctx context.Context, cred *Credential) (Decision, error) {
	limit := l.defaultRateLimit
	if cred.RateLimitPerMinute != nil {
		limit = *cred.RateLimitPerMinute
	}
	id := HashCredential(cred.Key)

	if l.primary != nil {
		decision, err := l.primary.Check(ctx, id, limit)
		if err == nil {
			return decisionOrError(decision, limit)
		}
		if l.onFallback != nil {
			l.onFallback(err)
		}
	}

	decision, err := l.fallback.Check(ctx, id, limit)
	if err != nil {
		return Decision{}, apperrors.Wrap(apperrors.Internal, "rate limiter unavailable", err)
	}
	return decisionOrError(decision, limit)
}

func decisionOrError(d Decision, limit int) (Decision, error) {
	if !d.Allowed {
		return d, apperrors.New(apperrors.RateLimited, "rate limit of "+strconv.Itoa(limit)+" requests/minute exceeded")
	}
	return d, nil
}

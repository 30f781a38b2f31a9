package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/time/rate"

	"github.com/heatguard/risk-scoring-api/internal/admission"
	"github.com/heatguard/risk-scoring-api/internal/apperrors"
	"github.com/heatguard/risk-scoring-api/internal/reqctx"
	"github.com/heatguard/risk-scoring-api/metrics"
)

// CorrelationIDMiddleware adds a correlation ID to the request context and response headers.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		w.Header().Set("X-Correlation-ID", correlationID)

		log := hlog.FromRequest(r)
		log.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("correlation_id", correlationID)
		})

		rc := reqctx.New()
		rc.RequestID = correlationID
		r = r.WithContext(reqctx.WithContext(r.Context(), rc))

		next.ServeHTTP(w, r)
	})
}

// GlobalRateLimitMiddleware applies a process-wide inbound throttle, a
// coarser layer of hardening distinct from the per-credential
// admission.Layer rate limit.
func GlobalRateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, r, apperrors.New(apperrors.Busy, "server is at capacity, try again shortly"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type credentialKey struct{}

func withCredential(ctx context.Context, cred *admission.Credential) context.Context {
	return context.WithValue(ctx, credentialKey{}, cred)
}

func credentialFromContext(ctx context.Context) *admission.Credential {
	cred, _ := ctx.Value(credentialKey{}).(*admission.Credential)
	return cred
}

// AdmissionMiddleware authenticates the credential header, applies its
// rate limit, and sets the X-RateLimit-* response headers. Handlers that
// need a specific permission call requirePermission themselves, since
// the permission differs by route.
func AdmissionMiddleware(layer *admission.Layer, headerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(headerName)
			if raw == "" {
				raw = r.Header.Get("Authorization")
			}

			cred, err := layer.Authenticate(raw)
			if err != nil {
				metrics.RecordAdmissionDenied("unauthenticated")
				writeError(w, r, err)
				return
			}

			decision, err := layer.CheckRateLimit(r.Context(), cred)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
			if err != nil {
				metrics.RecordAdmissionDenied("rate_limited")
				writeError(w, r, err)
				return
			}

			r = r.WithContext(withCredential(r.Context(), cred))
			next.ServeHTTP(w, r)
		})
	}
}

// requirePermission is a small per-route guard, since /predict needs
// write while /health needs none and /batch_job DELETE needs write too.
func requirePermission(w http.ResponseWriter, r *http.Request, perm admission.Permission) bool {
	cred := credentialFromContext(r.Context())
	if cred == nil {
		writeError(w, r, apperrors.New(apperrors.Unauthenticated, "missing credential"))
		return false
	}
	if err := admission.RequirePermission(cred, perm); err != nil {
		metrics.RecordAdmissionDenied("forbidden")
		writeError(w, r, err)
		return false
	}
	return true
}

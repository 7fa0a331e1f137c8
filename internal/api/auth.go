package api

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/rs/zerolog"

	"hotelbooking/internal/auth"
	"hotelbooking/internal/config"
	"hotelbooking/internal/domain"
)

type identityKey struct{}

// CallerFrom returns the verified identity of the request, or nil for an
// anonymous caller.
func CallerFrom(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(identityKey{}).(*domain.Identity)
	return id
}

// callerName is the username passed to the services. Empty means the
// configured system user.
func callerName(r *http.Request) string {
	if id := CallerFrom(r.Context()); id != nil {
		return id.Username
	}
	return ""
}

// HTTPAuth verifies bearer tokens and applies per-caller rate limits.
type HTTPAuth struct {
	cfg      config.APIConfig
	verifier domain.TokenVerifier
	limiter  *rateLimiter
	logger   zerolog.Logger
}

// NewHTTPAuth builds the auth middleware. verifier may be nil when tokens
// are not required; shared may be nil to keep rate limits per process.
func NewHTTPAuth(cfg config.APIConfig, verifier domain.TokenVerifier, shared domain.RateLimiter, logger *zerolog.Logger) *HTTPAuth {
	l := logger.With().Str("component", "http_auth").Logger()
	return &HTTPAuth{
		cfg:      cfg,
		verifier: verifier,
		limiter:  newRateLimiter(cfg.RateLimit, shared, &l),
		logger:   l,
	}
}

var publicPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := a.authenticate(r)
		if err != nil {
			code := statusFor(err)
			a.logger.Info().Err(err).Str("path", r.URL.Path).Int("status", code).Msg("Request rejected")
			writeError(w, code, err.Error())
			return
		}

		ctx := r.Context()
		if identity != nil {
			ctx = context.WithValue(ctx, identityKey{}, identity)
		}

		if !a.limiter.allow(ctx, a.clientKey(r, identity)) {
			writeError(w, http.StatusTooManyRequests, domain.ErrRateLimited.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *HTTPAuth) authenticate(r *http.Request) (*domain.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if a.cfg.Auth.Required {
			return nil, errors.Join(domain.ErrUnauthenticated, errors.New("missing bearer token"))
		}
		return nil, nil
	}

	token, ok := auth.ExtractBearer(header)
	if !ok {
		return nil, errors.Join(domain.ErrUnauthenticated, errors.New("malformed authorization header"))
	}
	if a.verifier == nil {
		if a.cfg.Auth.Required {
			return nil, errors.Join(domain.ErrUnauthenticated, errors.New("token verification is not configured"))
		}
		return nil, nil
	}
	return a.verifier.Verify(r.Context(), token)
}

func (a *HTTPAuth) clientKey(r *http.Request, identity *domain.Identity) string {
	if identity != nil && identity.Username != "" {
		return "user:" + identity.Username
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return "ip:" + host
	}
	return "unknown"
}

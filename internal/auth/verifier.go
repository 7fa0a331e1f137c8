package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"hotelbooking/internal/config"
	"hotelbooking/internal/domain"
)

// Verifier checks RS256 access tokens against a JWKS key set.
type Verifier struct {
	keys          *KeySetCache
	issuer        string
	clientID      string
	tokenUse      string
	usernameClaim string
	logger        *zerolog.Logger
}

var _ domain.TokenVerifier = (*Verifier)(nil)

func NewVerifier(keys *KeySetCache, cfg config.APIAuthConfig, logger *zerolog.Logger) *Verifier {
	return &Verifier{
		keys:          keys,
		issuer:        cfg.Issuer,
		clientID:      cfg.ClientID,
		tokenUse:      cfg.TokenUse,
		usernameClaim: cfg.UsernameClaim,
		logger:        logger,
	}
}

// NewFromConfig builds a Verifier fetching keys from cfg.JWKSURL.
func NewFromConfig(cfg config.APIAuthConfig, logger *zerolog.Logger) *Verifier {
	client := &http.Client{Timeout: 10 * time.Second}
	keys := NewKeySetCache(HTTPFetcher(client, cfg.JWKSURL), cfg.CacheTTL, logger)
	return NewVerifier(keys, cfg, logger)
}

func (v *Verifier) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	claims := jwt.MapClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.key(ctx, t)
	}, opts...)
	if err != nil {
		v.logger.Debug().Err(err).Msg("Token rejected")
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	if v.tokenUse != "" && claimString(claims, "token_use") != v.tokenUse {
		return nil, fmt.Errorf("%w: token_use must be %s", domain.ErrUnauthenticated, v.tokenUse)
	}
	if v.clientID != "" && claimString(claims, "client_id") != v.clientID {
		return nil, fmt.Errorf("%w: token issued for another client", domain.ErrUnauthorized)
	}

	sub, _ := claims.GetSubject()
	username := claimString(claims, v.usernameClaim)
	if username == "" {
		username = sub
	}
	if username == "" {
		return nil, fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}

	return &domain.Identity{
		Username: username,
		Subject:  sub,
		Groups:   claimStrings(claims, "cognito:groups"),
	}, nil
}

func (v *Verifier) key(ctx context.Context, t *jwt.Token) (interface{}, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New("token header has no kid")
	}

	set, err := v.keys.Get(ctx)
	if err != nil {
		return nil, err
	}
	if key, ok := set[kid]; ok {
		return key, nil
	}

	// keys may have been rotated
	set, err = v.keys.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if key, ok := set[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("no key for kid %s", kid)
}

func claimString(claims jwt.MapClaims, name string) string {
	if name == "" {
		return ""
	}
	s, _ := claims[name].(string)
	return s
}

func claimStrings(claims jwt.MapClaims, name string) []string {
	switch v := claims[name].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Fields(v)
	}
	return nil
}

// ExtractBearer returns the token of an "Authorization: Bearer" header. The
// scheme is matched case-insensitively.
func ExtractBearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

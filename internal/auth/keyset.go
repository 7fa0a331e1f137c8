package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// KeySet maps key ids to RSA public keys.
type KeySet map[string]*rsa.PublicKey

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// ParseKeySet decodes a JWKS document. Non-RSA and signing-unrelated keys
// are skipped.
func ParseKeySet(data []byte) (KeySet, error) {
	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode jwks: %w", err)
	}

	set := make(KeySet, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") || k.Kid == "" {
			continue
		}
		key, err := rsaKey(k.N, k.E)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k.Kid, err)
		}
		set[k.Kid] = key
	}
	if len(set) == 0 {
		return nil, errors.New("jwks contains no usable RSA keys")
	}
	return set, nil
}

func rsaKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(eb)
	if !exp.IsInt64() || exp.Int64() < 3 || exp.Int64() > 1<<31-1 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp.Int64())}, nil
}

// FetchFunc loads a fresh key set.
type FetchFunc func(ctx context.Context) (KeySet, error)

// HTTPFetcher downloads the JWKS document at url.
func HTTPFetcher(client *http.Client, url string) FetchFunc {
	return func(ctx context.Context) (KeySet, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch jwks: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to fetch jwks: status %d", resp.StatusCode)
		}

		var raw json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to read jwks: %w", err)
		}
		return ParseKeySet(raw)
	}
}

// KeySetCache holds the verification key set with a time-based expiry. It
// is owned by one Verifier; concurrent readers share the cached value.
type KeySetCache struct {
	mu        sync.Mutex
	value     KeySet
	fetchedAt time.Time
	ttl       time.Duration

	// After a failed fetch no new fetch starts before retryAt; lastErr is
	// returned meanwhile when there is no key set to serve.
	retryAt time.Time
	lastErr error

	fetch  FetchFunc
	now    func() time.Time
	logger *zerolog.Logger
}

// refreshInterval is the minimum time between two fetches triggered by an
// unknown kid or by a failed fetch.
const refreshInterval = time.Minute

func NewKeySetCache(fetch FetchFunc, ttl time.Duration, logger *zerolog.Logger) *KeySetCache {
	return &KeySetCache{
		ttl:    ttl,
		fetch:  fetch,
		now:    time.Now,
		logger: logger,
	}
}

// Get returns the cached key set, refreshing it once the ttl has passed. A
// failed refresh keeps serving the previous set.
func (c *KeySetCache) Get(ctx context.Context) (KeySet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.value, nil
	}
	if set, ok, err := c.backingOffLocked(); ok {
		return set, err
	}
	return c.refreshLocked(ctx)
}

// Refresh fetches the key set regardless of its age, e.g. for an unknown kid.
// Refreshes are limited to one per minute.
func (c *KeySetCache) Refresh(ctx context.Context) (KeySet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value != nil && c.now().Sub(c.fetchedAt) < refreshInterval {
		return c.value, nil
	}
	if set, ok, err := c.backingOffLocked(); ok {
		return set, err
	}
	return c.refreshLocked(ctx)
}

// backingOffLocked reports whether a recent fetch failed. The cached set, or
// the fetch error when there is none, is returned until retryAt.
func (c *KeySetCache) backingOffLocked() (KeySet, bool, error) {
	if c.retryAt.IsZero() || !c.now().Before(c.retryAt) {
		return nil, false, nil
	}
	if c.value != nil {
		return c.value, true, nil
	}
	return nil, true, c.lastErr
}

func (c *KeySetCache) refreshLocked(ctx context.Context) (KeySet, error) {
	set, err := c.fetch(ctx)
	if err != nil {
		c.retryAt = c.now().Add(refreshInterval)
		c.lastErr = err
		if c.value != nil {
			c.logger.Warn().Err(err).Msg("JWKS refresh failed, serving cached keys")
			return c.value, nil
		}
		return nil, err
	}
	c.value = set
	c.fetchedAt = c.now()
	c.retryAt = time.Time{}
	c.lastErr = nil
	c.logger.Info().Int("keys", len(set)).Msg("Fetched JWKS")
	return set, nil
}

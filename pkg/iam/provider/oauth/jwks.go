package oauth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider"
	gocache "github.com/patrickmn/go-cache"
)

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS fetches RSA keys from a JSON web key set URL and caches them by kid
type JWKS struct {
	url   string
	http  *http.Client
	cache *gocache.Cache
}

func NewJWKS(url string, ttl time.Duration, client *http.Client) *JWKS {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &JWKS{url: url, http: client, cache: gocache.New(ttl, 10*time.Minute)}
}

// Key returns the key kid, refreshing the set once on a miss so rotated
// keys are picked up
func (j *JWKS) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if k, ok := j.cache.Get(kid); ok {
		return k.(*rsa.PublicKey), nil
	}
	if err := j.refresh(ctx); err != nil {
		return nil, err
	}
	if k, ok := j.cache.Get(kid); ok {
		return k.(*rsa.PublicKey), nil
	}
	return nil, provider.ErrAuthFailed().WithDetail("reason", "unknown key id")
}

func (j *JWKS) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return err
	}
	resp, err := j.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("jwks: http %d", resp.StatusCode)
	}

	var set struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("jwks: decode: %w", err)
	}
	for _, k := range set.Keys {
		if !strings.EqualFold(k.Kty, "RSA") || k.Kid == "" {
			continue
		}
		pub, err := k.rsa()
		if err != nil {
			continue
		}
		j.cache.SetDefault(k.Kid, pub)
	}
	return nil
}

func (k jwk) rsa() (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eb {
		e = e<<8 | int(b)
	}
	if e == 0 {
		e = 65537
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}

// Package accesstoken models the opaque bearer credentials of the API.
package accesstoken

import (
	"crypto/rand"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// Scopes is stored comma separated
type Scopes []string

// Scan implements sql.Scanner
func (s *Scopes) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("accesstoken: cannot scan %T into Scopes", src)
	}
	out := Scopes{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*s = out
	return nil
}

// Value implements driver.Valuer
func (s Scopes) Value() (driver.Value, error) {
	return strings.Join(s, ","), nil
}

// Contains reports whether every required scope is held, order does not matter
func (s Scopes) Contains(required ...string) bool {
	held := make(map[string]struct{}, len(s))
	for _, scope := range s {
		held[scope] = struct{}{}
	}
	for _, r := range required {
		if _, ok := held[r]; !ok {
			return false
		}
	}
	return true
}

// AccessToken is only ever persisted with the hash of its value
type AccessToken struct {
	ID                       kernel.AccessTokenID `db:"id" json:"id"`
	UserID                   kernel.UserID        `db:"user_id" json:"user_id"`
	TokenHash                string               `db:"token_hash" json:"-"`
	Scopes                   Scopes               `db:"scopes" json:"scopes"`
	Valid                    bool                 `db:"valid" json:"valid"`
	ValidUntil               *time.Time           `db:"valid_until" json:"valid_until"`
	DefaultExpirationMinutes *int                 `db:"default_expiration_minutes" json:"default_expiration_minutes"`
	RenewsWhenUsed           bool                 `db:"renews_when_used" json:"renews_when_used"`
	LastUsedAt               *time.Time           `db:"last_used_at" json:"last_used_at"`
	LastUsedFrom             *string              `db:"last_used_from" json:"last_used_from"`
	Description              string               `db:"description" json:"description"`
	IsAPIToken               bool                 `db:"is_api_token" json:"is_api_token"`
	Data                     kernel.Attributes    `db:"data" json:"data"`
	CreatedAt                time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time            `db:"updated_at" json:"updated_at"`
}

// Issued carries the opaque value, which exists only in the response that
// created the token
type Issued struct {
	*AccessToken
	Token string `json:"token"`
}

// UsableAt reports whether the token authenticates at now. An expired
// token is never usable, whatever its valid flag says.
func (t *AccessToken) UsableAt(now time.Time) bool {
	if !t.Valid {
		return false
	}
	return !t.ExpiredAt(now)
}

// ExpiredAt reports whether valid_until has passed
func (t *AccessToken) ExpiredAt(now time.Time) bool {
	return t.ValidUntil != nil && !t.ValidUntil.After(now)
}

// HasScopes is the authorization check of a request
func (t *AccessToken) HasScopes(required ...string) bool {
	return t.Scopes.Contains(required...)
}

// Touch records a use from addr and slides the expiry of renewing tokens
func (t *AccessToken) Touch(now time.Time, addr string) {
	t.LastUsedAt = &now
	if addr != "" {
		t.LastUsedFrom = &addr
	}
	if t.RenewsWhenUsed && t.DefaultExpirationMinutes != nil && *t.DefaultExpirationMinutes > 0 {
		until := now.Add(time.Duration(*t.DefaultExpirationMinutes) * time.Minute)
		t.ValidUntil = &until
	}
	t.UpdatedAt = now
}

// Revoke invalidates the token and moves its expiry into the past
func (t *AccessToken) Revoke(now time.Time) {
	t.Valid = false
	past := now.Add(-time.Minute)
	t.ValidUntil = &past
	t.UpdatedAt = now
}

// GenerateValue returns a fresh opaque value: 32 random bytes as hex, which
// fits the word characters a bearer header may carry
func GenerateValue() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errx.Wrap(err, "read random bytes", errx.TypeInternal)
	}
	return hex.EncodeToString(b), nil
}

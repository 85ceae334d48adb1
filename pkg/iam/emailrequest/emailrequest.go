// Package emailrequest throttles outbound e-mail triggers per purpose and
// recipient, and lets recipients block a purpose for good.
package emailrequest

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
)

// Purpose names the workflow an e-mail belongs to
type Purpose string

const (
	PurposeSignupConfirmation Purpose = "signup-confirmation"
	PurposePasswordReset      Purpose = "password-reset"
	PurposeInvitation         Purpose = "invitation"
	PurposeEmailChange        Purpose = "email-change"
)

// Decision of a throttle request
type Decision int

const (
	Allowed Decision = iota + 1
	Blocked
	RateLimited
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Blocked:
		return "blocked"
	case RateLimited:
		return "rate-limited"
	}
	return "unknown"
}

// EMailRequest is the counter row of one (purpose, recipient) pair
type EMailRequest struct {
	ID            string     `db:"id"`
	Purpose       Purpose    `db:"purpose"`
	EmailHash     string     `db:"email_hash"`
	TotalRequests int        `db:"total_requests"`
	LastRequestAt *time.Time `db:"last_request_at"`
	Blocked       bool       `db:"blocked"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

var ErrRegistry = errx.NewRegistry("EMAIL_REQUEST")

var (
	CodeRateLimited = ErrRegistry.Register("RATE_LIMITED", errx.TypeRateLimit, http.StatusTooManyRequests, "too many e-mails requested, try again later")
	CodeBlocked     = ErrRegistry.Register("BLOCKED", errx.TypeForbidden, http.StatusForbidden, "the recipient does not accept these e-mails")
)

func ErrRateLimited() *errx.Error { return ErrRegistry.New(CodeRateLimited) }
func ErrBlocked() *errx.Error     { return ErrRegistry.New(CodeBlocked) }

// Err converts a denying decision into its error, nil for Allowed
func (d Decision) Err() error {
	switch d {
	case Blocked:
		return ErrBlocked()
	case RateLimited:
		return ErrRateLimited()
	}
	return nil
}

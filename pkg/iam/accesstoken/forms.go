package accesstoken

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// MaxDescription is the longest description a client may set
const MaxDescription = 80

// APITokenForm is the body of a request creating an API token
type APITokenForm struct {
	Scopes      []string   `json:"scopes"`
	ValidUntil  *time.Time `json:"valid_until"`
	Description string     `json:"description"`
}

// ValidateAt validates the form against the current time
func (f APITokenForm) ValidateAt(now time.Time) error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Scopes, validation.Required),
		validation.Field(&f.ValidUntil, validation.By(inFuture(now))),
		validation.Field(&f.Description, validation.Length(0, MaxDescription)),
	)
}

func inFuture(now time.Time) validation.RuleFunc {
	return func(value interface{}) error {
		t, ok := value.(*time.Time)
		if !ok || t == nil {
			return nil
		}
		if !t.After(now) {
			return errors.New("must be in the future")
		}
		return nil
	}
}

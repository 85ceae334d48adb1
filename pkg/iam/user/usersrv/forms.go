package usersrv

import (
	"regexp"

	"github.com/Abraxas-365/gatekeeper/pkg/formx"
	validation "github.com/go-ozzo/ozzo-validation"
)

var displayName = regexp.MustCompile(`^[a-z0-9\-\._]{4,30}$`)

var displayNameRule = validation.Match(displayName).Error("4 to 30 lower case letters, digits, dots, dashes or underscores")

// ProfilePatch is what users may change on their own account. Nil fields
// stay untouched, Data is merged key by key.
type ProfilePatch struct {
	DisplayName *string        `json:"display_name"`
	Language    *string        `json:"language"`
	Data        map[string]any `json:"data"`

	languages []string
}

func (p ProfilePatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DisplayName, validation.NilOrNotEmpty, displayNameRule),
		validation.Field(&p.Language, validation.NilOrNotEmpty, formx.Language(p.languages)),
	)
}

// CreateForm is the body of an admin creating an account
type CreateForm struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
	Superuser   bool   `json:"superuser"`
	Disabled    bool   `json:"disabled"`

	languages []string
}

func (f CreateForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email, formx.Email...),
		validation.Field(&f.DisplayName, displayNameRule),
		validation.Field(&f.Language, validation.Required, formx.Language(f.languages)),
	)
}

// AdminPatch is what a superuser may change on any account of the tenant
type AdminPatch struct {
	DisplayName *string        `json:"display_name"`
	Email       *string        `json:"email"`
	Superuser   *bool          `json:"superuser"`
	Disabled    *bool          `json:"disabled"`
	Data        map[string]any `json:"data"`
}

func (p AdminPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DisplayName, validation.NilOrNotEmpty, displayNameRule),
		validation.Field(&p.Email, validation.NilOrNotEmpty, validation.By(func(v any) error {
			s, _ := v.(*string)
			if s == nil {
				return nil
			}
			return validation.Validate(*s, formx.Email...)
		})),
	)
}

// ListQuery are the query parameters of the admin listing
type ListQuery struct {
	Offset    int    `query:"offset" json:"offset"`
	Limit     int    `query:"limit" json:"limit"`
	OrderBy   string `query:"order_by" json:"order_by"`
	Direction string `query:"direction" json:"direction"`
}

func (q ListQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Offset, validation.Min(0)),
		validation.Field(&q.Limit, validation.Min(0), validation.Max(1000)),
		validation.Field(&q.OrderBy, validation.In("created", "updated", "email")),
		validation.Field(&q.Direction, validation.In("asc", "desc")),
	)
}

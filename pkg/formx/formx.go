// Package formx binds request bodies and turns ozzo validation failures into
// field level errx errors.
package formx

import (
	"errors"
	"regexp"
	"sort"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
)

// Validatable is implemented by request payloads
type Validatable interface {
	Validate() error
}

// Bind parses the body of c into out and validates it
func Bind(c *fiber.Ctx, out Validatable) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(out); err != nil {
			return errx.Invalid(errx.FieldErrors{"body": {"malformed request body"}})
		}
	}
	return Check(out)
}

// Check validates v and converts the outcome
func Check(v Validatable) error {
	return FromValidation(v.Validate())
}

// FromValidation converts ozzo errors into an errx validation error. Nested
// struct errors are flattened with dotted names.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}

	var internal validation.InternalError
	if errors.As(err, &internal) {
		return errx.Wrap(internal.InternalError(), "validation rule failed", errx.TypeInternal)
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		var e *errx.Error
		if errors.As(err, &e) {
			return e
		}
		return errx.Invalid(errx.FieldErrors{"body": {err.Error()}})
	}

	fields := errx.FieldErrors{}
	flatten("", verrs, fields)
	return errx.Invalid(fields)
}

func flatten(prefix string, verrs validation.Errors, out errx.FieldErrors) {
	keys := make([]string, 0, len(verrs))
	for k := range verrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		var nested validation.Errors
		if errors.As(verrs[k], &nested) {
			flatten(name, nested, out)
			continue
		}
		out.Add(name, verrs[k].Error())
	}
}

// Email is the rule set every e-mail field goes through
var Email = []validation.Rule{validation.Required, validation.Length(3, 254), is.Email}

// MaxPasswordBytes is the longest password bcrypt can hash
const MaxPasswordBytes = 72

// Password is the accepted shape of a new password. ozzo's Length counts
// bytes, which is what the bcrypt limit is about.
var Password = []validation.Rule{validation.Required, validation.Length(8, MaxPasswordBytes)}

var invitationToken = regexp.MustCompile(`^[a-z0-9]{16,32}$`)

// InvitationToken validates the opaque token of an invitation
var InvitationToken = validation.Match(invitationToken).Error("must be 16 to 32 lower case letters or digits")

// Language restricts a field to the configured languages
func Language(languages []string) validation.Rule {
	in := make([]any, len(languages))
	for i, l := range languages {
		in[i] = l
	}
	return validation.In(in...).Error("unsupported language")
}

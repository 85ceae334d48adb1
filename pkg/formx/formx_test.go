package formx

import (
	"testing"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupForm struct {
	Email      string `json:"email"`
	Language   string `json:"language"`
	Invitation string `json:"invitation"`
}

func (f signupForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email, Email...),
		validation.Field(&f.Language, validation.Required, Language([]string{"en", "de"})),
		validation.Field(&f.Invitation, InvitationToken),
	)
}

func TestCheckCollectsFieldReasons(t *testing.T) {
	err := Check(signupForm{Email: "nope", Language: "fr", Invitation: "UPPER"})
	require.Error(t, err)

	var e *errx.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errx.TypeValidation, e.Type)
	assert.Equal(t, []string{"email", "invitation", "language"}, e.Fields.Fields())
}

func TestCheckAcceptsValidForm(t *testing.T) {
	err := Check(signupForm{Email: "a@b.com", Language: "en", Invitation: "abcdefghij012345"})
	assert.NoError(t, err)
}

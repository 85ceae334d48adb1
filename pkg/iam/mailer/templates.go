package mailer

import "github.com/Abraxas-365/gatekeeper/pkg/notifx"

const blockFooter = `{{if .BlockLink}}

If you did not ask for this e-mail you can stop further ones: {{.BlockLink}}{{end}}`

var templates = map[string]notifx.Template{
	SignupConfirmation: {
		Subject: "Confirm your account",
		Text:    "Please confirm your account by opening {{.Link}}" + blockFooter,
	},
	SignupRequested: {
		Subject: "New signup request",
		Text:    "{{.Applicant}} asked for an account and waits for approval.",
	},
	Welcome: {
		Subject: "Welcome",
		Text:    "Your account {{.Email}} is ready.",
	},
	PasswordReset: {
		Subject: "Reset your password",
		Text:    "Open {{.Link}} to choose a new password. The link is valid for one day." + blockFooter,
	},
	PasswordChanged: {
		Subject: "Your password was changed",
		Text:    "The password of {{.Email}} was changed. Contact us if this was not you.",
	},
	EmailChange: {
		Subject: "Confirm your new e-mail address",
		Text:    "Use the code {{.Code}} to confirm {{.Email}} as your new address." + blockFooter,
	},
	EmailChanged: {
		Subject: "Your e-mail address was changed",
		Text:    "Your account now uses {{.NewEmail}} instead of {{.Email}}. Contact us if this was not you.",
	},
	Invitation: {
		Subject: "You are invited",
		Text:    "{{if .Message}}{{.Message}}\n\n{{end}}Sign up with the invitation code {{.Token}}: {{.Link}}" + blockFooter,
	},
}

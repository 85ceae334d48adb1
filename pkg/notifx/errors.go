package notifx

import (
	"net/http"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("NOTIFX")

var (
	CodeSendFailed       = ErrRegistry.Register("SEND_FAILED", errx.TypeExternal, http.StatusBadGateway, "failed to send email")
	CodeInvalidMessage   = ErrRegistry.Register("INVALID_MESSAGE", errx.TypeValidation, http.StatusBadRequest, "invalid email message")
	CodeTemplateNotFound = ErrRegistry.Register("TEMPLATE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "email template not found")
	CodeTemplateParse    = ErrRegistry.Register("TEMPLATE_PARSE", errx.TypeInternal, http.StatusInternalServerError, "failed to parse email template")
	CodeTemplateRender   = ErrRegistry.Register("TEMPLATE_RENDER", errx.TypeInternal, http.StatusInternalServerError, "failed to render email template")
)

func ErrSendFailed(err error) *errx.Error { return ErrRegistry.NewWithCause(CodeSendFailed, err) }
func ErrInvalidMessage(reason string) *errx.Error {
	return ErrRegistry.New(CodeInvalidMessage).WithDetail("reason", reason)
}
func ErrTemplateNotFound(name string) *errx.Error {
	return ErrRegistry.New(CodeTemplateNotFound).WithDetail("template", name)
}

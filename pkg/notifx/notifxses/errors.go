package notifxses

import (
	"net/http"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("NOTIFX_SES")

var CodeSendFailed = ErrRegistry.Register("SEND_FAILED", errx.TypeExternal, http.StatusBadGateway, "SES send email failed")

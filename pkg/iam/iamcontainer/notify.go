package iamcontainer

import (
	"context"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx/notifxconsole"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx/notifxses"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx/notifxsmtp"
)

// NewEmailSender builds the delivery provider named by cfg.Provider
func NewEmailSender(ctx context.Context, cfg config.NotifxConfig) (notifx.EmailSender, error) {
	switch cfg.Provider {
	case "ses":
		return notifxses.NewFromRegion(ctx, cfg.AWSRegion)
	case "smtp":
		return notifxsmtp.NewFromConfig(cfg), nil
	default:
		return notifxconsole.NewConsoleProvider(), nil
	}
}

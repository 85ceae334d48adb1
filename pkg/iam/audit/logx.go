package audit

import (
	"context"

	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
)

// LogxService implements Service using structured logx logging.
type LogxService struct {
	clock kernel.Clock
}

func NewLogxService(clock kernel.Clock) *LogxService {
	if clock == nil {
		clock = kernel.SystemClock
	}
	return &LogxService{clock: clock}
}

func (s *LogxService) entry(ctx context.Context, event string, fields logx.Fields) *logx.Entry {
	fields["audit_event"] = event
	fields["timestamp"] = s.clock.Now()
	return logx.WithContext(ctx).WithFields(fields)
}

func (s *LogxService) LogLoginAttempt(ctx context.Context, userID kernel.UserID, tenantID kernel.TenantID, method string, success bool, ip string, userAgent string) {
	s.entry(ctx, "login_attempt", logx.Fields{
		"user_id":    userID,
		"tenant_id":  tenantID,
		"method":     method,
		"success":    success,
		"ip":         ip,
		"user_agent": userAgent,
	}).Info("Audit: login attempt")
}

func (s *LogxService) LogLogout(ctx context.Context, userID kernel.UserID, tenantID kernel.TenantID, ip string) {
	s.entry(ctx, "logout", logx.Fields{
		"user_id":   userID,
		"tenant_id": tenantID,
		"ip":        ip,
	}).Info("Audit: logout")
}

func (s *LogxService) LogTokenIssued(ctx context.Context, userID kernel.UserID, tokenID kernel.AccessTokenID, kind string) {
	s.entry(ctx, "token_issued", logx.Fields{
		"user_id":  userID,
		"token_id": tokenID,
		"kind":     kind,
	}).Info("Audit: access token issued")
}

func (s *LogxService) LogTokenRevoked(ctx context.Context, userID kernel.UserID, tokenID kernel.AccessTokenID, by kernel.UserID) {
	s.entry(ctx, "token_revoked", logx.Fields{
		"user_id":    userID,
		"token_id":   tokenID,
		"revoked_by": by,
	}).Info("Audit: access token revoked")
}

func (s *LogxService) LogAccountCreated(ctx context.Context, userID kernel.UserID, tenantID kernel.TenantID, method string) {
	s.entry(ctx, "account_created", logx.Fields{
		"user_id":   userID,
		"tenant_id": tenantID,
		"method":    method,
	}).Info("Audit: account created")
}

func (s *LogxService) LogAccountLinked(ctx context.Context, userID kernel.UserID, tenantID kernel.TenantID, method string) {
	s.entry(ctx, "account_linked", logx.Fields{
		"user_id":   userID,
		"tenant_id": tenantID,
		"method":    method,
	}).Info("Audit: account linked")
}

func (s *LogxService) LogEmailChanged(ctx context.Context, userID kernel.UserID, tenantID kernel.TenantID) {
	s.entry(ctx, "email_changed", logx.Fields{
		"user_id":   userID,
		"tenant_id": tenantID,
	}).Info("Audit: e-mail changed")
}

func (s *LogxService) LogPasswordChanged(ctx context.Context, userID kernel.UserID, tenantID kernel.TenantID, reset bool) {
	s.entry(ctx, "password_changed", logx.Fields{
		"user_id":   userID,
		"tenant_id": tenantID,
		"reset":     reset,
	}).Info("Audit: password changed")
}

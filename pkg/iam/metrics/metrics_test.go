package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/Abraxas-365/gatekeeper/pkg/iam/emailrequest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := metrics.New()
	c.AuthOutcome("ok")
	c.AuthOutcome("ok")
	c.AuthOutcome("ACCESS_TOKEN_CREDENTIAL_EXPIRED")
	c.ThrottleDecision(emailrequest.PurposePasswordReset, emailrequest.RateLimited)
	c.MailSent("welcome", nil)
	c.MailSent("welcome", errors.New("down"))

	n, err := testutil.GatherAndCount(c.Registry(),
		"gatekeeper_auth_outcomes_total",
		"gatekeeper_email_requests_total",
		"gatekeeper_mails_sent_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestMetricsRoute(t *testing.T) {
	c := metrics.New()
	c.ThrottleDecision(emailrequest.PurposeInvitation, emailrequest.Allowed)

	app := fiber.New()
	c.RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `gatekeeper_email_requests_total{decision="allowed",purpose="invitation"} 1`)
}

// Package metrics counts authentication outcomes and throttle decisions
// and exposes them in the Prometheus text format.
package metrics

import (
	"github.com/Abraxas-365/gatekeeper/pkg/iam/emailrequest"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gatekeeper"

// Collector implements auth.Observer and emailrequest.Observer
type Collector struct {
	registry  *prometheus.Registry
	auth      *prometheus.CounterVec
	throttle  *prometheus.CounterVec
	mailsSent *prometheus.CounterVec
}

// New builds a Collector on its own registry, together with the Go runtime
// and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_outcomes_total",
			Help:      "Authentications by outcome: ok, anonymous or the error code.",
		}, []string{"outcome"}),
		throttle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_requests_total",
			Help:      "E-mail requests by purpose and throttle decision.",
		}, []string{"purpose", "decision"}),
		mailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mails_sent_total",
			Help:      "Delivered mails by template and result.",
		}, []string{"template", "result"}),
	}
	c.registry.MustRegister(
		c.auth,
		c.throttle,
		c.mailsSent,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) AuthOutcome(outcome string) {
	c.auth.WithLabelValues(outcome).Inc()
}

func (c *Collector) ThrottleDecision(purpose emailrequest.Purpose, d emailrequest.Decision) {
	c.throttle.WithLabelValues(string(purpose), d.String()).Inc()
}

// MailSent records one delivery attempt of template
func (c *Collector) MailSent(template string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	c.mailsSent.WithLabelValues(template, result).Inc()
}

// Registry exposes the underlying registry, mainly for tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry on a fiber route
func (c *Collector) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}

func (c *Collector) RegisterRoutes(r fiber.Router) {
	r.Get("/metrics", c.Handler())
}

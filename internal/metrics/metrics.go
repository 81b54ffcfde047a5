package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultCreated      = "created"
	ResultDuplicate    = "duplicate"
	ResultInvalid      = "invalid"
	ResultRemoved      = "removed"
	ResultNotFound     = "not_found"
	ResultMissingToken = "missing_token"
	ResultError        = "error"
	ResultSent         = "sent"
	ResultFailed       = "failed"
)

type Metrics struct {
	reg             *prometheus.Registry
	Subscriptions   *prometheus.CounterVec
	Unsubscriptions *prometheus.CounterVec
	RateLimited     prometheus.Counter
	EmailsSent      *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		reg: reg,
		Subscriptions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_subscriptions_total",
			Help: "Subscribe requests by outcome.",
		}, []string{"result"}),
		Unsubscriptions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_unsubscriptions_total",
			Help: "Unsubscribe requests by outcome.",
		}, []string{"result"}),
		RateLimited: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "newsletter_rate_limited_total",
			Help: "Subscribe requests rejected by the rate limiter.",
		}),
		EmailsSent: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_emails_sent_total",
			Help: "Outbound e-mails by kind and result.",
		}, []string{"kind", "result"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Subscriptions.WithLabelValues(ResultCreated).Inc()
	m.RateLimited.Inc()
	m.EmailsSent.WithLabelValues("welcome", ResultSent).Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Subscriptions.WithLabelValues(ResultCreated)))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `newsletter_subscriptions_total{result="created"} 1`)
	assert.Contains(t, string(body), "newsletter_rate_limited_total 1")
	assert.Contains(t, string(body), `newsletter_emails_sent_total{kind="welcome",result="sent"} 1`)
}

func TestNew_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

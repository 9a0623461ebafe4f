package observability_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hotel_booking/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record one sample per family so they show up in the exposition
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)
	observability.ObserveBooking("created")
	observability.ObserveWebhook("paid")
	observability.ObserveInvoiceRetry("abandoned")

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, name := range []string{
		"hotel_http_requests_total",
		"hotel_booking_attempts_total",
		"hotel_payment_webhooks_total",
		"hotel_invoice_retries_total",
	} {
		require.True(t, strings.Contains(out, name), "missing %s", name)
	}
}

func TestNewServer_ServesMetrics(t *testing.T) {
	srv := observability.NewServer(":0", observability.InitRegistry())
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestLabelErr(t *testing.T) {
	require.Equal(t, "none", observability.LabelErr(nil))
	require.Equal(t, "*errors.errorString", observability.LabelErr(errors.New("x")))
}

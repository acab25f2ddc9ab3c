package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest(http.MethodGet, "/v1/orgs/{orgID}", http.StatusOK, 10*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/v1/orgs/{orgID}", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/v1/orgs/{orgID}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))
}

func TestRejected(t *testing.T) {
	m := New()

	m.Rejected("InvariantViolation", "LastAdmin")
	m.Rejected("InvariantViolation", "LastAdmin")
	m.Rejected("Forbidden", "AdminRequired")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rejections.WithLabelValues("InvariantViolation", "LastAdmin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("Forbidden", "AdminRequired")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.Rejected("Conflict", "AlreadyInvited")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "expense_orgs_rejections_total"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

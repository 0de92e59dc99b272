package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSubmission(t *testing.T) {
	m := New()
	m.RecordSubmission(OutcomeSubmitted)
	m.RecordSubmission(OutcomeSubmitted)
	m.RecordSubmission(OutcomeValidation)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues(string(OutcomeSubmitted))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues(string(OutcomeValidation))))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.submissions.WithLabelValues(string(OutcomeCreateFailed))))
}

func TestRecordSelection(t *testing.T) {
	m := New()
	m.RecordSelection()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.selections))
}

func TestObserveCallSplitsResults(t *testing.T) {
	m := New()
	m.ObserveCall("Get", 20*time.Millisecond, nil)
	m.ObserveCall("Add", 10*time.Millisecond, errors.New("boom"))

	count, err := testutil.GatherAndCount(m.Registry(), "driver_activity_remote_call_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.RecordSubmission(OutcomeIdentityFailed)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `driver_activity_submissions_total{outcome="identity_failed"} 1`))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordSubmission(OutcomeSubmitted)
	m.RecordSelection()
	m.ObserveCall("Get", time.Second, nil)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

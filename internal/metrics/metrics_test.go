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

func TestNewCollectorStaticGauges(t *testing.T) {
	c := NewCollector(4, 500*time.Millisecond)

	assert.Equal(t, 4.0, testutil.ToFloat64(c.SpeedMultiplier))
	assert.Equal(t, 0.5, testutil.ToFloat64(c.TickInterval))
	assert.Zero(t, testutil.ToFloat64(c.TripsStarted))
}

func TestCollectorLabelledCounters(t *testing.T) {
	c := NewCollector(1, time.Second)

	c.TicketValidations.WithLabelValues("accepted").Inc()
	c.TicketValidations.WithLabelValues("accepted").Inc()
	c.TicketValidations.WithLabelValues("rejected").Inc()
	c.StationQueue.WithLabelValues("st-1").Set(12)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.TicketValidations.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TicketValidations.WithLabelValues("rejected")))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.StationQueue.WithLabelValues("st-1")))

	err := testutil.CollectAndCompare(c.Accidents, strings.NewReader(""))
	assert.NoError(t, err, "no accident series before the first accident")
}

func TestHandlerExposesRegistry(t *testing.T) {
	c := NewCollector(1, time.Second)
	c.PassengersBoarded.Add(7)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "transit_passengers_boarded_total 7")
}

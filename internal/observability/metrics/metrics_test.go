package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetricsMiddleware)
	r.Get("/hospital/blood-requests/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/hospital/blood-requests/{id}", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/hospital/blood-requests/abc", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/hospital/blood-requests/{id}", "404"))

	assert.Equal(t, before+1, after)
}

func TestObserveDonorsNotified_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(donorsNotified)
	ObserveDonorsNotified(0)
	ObserveDonorsNotified(3)
	assert.Equal(t, before+3, testutil.ToFloat64(donorsNotified))
}

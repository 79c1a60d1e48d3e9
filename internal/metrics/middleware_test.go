package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByStatusAndRoute(t *testing.T) {
	Init()
	okBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "200"))
	badBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "400"))

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Post("/v1/harvest", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("bad") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	for _, target := range []string{"/v1/harvest", "/v1/harvest?bad=1"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
	}

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "200")); got != okBefore+1 {
		t.Errorf("expected one more POST 200, got %f", got-okBefore)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "400")); got != badBefore+1 {
		t.Errorf("expected one more POST 400, got %f", got-badBefore)
	}
	if n := testutil.CollectAndCount(httpRequestDurationSeconds, "http_request_duration_seconds"); n == 0 {
		t.Error("expected request durations to be observed")
	}
}

func TestMiddlewareWithoutRouteContext(t *testing.T) {
	Init()
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "204"))

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "204")); got != before+1 {
		t.Errorf("expected request without a chi route to be counted")
	}
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Post("/ask", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	before422 := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "422"))
	before200 := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", nil))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, before422+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "422")))
	require.Equal(t, before200+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200")))
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
}

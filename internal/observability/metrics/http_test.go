package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTP_RecordsRoutePattern(t *testing.T) {
	m := NewHTTP()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/issues/{issueID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/issues/42", nil))
	m.Denied("PermissionDenied")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `http_requests_total{method="GET",route="/issues/{issueID}",status="418"} 1`)
	assert.Contains(t, string(body), `pinpoint_authz_denials_total{kind="PermissionDenied"} 1`)
}

func TestNewMeter_Disabled(t *testing.T) {
	c, err := NewMeter(Config{}).Int64Counter("pinpoint.authz.decisions")
	require.NoError(t, err)
	assert.NotNil(t, c)
	c.Add(context.Background(), 1)
}

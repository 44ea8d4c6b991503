package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	h := RequestLogger(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nvr/sync-logs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestJobSecret(t *testing.T) {
	h := JobSecret("s3cret")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/nvr/sync-all", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "missing header")

	req = httptest.NewRequest(http.MethodPost, "/api/jobs/nvr/sync-all", nil)
	req.Header.Set("x-job-secret", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "wrong secret")

	req = httptest.NewRequest(http.MethodPost, "/api/jobs/nvr/sync-all", nil)
	req.Header.Set("x-job-secret", "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJobSecret_EmptyConfiguredAlwaysForbidden(t *testing.T) {
	h := JobSecret("")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/nvr/sync-all", nil)
	req.Header.Set("x-job-secret", "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

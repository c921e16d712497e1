package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourist-overwatch/pkg/engine/session"
	"tourist-overwatch/pkg/metrics"
	"tourist-overwatch/pkg/registry"
)

type stubLookup map[string]*session.Session

func (s stubLookup) Session(token string) (*session.Session, error) {
	sess, ok := s[token]
	if !ok {
		return nil, errors.New("session not found")
	}
	return sess, nil
}

func TestBearerAuth(t *testing.T) {
	reg, err := registry.New(registry.SeedTourists())
	require.NoError(t, err)
	sess, err := session.New(session.Options{ID: "s1", Registry: reg})
	require.NoError(t, err)

	auth := BearerAuth(stubLookup{"good": sess})
	handler := auth(func(w http.ResponseWriter, r *http.Request) {
		got, ok := SessionFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "s1", got.ID())
		token, _ := TokenFromContext(r.Context())
		assert.Equal(t, "good", token)
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/alerts", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, called)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	c := metrics.NewCollector()
	h := RequestLogger(nil, c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tourists", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues(http.MethodGet, "/api/v1/tourists", "404")))
}

package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/todaycapital/statementlens/internal/api"
	mw "github.com/todaycapital/statementlens/internal/api/middleware"
	"github.com/todaycapital/statementlens/internal/auth"
	"github.com/todaycapital/statementlens/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub authenticator that accepts a single token ---

var testUserID = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")

type stubAuthn struct{}

func (stubAuthn) Authenticate(_ context.Context, token string) (uuid.UUID, error) {
	if token == "good" {
		return testUserID, nil
	}
	return uuid.Nil, auth.ErrInvalidToken
}

// --- stub cache ---

type stubCache struct {
	cache.Cache
}

func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- router tests ---

func echoUser(w http.ResponseWriter, r *http.Request) {
	id, ok := mw.GetUserID(r)
	if !ok {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`anonymous`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(id.String()))
}

func newTestRouter() http.Handler {
	return api.NewRouter(api.Dependencies{
		Auth:        mw.NewAuth(stubAuthn{}),
		RateLimit:   mw.NewRateLimit(&stubCache{}, 60),
		FrontendURL: "https://app.example.com",
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
		QuickAnalyze: echoUser,
		GetReport:    echoUser,
	})
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter()

	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/auth/me"},
		{"PUT", "/api/auth/profile"},
		{"POST", "/api/statements/upload"},
		{"GET", "/api/statements"},
		{"DELETE", "/api/statements/" + uuid.NewString()},
		{"POST", "/api/statements/analyze"},
		{"POST", "/api/reports"},
		{"GET", "/api/reports"},
		{"GET", "/api/reports/latest"},
		{"GET", "/api/reports/history/monthly"},
		{"GET", "/api/reports/" + uuid.NewString()},
		{"POST", "/api/reports/" + uuid.NewString() + "/add-statements"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "INVALID_TOKEN", errObj["code"])
		})
	}
}

func TestRouter_PublicEndpoints_Unwired(t *testing.T) {
	router := newTestRouter()

	for _, path := range []string{"/api/auth/register", "/api/auth/login", "/api/leads"} {
		req := httptest.NewRequest("POST", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotImplemented, w.Code, path)
	}
}

func TestRouter_AuthenticatedRouteSeesUser(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/reports/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testUserID.String(), w.Body.String())
}

func TestRouter_QuickAnalyze_OptionalAuth(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("POST", "/api/statements/quick-analyze", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "anonymous", w.Body.String())

	req = httptest.NewRequest("POST", "/api/statements/quick-analyze", nil)
	req.Header.Set("Authorization", "Bearer good")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, testUserID.String(), w.Body.String())
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("OPTIONS", "/api/reports", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pageza/nutriplan/backend/internal/middleware"
	"github.com/pageza/nutriplan/backend/internal/service"
	"github.com/pageza/nutriplan/backend/internal/testutil/mocks"
	"github.com/pageza/nutriplan/backend/internal/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router  *gin.Engine
	store   *service.MemorySessionStore
	tokens  *service.SessionTokens
	plans   *mocks.MockPlanService
	meals   *mocks.MockMealService
	catalog *mocks.MockCatalog
}

func setupTestRouter(t *testing.T, limiter middleware.Limiter) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   service.NewMemorySessionStore(time.Hour),
		tokens:  service.NewSessionTokens("test-secret", time.Hour),
		plans:   new(mocks.MockPlanService),
		meals:   new(mocks.MockMealService),
		catalog: new(mocks.MockCatalog),
	}
	env.router = gin.New()
	RegisterRoutes(env.router, Services{
		Sessions:    env.store,
		Tokens:      env.tokens,
		Plans:       env.plans,
		Meals:       env.meals,
		Catalog:     env.catalog,
		PlanLimiter: limiter,
		Logger:      zap.NewNop(),
	})
	return env
}

// createSession starts a session through the API and returns it with its token.
func (e *testEnv) createSession(t *testing.T) (string, string) {
	t.Helper()
	w := PerformRequestWithToken(e.router, http.MethodPost, "/api/v1/sessions", nil, "")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp types.CreateSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.SessionID, resp.Token
}

// PerformRequestWithToken sends a JSON request with an optional bearer token.
func PerformRequestWithToken(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pageza/nutriplan/backend/internal/middleware"
	"github.com/pageza/nutriplan/backend/internal/service"
	"github.com/pageza/nutriplan/backend/internal/testutil"
	"github.com/pageza/nutriplan/backend/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const samplePlan = service.SummaryMarker + "\n- Eat more fiber\n" + service.PlanMarker + "\nDay 1: oats"

func planBody(profile types.UserProfile, query string) map[string]interface{} {
	return map[string]interface{}{"profile": profile, "query": query}
}

func TestGeneratePlan(t *testing.T) {
	env := setupTestRouter(t, nil)
	id, token := env.createSession(t)
	factory := testutil.NewProfileFactory(7)
	profile := factory.Profile()
	query := factory.Query()
	want, err := service.ComputeTargets(profile)
	require.NoError(t, err)

	env.plans.On("Generate", mock.Anything, mock.MatchedBy(func(s types.Session) bool { return s.ID == id }),
		service.PlanRequest{Profile: profile, Query: query}).
		Return(func(_ context.Context, s types.Session, req service.PlanRequest) types.Session {
			return s.WithTurn(types.ConversationTurn{User: req.Query, Assistant: samplePlan})
		}, &types.PlanResult{Raw: samplePlan, Summary: "- Eat more fiber", Plan: "Day 1: oats", Targets: want}, nil)

	w := PerformRequestWithToken(env.router, http.MethodPost, "/api/v1/plans", planBody(profile, query), token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp types.PlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Day 1: oats", resp.Plan)
	assert.Equal(t, want, resp.Targets)

	stored, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, stored.Turns, 1)
	assert.Equal(t, samplePlan, stored.LastPlan)

	w = PerformRequestWithToken(env.router, http.MethodGet, "/api/v1/plans/last", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var last types.PlanResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &last))
	assert.Equal(t, "- Eat more fiber", last.Summary)
	assert.Equal(t, "Day 1: oats", last.Plan)
}

func TestGeneratePlanErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"empty query", service.ErrEmptyQuery, http.StatusBadRequest},
		{"index unavailable", fmt.Errorf("search failed: %w", service.ErrIndexUnavailable), http.StatusServiceUnavailable},
		{"generation", service.ErrGeneration, http.StatusBadGateway},
		{"canceled", service.ErrCanceled, StatusClientClosedRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestRouter(t, nil)
			id, token := env.createSession(t)
			profile := testutil.NewProfileFactory(1).Profile()
			env.plans.On("Generate", mock.Anything, mock.Anything, mock.Anything).
				Return(types.Session{}, nil, tt.err)

			w := PerformRequestWithToken(env.router, http.MethodPost, "/api/v1/plans", planBody(profile, "q"), token)
			assert.Equal(t, tt.status, w.Code)

			stored, err := env.store.Get(context.Background(), id)
			require.NoError(t, err)
			assert.Empty(t, stored.Turns)
		})
	}
}

func TestGeneratePlanRequiresProfile(t *testing.T) {
	env := setupTestRouter(t, nil)
	_, token := env.createSession(t)

	w := PerformRequestWithToken(env.router, http.MethodPost, "/api/v1/plans", map[string]string{"query": "hi"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env.plans.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestLastPlanWithoutPlan(t *testing.T) {
	env := setupTestRouter(t, nil)
	_, token := env.createSession(t)

	w := PerformRequestWithToken(env.router, http.MethodGet, "/api/v1/plans/last", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGeneratePlanRateLimited(t *testing.T) {
	limiter := middleware.NewLocalRateLimiter(middleware.RateLimitConfig{Window: time.Hour, Limit: 1})
	env := setupTestRouter(t, limiter)
	_, token := env.createSession(t)
	profile := testutil.NewProfileFactory(3).Profile()
	env.plans.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(func(_ context.Context, s types.Session, _ service.PlanRequest) types.Session { return s },
			&types.PlanResult{Plan: "Day 1"}, nil)

	w := PerformRequestWithToken(env.router, http.MethodPost, "/api/v1/plans", planBody(profile, "q"), token)
	assert.Equal(t, http.StatusOK, w.Code)
	w = PerformRequestWithToken(env.router, http.MethodPost, "/api/v1/plans", planBody(profile, "q"), token)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestGeneratePlanOneAtATimePerSession(t *testing.T) {
	limiter := middleware.NewLocalRateLimiter(middleware.RateLimitConfig{Window: time.Hour, Limit: 2})
	env := setupTestRouter(t, limiter)
	_, token := env.createSession(t)
	profile := testutil.NewProfileFactory(5).Profile()

	started := make(chan struct{})
	release := make(chan struct{})
	env.plans.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(func(_ context.Context, s types.Session, _ service.PlanRequest) types.Session { return s },
			&types.PlanResult{Plan: "Day 1"}, nil).Once()

	var wg sync.WaitGroup
	var first *httptest.ResponseRecorder
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = PerformRequestWithToken(env.router, http.MethodPost, "/api/v1/plans", planBody(profile, "q"), token)
	}()

	<-started
	second := PerformRequestWithToken(env.router, http.MethodPost, "/api/v1/plans", planBody(profile, "q"), token)
	assert.Equal(t, http.StatusConflict, second.Code)

	close(release)
	wg.Wait()
	assert.Equal(t, http.StatusOK, first.Code)

	// The conflicting request did not spend quota.
	env.plans.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(func(_ context.Context, s types.Session, _ service.PlanRequest) types.Session { return s },
			&types.PlanResult{Plan: "Day 2"}, nil)
	third := PerformRequestWithToken(env.router, http.MethodPost, "/api/v1/plans", planBody(profile, "q"), token)
	assert.Equal(t, http.StatusOK, third.Code)
}

func TestRateLimitSkipsRejectedPlanRequests(t *testing.T) {
	limiter := middleware.NewLocalRateLimiter(middleware.RateLimitConfig{Window: time.Hour, Limit: 1})
	env := setupTestRouter(t, limiter)
	_, token := env.createSession(t)
	profile := testutil.NewProfileFactory(9).Profile()
	env.plans.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(func(_ context.Context, s types.Session, _ service.PlanRequest) types.Session { return s },
			&types.PlanResult{Plan: "Day 1"}, nil)

	w := PerformRequestWithToken(env.router, http.MethodPost, "/api/v1/plans", planBody(profile, "   "), token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = PerformRequestWithToken(env.router, http.MethodPost, "/api/v1/plans", map[string]string{"query": "x"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = PerformRequestWithToken(env.router, http.MethodPost, "/api/v1/plans", planBody(profile, "q"), token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

// A meal upload that read the session before a plan started must not
// overwrite the plan's turn when it saves.
func TestMealUploadAndPlanDoNotOverwriteEachOther(t *testing.T) {
	env := setupTestRouter(t, nil)
	id, token := env.createSession(t)
	profile := testutil.NewProfileFactory(11).Profile()
	image := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

	started := make(chan struct{})
	release := make(chan struct{})
	env.meals.On("Analyze", mock.Anything, image, "image/png").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&types.ImageAnalysis{Description: "Detected food items: rice"}, nil).Once()
	env.plans.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(func(_ context.Context, s types.Session, req service.PlanRequest) types.Session {
			return s.WithTurn(types.ConversationTurn{User: req.Query, Assistant: samplePlan})
		}, &types.PlanResult{Raw: samplePlan, Plan: "Day 1: oats"}, nil)

	var wg sync.WaitGroup
	var meal *httptest.ResponseRecorder
	wg.Add(1)
	go func() {
		defer wg.Done()
		meal = postImage(t, env, token, image)
	}()
	<-started

	w := PerformRequestWithToken(env.router, http.MethodPost, "/api/v1/plans", planBody(profile, "q"), token)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = PerformRequestWithToken(env.router, http.MethodDelete, "/api/v1/sessions", nil, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	close(release)
	wg.Wait()
	require.Equal(t, http.StatusOK, meal.Code)

	w = PerformRequestWithToken(env.router, http.MethodPost, "/api/v1/plans", planBody(profile, "q"), token)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, stored.Turns, 1)
	assert.Equal(t, samplePlan, stored.LastPlan)
	require.NotNil(t, stored.LastImage)
	assert.Equal(t, "Detected food items: rice", stored.LastImage.Description)
}

func TestMealUploadRejectedWhilePlanRuns(t *testing.T) {
	env := setupTestRouter(t, nil)
	id, token := env.createSession(t)
	profile := testutil.NewProfileFactory(13).Profile()

	started := make(chan struct{})
	release := make(chan struct{})
	env.plans.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(func(_ context.Context, s types.Session, req service.PlanRequest) types.Session {
			return s.WithTurn(types.ConversationTurn{User: req.Query, Assistant: samplePlan})
		}, &types.PlanResult{Raw: samplePlan}, nil).Once()

	var wg sync.WaitGroup
	var plan *httptest.ResponseRecorder
	wg.Add(1)
	go func() {
		defer wg.Done()
		plan = PerformRequestWithToken(env.router, http.MethodPost, "/api/v1/plans", planBody(profile, "q"), token)
	}()
	<-started

	meal := postImage(t, env, token, append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...))
	assert.Equal(t, http.StatusConflict, meal.Code)
	env.meals.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything)

	close(release)
	wg.Wait()
	require.Equal(t, http.StatusOK, plan.Code)

	stored, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, stored.Turns, 1)
}

func TestAnalyzeMeal(t *testing.T) {
	env := setupTestRouter(t, nil)
	id, token := env.createSession(t)

	// PNG signature followed by padding is enough for content sniffing.
	image := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	analysis := &types.ImageAnalysis{
		Description: "Detected food items: salad",
		Labels:      []string{"salad"},
		Macros:      types.ImageMacros{Calories: 150, Protein: 4, Carbs: 12},
	}
	env.meals.On("Analyze", mock.Anything, image, "image/png").Return(analysis, nil)

	w := postImage(t, env, token, image)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, stored.LastImage)
	assert.Equal(t, 150, stored.LastImage.Macros.Calories)
}

func TestAnalyzeMealRejectsNonImages(t *testing.T) {
	env := setupTestRouter(t, nil)
	_, token := env.createSession(t)

	w := postImage(t, env, token, []byte("just some text"))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	env.meals.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything)
}

func postImage(t *testing.T, env *testEnv, token string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "meal.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/meals/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

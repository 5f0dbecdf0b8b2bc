package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pageza/nutriplan/backend/internal/middleware"
	"github.com/pageza/nutriplan/backend/internal/service"
	"github.com/pageza/nutriplan/backend/internal/types"
	"go.uber.org/zap"
)

// PlanHandler generates meal plans for a session.
type PlanHandler struct {
	plans    service.IPlanService
	sessions service.ISessionStore
	locks    *SessionLocks
	limiter  middleware.Limiter
	logger   *zap.Logger
}

// NewPlanHandler creates a plan handler. limiter may be nil.
func NewPlanHandler(plans service.IPlanService, sessions service.ISessionStore, locks *SessionLocks, limiter middleware.Limiter, logger *zap.Logger) *PlanHandler {
	return &PlanHandler{
		plans:    plans,
		sessions: sessions,
		locks:    locks,
		limiter:  limiter,
		logger:   logger.Named("plan-handler"),
	}
}

func (h *PlanHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	plans := router.Group("/plans")
	plans.Use(auth)
	plans.POST("", h.Generate)
	plans.GET("/last", h.Last)
}

// Generate runs the planning pipeline and stores the updated session. Only
// requests that pass validation and own the session count against the
// rate limit.
func (h *PlanHandler) Generate(c *gin.Context) {
	var req types.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(c, service.ErrEmptyQuery)
		return
	}

	sessionID := c.GetString(middleware.SessionIDKey)
	if !acquireOrConflict(c, h.locks, sessionID) {
		return
	}
	defer h.locks.Release(sessionID)

	if h.limiter != nil && !middleware.AllowRequest(c, h.limiter) {
		return
	}

	ctx := c.Request.Context()
	session, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	updated, result, err := h.plans.Generate(ctx, session, service.PlanRequest{
		Profile:  req.Profile,
		Query:    req.Query,
		Feedback: req.Feedback,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.sessions.Save(ctx, updated); err != nil {
		h.logger.Error("failed to save session", zap.String("session_id", sessionID), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.PlanResponse{
		Summary: result.Summary,
		Plan:    result.Plan,
		Raw:     result.Raw,
		Retried: result.Retried,
		Targets: result.Targets,
	})
}

// Last returns the most recent plan of the session split into sections.
func (h *PlanHandler) Last(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.GetString(middleware.SessionIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	if session.LastPlan == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no plan has been generated for this session"})
		return
	}
	c.JSON(http.StatusOK, service.SplitPlan(session.LastPlan))
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/nutriplan/backend/internal/middleware"
	"github.com/pageza/nutriplan/backend/internal/service"
	"go.uber.org/zap"
)

// Services are the dependencies of the HTTP handlers.
type Services struct {
	Sessions    service.ISessionStore
	Tokens      *service.SessionTokens
	Plans       service.IPlanService
	Meals       service.IMealService
	Catalog     service.CatalogFilter
	PlanLimiter middleware.Limiter
	// Locks serializes mutating requests per session. A fresh set is used
	// when nil.
	Locks  *SessionLocks
	Logger *zap.Logger
}

// HealthCheck returns the health status of the API
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "NutriPlan API is running",
		"version": "v1.0.0",
	})
}

// RegisterRoutes registers all API routes
func RegisterRoutes(router *gin.Engine, svc Services) {
	router.GET("/health", HealthCheck)

	auth := middleware.SessionAuth(svc.Tokens)
	locks := svc.Locks
	if locks == nil {
		locks = NewSessionLocks()
	}

	sessionHandler := NewSessionHandler(svc.Sessions, svc.Tokens, locks)
	energyHandler := NewEnergyHandler()
	catalogHandler := NewCatalogHandler(svc.Catalog)
	mealHandler := NewMealHandler(svc.Meals, svc.Sessions, locks)
	planHandler := NewPlanHandler(svc.Plans, svc.Sessions, locks, svc.PlanLimiter, svc.Logger)

	v1 := router.Group("/api/v1")
	sessionHandler.RegisterRoutes(v1, auth)
	energyHandler.RegisterRoutes(v1)
	catalogHandler.RegisterRoutes(v1)
	mealHandler.RegisterRoutes(v1, auth)
	planHandler.RegisterRoutes(v1, auth)
}

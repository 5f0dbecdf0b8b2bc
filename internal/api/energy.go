package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/nutriplan/backend/internal/service"
	"github.com/pageza/nutriplan/backend/internal/types"
)

// EnergyHandler computes energy targets for a profile.
type EnergyHandler struct{}

func NewEnergyHandler() *EnergyHandler {
	return &EnergyHandler{}
}

func (h *EnergyHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/energy", h.Compute)
}

// Compute returns BMI, BMR, TDEE and the goal-adjusted calorie target.
func (h *EnergyHandler) Compute(c *gin.Context) {
	var profile types.UserProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	targets, err := service.ComputeTargets(profile)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, targets)
}

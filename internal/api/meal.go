package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/nutriplan/backend/internal/middleware"
	"github.com/pageza/nutriplan/backend/internal/service"
)

const maxImageBytes = 10 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// MealHandler analyzes meal photos and remembers the latest one per session.
type MealHandler struct {
	meals    service.IMealService
	sessions service.ISessionStore
	locks    *SessionLocks
}

func NewMealHandler(meals service.IMealService, sessions service.ISessionStore, locks *SessionLocks) *MealHandler {
	return &MealHandler{meals: meals, sessions: sessions, locks: locks}
}

func (h *MealHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	router.POST("/meals/analyze", auth, h.Analyze)
}

// Analyze accepts a multipart "image" field.
func (h *MealHandler) Analyze(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.GetString(middleware.SessionIDKey)
	if !acquireOrConflict(c, h.locks, sessionID) {
		return
	}
	defer h.locks.Release(sessionID)

	session, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	defer file.Close()

	if header.Size > maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("image exceeds %d bytes", maxImageBytes)})
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
		return
	}
	contentType := http.DetectContentType(data)
	if !allowedImageTypes[contentType] {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": fmt.Sprintf("unsupported image type %s", contentType)})
		return
	}

	analysis, err := h.meals.Analyze(ctx, data, contentType)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	session.LastImage = analysis
	if err := h.sessions.Save(ctx, session); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

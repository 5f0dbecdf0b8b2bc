package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/nutriplan/backend/internal/middleware"
	"github.com/pageza/nutriplan/backend/internal/service"
	"github.com/pageza/nutriplan/backend/internal/types"
)

// SessionHandler starts, inspects and ends planning sessions.
type SessionHandler struct {
	store  service.ISessionStore
	tokens *service.SessionTokens
	locks  *SessionLocks
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(store service.ISessionStore, tokens *service.SessionTokens, locks *SessionLocks) *SessionHandler {
	return &SessionHandler{store: store, tokens: tokens, locks: locks}
}

func (h *SessionHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	sessions := router.Group("/sessions")
	sessions.POST("", h.Create)
	sessions.GET("/history", auth, h.History)
	sessions.DELETE("", auth, h.Delete)
}

// Create starts a new session and returns its token.
func (h *SessionHandler) Create(c *gin.Context) {
	session, err := h.store.Create(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	token, expires, err := h.tokens.Issue(session.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, types.CreateSessionResponse{
		SessionID: session.ID,
		Token:     token,
		ExpiresAt: expires,
	})
}

// History lists the session's turns, newest first.
func (h *SessionHandler) History(c *gin.Context) {
	session, err := h.store.Get(c.Request.Context(), c.GetString(middleware.SessionIDKey))
	if err != nil {
		respondError(c, err)
		return
	}

	turns := make([]types.ConversationTurn, len(session.Turns))
	for i, t := range session.Turns {
		turns[len(turns)-1-i] = t
	}
	c.JSON(http.StatusOK, types.HistoryResponse{SessionID: session.ID, Turns: turns})
}

// Delete ends the session. It is refused while another request is updating
// the session, which would otherwise save it back.
func (h *SessionHandler) Delete(c *gin.Context) {
	sessionID := c.GetString(middleware.SessionIDKey)
	if !acquireOrConflict(c, h.locks, sessionID) {
		return
	}
	defer h.locks.Release(sessionID)

	if err := h.store.Delete(c.Request.Context(), sessionID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

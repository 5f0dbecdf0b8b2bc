package types

import "time"

// CreateSessionResponse is returned when a session starts.
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HistoryResponse lists conversation turns, newest first.
type HistoryResponse struct {
	SessionID string             `json:"session_id"`
	Turns     []ConversationTurn `json:"turns"`
}

// CatalogFilterRequest selects catalog rows for a profile.
type CatalogFilterRequest struct {
	Age        int      `json:"age" binding:"required,min=18,max=90"`
	Conditions []string `json:"conditions"`
	Goal       string   `json:"goal" binding:"required"`
}

// CatalogFilterResponse carries the matching rows as JSON objects.
type CatalogFilterResponse struct {
	Count int       `json:"count"`
	Rows  []FoodRow `json:"rows"`
}

// PlanRequest asks for a seven-day plan.
type PlanRequest struct {
	Profile  UserProfile `json:"profile" binding:"required"`
	Query    string      `json:"query"`
	Feedback string      `json:"feedback"`
}

// PlanResponse is a generated plan and the targets it was built for.
type PlanResponse struct {
	Summary string        `json:"summary"`
	Plan    string        `json:"plan"`
	Raw     string        `json:"raw"`
	Retried bool          `json:"retried"`
	Targets EnergyTargets `json:"targets"`
}

package types

import "time"

// ImageMacros is the macro estimate for an analyzed meal photo.
type ImageMacros struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
}

// ImageAnalysis is the result of analyzing one meal photo.
type ImageAnalysis struct {
	Description string      `json:"description"`
	Labels      []string    `json:"labels"`
	Macros      ImageMacros `json:"macros"`
	ImageURL    string      `json:"image_url,omitempty"`
	AnalyzedAt  time.Time   `json:"analyzed_at"`
}

// ConversationTurn is one question and the plan produced for it.
type ConversationTurn struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the state of one interactive planning session.
type Session struct {
	ID        string             `json:"id"`
	Turns     []ConversationTurn `json:"turns"`
	LastPlan  string             `json:"last_plan"`
	LastImage *ImageAnalysis     `json:"last_image,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// WithTurn returns a copy of s with turn appended and LastPlan set to the
// turn's answer. s is not modified.
func (s Session) WithTurn(turn ConversationTurn) Session {
	turns := make([]ConversationTurn, len(s.Turns), len(s.Turns)+1)
	copy(turns, s.Turns)
	s.Turns = append(turns, turn)
	s.LastPlan = turn.Assistant
	return s
}

// RecentTurns returns the last n turns, oldest first.
func (s Session) RecentTurns(n int) []ConversationTurn {
	if n <= 0 {
		return nil
	}
	if len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// PlanResult is a generated plan split into its two sections.
type PlanResult struct {
	Raw     string `json:"raw"`
	Summary string `json:"summary"`
	Plan    string `json:"plan"`
	Retried bool   `json:"retried"`
	// Targets are the energy targets the plan was built for. They are not
	// part of the stored plan text.
	Targets EnergyTargets `json:"-"`
}

package service

import (
	"context"
	"time"

	"github.com/pageza/nutriplan/backend/internal/models"
	"github.com/pageza/nutriplan/backend/internal/types"
	pgvector "github.com/pgvector/pgvector-go"
)

// TextGenerator is the text-generation oracle.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder turns texts into vectors of a fixed dimension. Model identifies
// the vector space; vectors from different models are not comparable.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([]pgvector.Vector, error)
	Model() string
}

// ContextRetriever returns passages relevant to a query, most relevant first.
type ContextRetriever interface {
	Search(ctx context.Context, query string, k int) ([]models.Passage, error)
}

// ImageClassifier scores an image against FoodLabels.
type ImageClassifier interface {
	Classify(ctx context.Context, image []byte) ([]LabelScore, error)
}

// CatalogFilter selects catalog rows for a profile.
type CatalogFilter interface {
	Filter(ctx context.Context, age int, conditions []string, goal string) ([]types.FoodRow, error)
}

// PlanObserver records the outcome of planning requests.
type PlanObserver interface {
	ObservePlan(outcome string, retried bool, duration time.Duration)
}

// IPlanService defines the interface for meal plan generation
type IPlanService interface {
	Generate(ctx context.Context, session types.Session, req PlanRequest) (types.Session, *types.PlanResult, error)
}

// IMealService defines the interface for meal photo analysis
type IMealService interface {
	Analyze(ctx context.Context, image []byte, contentType string) (*types.ImageAnalysis, error)
}

// ISessionStore persists sessions between requests.
type ISessionStore interface {
	Create(ctx context.Context) (types.Session, error)
	Get(ctx context.Context, id string) (types.Session, error)
	Save(ctx context.Context, session types.Session) error
	Delete(ctx context.Context, id string) error
}

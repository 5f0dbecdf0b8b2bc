package models

import (
	"time"

	pgvector "github.com/pgvector/pgvector-go"
)

// EmbeddingDimensions is the output size of all-MiniLM-L6-v2.
const EmbeddingDimensions = 384

// Passage is one embedded chunk of the reference corpus.
type Passage struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	Source     string          `gorm:"size:255;not null;index" json:"source"`
	ChunkIndex int             `gorm:"not null" json:"chunk_index"`
	Content    string          `gorm:"type:text;not null" json:"content"`
	Embedder   string          `gorm:"size:128;not null;default:'';index" json:"embedder"`
	Embedding  pgvector.Vector `gorm:"type:vector(384)" json:"-"`
}

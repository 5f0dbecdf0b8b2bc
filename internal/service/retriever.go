package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/pageza/nutriplan/backend/internal/models"
	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// embedBatchSize bounds the number of texts sent in one embedding request.
const embedBatchSize = 100

// PassageIndex is the semantic index over the reference corpus.
type PassageIndex struct {
	db       *gorm.DB
	embedder Embedder
	logger   *zap.Logger
}

var _ ContextRetriever = (*PassageIndex)(nil)

// NewPassageIndex creates an index backed by the passages table.
func NewPassageIndex(db *gorm.DB, embedder Embedder, logger *zap.Logger) *PassageIndex {
	return &PassageIndex{db: db, embedder: embedder, logger: logger.Named("retriever")}
}

// Search returns at most k passages ordered from most to least relevant.
func (p *PassageIndex) Search(ctx context.Context, query string, k int) ([]models.Passage, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidInput, k)
	}

	count, err := p.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: no passages have been ingested", ErrIndexUnavailable)
	}
	model := p.embedder.Model()
	var matching int64
	if err := p.db.WithContext(ctx).Model(&models.Passage{}).Where("embedder = ?", model).Count(&matching).Error; err != nil {
		return nil, fmt.Errorf("failed to count passages: %w", err)
	}
	if matching == 0 {
		return nil, fmt.Errorf("%w: passages were embedded with a different model than %s; re-run ingestion", ErrIndexUnavailable, model)
	}

	vectors, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed query: %w", ErrIndexUnavailable, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: failed to embed query: got %d vectors", ErrIndexUnavailable, len(vectors))
	}
	queryVec := vectors[0]

	var passages []models.Passage
	if p.db.Dialector.Name() == "postgres" {
		err = p.db.WithContext(ctx).
			Where("embedder = ?", model).
			Clauses(clause.OrderBy{
				Expression: clause.Expr{SQL: "embedding <-> ?", Vars: []interface{}{queryVec}},
			}).
			Limit(k).
			Find(&passages).Error
		if err != nil {
			return nil, fmt.Errorf("failed to search passages: %w", err)
		}
	} else {
		passages, err = p.searchInProcess(ctx, model, queryVec, k)
		if err != nil {
			return nil, err
		}
	}

	p.logger.Debug("retrieved passages", zap.Int("k", k), zap.Int("results", len(passages)))
	return passages, nil
}

// Count returns the number of indexed passages. A missing table is
// ErrIndexUnavailable.
func (p *PassageIndex) Count(ctx context.Context) (int64, error) {
	if !p.db.Migrator().HasTable(&models.Passage{}) {
		return 0, fmt.Errorf("%w: passages table does not exist", ErrIndexUnavailable)
	}
	var count int64
	if err := p.db.WithContext(ctx).Model(&models.Passage{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count passages: %w", err)
	}
	return count, nil
}

// Add embeds the chunks of one source document and stores them, tagged
// with the embedder's model. Existing passages for the same source are
// replaced.
func (p *PassageIndex) Add(ctx context.Context, source string, chunks []string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	model := p.embedder.Model()
	passages := make([]models.Passage, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		vectors, err := p.embedder.Embed(ctx, chunks[start:end])
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != end-start {
			return 0, errors.New("embedder returned a mismatched number of vectors")
		}
		for i, v := range vectors {
			passages = append(passages, models.Passage{
				Source:     source,
				ChunkIndex: start + i,
				Content:    chunks[start+i],
				Embedder:   model,
				Embedding:  v,
			})
		}
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source = ?", source).Delete(&models.Passage{}).Error; err != nil {
			return fmt.Errorf("failed to clear passages: %w", err)
		}
		if err := tx.CreateInBatches(passages, 100).Error; err != nil {
			return fmt.Errorf("failed to insert passages: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	p.logger.Info("indexed document", zap.String("source", source), zap.Int("chunks", len(passages)))
	return len(passages), nil
}

func (p *PassageIndex) searchInProcess(ctx context.Context, model string, query pgvector.Vector, k int) ([]models.Passage, error) {
	var all []models.Passage
	if err := p.db.WithContext(ctx).Where("embedder = ?", model).Order("id").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("failed to load passages: %w", err)
	}

	q := query.Slice()
	dist := make([]float64, len(all))
	for i := range all {
		dist[i] = l2Distance(q, all[i].Embedding.Slice())
	}
	idx := make([]int, len(all))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return dist[idx[a]] < dist[idx[b]] })

	if k > len(idx) {
		k = len(idx)
	}
	out := make([]models.Passage, k)
	for i := 0; i < k; i++ {
		out[i] = all[idx[i]]
	}
	return out, nil
}

func l2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

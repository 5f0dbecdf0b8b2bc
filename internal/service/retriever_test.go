package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pageza/nutriplan/backend/internal/models"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupIndexDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	if migrate {
		require.NoError(t, db.AutoMigrate(&models.Passage{}))
	}
	return db
}

func TestPassageIndex_Unavailable(t *testing.T) {
	t.Run("missing table", func(t *testing.T) {
		idx := NewPassageIndex(setupIndexDB(t, false), HashEmbedder{}, zap.NewNop())
		_, err := idx.Search(context.Background(), "protein", 4)
		assert.ErrorIs(t, err, ErrIndexUnavailable)
	})

	t.Run("empty table", func(t *testing.T) {
		idx := NewPassageIndex(setupIndexDB(t, true), HashEmbedder{}, zap.NewNop())
		_, err := idx.Search(context.Background(), "protein", 4)
		assert.ErrorIs(t, err, ErrIndexUnavailable)
	})
}

func TestPassageIndex_SearchRanksByDistance(t *testing.T) {
	idx := NewPassageIndex(setupIndexDB(t, true), HashEmbedder{Dimensions: 384}, zap.NewNop())
	ctx := context.Background()

	n, err := idx.Add(ctx, "guide.md", []string{
		"Whole grains and legumes provide slow release carbohydrates.",
		"Lean protein such as lentils supports muscle gain.",
		"Limit sodium to manage hypertension.",
		"Hydration matters during exercise.",
		"Leafy vegetables are rich in fiber.",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	results, err := idx.Search(ctx, "limit sodium hypertension", 4)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, "Limit sodium to manage hypertension.", results[0].Content)

	results, err = idx.Search(ctx, "anything", 10)
	require.NoError(t, err)
	assert.Len(t, results, 5)

	_, err = idx.Search(ctx, "anything", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPassageIndex_AddReplacesSource(t *testing.T) {
	idx := NewPassageIndex(setupIndexDB(t, true), HashEmbedder{Dimensions: 384}, zap.NewNop())
	ctx := context.Background()

	_, err := idx.Add(ctx, "a.md", []string{"one", "two"})
	require.NoError(t, err)
	_, err = idx.Add(ctx, "b.md", []string{"three"})
	require.NoError(t, err)
	_, err = idx.Add(ctx, "a.md", []string{"four"})
	require.NoError(t, err)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

// countingEmbedder records the size of every Embed call.
type countingEmbedder struct {
	HashEmbedder
	calls []int
	err   error
}

func (e *countingEmbedder) Embed(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	e.calls = append(e.calls, len(texts))
	if e.err != nil {
		return nil, e.err
	}
	return e.HashEmbedder.Embed(ctx, texts)
}

func TestPassageIndex_AddEmbedsInBatches(t *testing.T) {
	emb := &countingEmbedder{}
	idx := NewPassageIndex(setupIndexDB(t, true), emb, zap.NewNop())
	ctx := context.Background()

	chunks := make([]string, 250)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk number %d about fiber", i)
	}
	chunks[249] = "Limit sodium to manage hypertension."
	n, err := idx.Add(ctx, "long.md", chunks)
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	assert.Equal(t, []int{100, 100, 50}, emb.calls)

	results, err := idx.Search(ctx, "sodium hypertension", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 249, results[0].ChunkIndex)
	assert.Equal(t, chunks[249], results[0].Content)
	assert.Equal(t, emb.Model(), results[0].Embedder)
}

func TestPassageIndex_EmbedderMismatch(t *testing.T) {
	db := setupIndexDB(t, true)
	ctx := context.Background()

	_, err := NewPassageIndex(db, HashEmbedder{Dimensions: 384}, zap.NewNop()).
		Add(ctx, "guide.md", []string{"Limit sodium to manage hypertension."})
	require.NoError(t, err)

	other := NewWatsonxEmbedder(WatsonxConfig{ModelID: "ibm/slate-125m-english-rtrvr"}, nil, nil)
	_, err = NewPassageIndex(db, other, zap.NewNop()).Search(ctx, "sodium", 4)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	assert.Contains(t, err.Error(), "watsonx/ibm/slate-125m-english-rtrvr")
}

func TestPassageIndex_QueryEmbeddingFailure(t *testing.T) {
	db := setupIndexDB(t, true)
	ctx := context.Background()
	_, err := NewPassageIndex(db, HashEmbedder{}, zap.NewNop()).Add(ctx, "guide.md", []string{"fiber"})
	require.NoError(t, err)

	boom := errors.New("connection refused")
	idx := NewPassageIndex(db, &countingEmbedder{err: boom}, zap.NewNop())
	_, err = idx.Search(ctx, "fiber", 4)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(EmbedderLocal, WatsonxConfig{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "local/fnv-384", e.Model())

	e, err = NewEmbedder(EmbedderWatsonx, WatsonxConfig{ModelID: "ibm/granite-embedding"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "watsonx/ibm/granite-embedding", e.Model())

	_, err = NewEmbedder("openai", WatsonxConfig{}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

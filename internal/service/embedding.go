package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"strings"
	"unicode"

	"github.com/pageza/nutriplan/backend/internal/models"
	pgvector "github.com/pgvector/pgvector-go"
)

// WatsonxEmbedder calls the watsonx.ai embeddings endpoint.
type WatsonxEmbedder struct {
	cfg        WatsonxConfig
	tokens     *IAMTokenSource
	httpClient *http.Client
}

var _ Embedder = (*WatsonxEmbedder)(nil)

// NewWatsonxEmbedder creates an embedder. cfg.ModelID names the embedding model.
func NewWatsonxEmbedder(cfg WatsonxConfig, tokens *IAMTokenSource, httpClient *http.Client) *WatsonxEmbedder {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &WatsonxEmbedder{cfg: cfg, tokens: tokens, httpClient: httpClient}
}

// Model returns the watsonx embedding model the vectors come from.
func (e *WatsonxEmbedder) Model() string { return "watsonx/" + e.cfg.ModelID }

// Embed returns one vector per input text, in input order.
func (e *WatsonxEmbedder) Embed(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	token, err := e.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"inputs":     texts,
		"model_id":   e.cfg.ModelID,
		"project_id": e.cfg.ProjectID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/ml/v1/text/embeddings?version=%s", e.cfg.baseURL(), watsonxAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Results []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Results) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Results))
	}

	vectors := make([]pgvector.Vector, len(result.Results))
	for i, r := range result.Results {
		vectors[i] = pgvector.NewVector(r.Embedding)
	}
	return vectors, nil
}

// HashEmbedder produces deterministic bag-of-words vectors by hashing
// lower-cased tokens into a fixed number of buckets. It needs no network and
// is used for offline ingestion and tests.
type HashEmbedder struct {
	Dimensions int
}

var _ Embedder = HashEmbedder{}

func (h HashEmbedder) Model() string { return fmt.Sprintf("local/fnv-%d", h.dims()) }

// Embed returns one L2-normalized vector per text.
func (h HashEmbedder) Embed(_ context.Context, texts []string) ([]pgvector.Vector, error) {
	vectors := make([]pgvector.Vector, len(texts))
	for i, t := range texts {
		vectors[i] = pgvector.NewVector(h.embed(t))
	}
	return vectors, nil
}

func (h HashEmbedder) embed(text string) []float32 {
	dims := h.dims()
	vec := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		hasher := fnv.New32a()
		hasher.Write([]byte(w))
		vec[hasher.Sum32()%uint32(dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

func (h HashEmbedder) dims() int {
	if h.Dimensions <= 0 {
		return 384
	}
	return h.Dimensions
}

// Embedder kinds accepted by NewEmbedder.
const (
	EmbedderWatsonx = "watsonx"
	EmbedderLocal   = "local"
)

// NewEmbedder builds the embedder named by kind. Ingestion and search must
// use the same kind and model or rankings are meaningless.
func NewEmbedder(kind string, cfg WatsonxConfig, tokens *IAMTokenSource, httpClient *http.Client) (Embedder, error) {
	switch kind {
	case EmbedderWatsonx, "":
		return NewWatsonxEmbedder(cfg, tokens, httpClient), nil
	case EmbedderLocal:
		return HashEmbedder{Dimensions: models.EmbeddingDimensions}, nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", ErrInvalidInput, kind)
	}
}

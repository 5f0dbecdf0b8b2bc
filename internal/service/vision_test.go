package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTopLabels(t *testing.T) {
	scores := []LabelScore{
		{"rice", 0.1},
		{"pizza", 0.4},
		{"salad", 0.2},
		{"curry", 0.2},
		{"fish", 0.05},
		{"thali", 0.3},
		{"pasta", 0.01},
	}
	assert.Equal(t, []string{"pizza", "thali", "salad", "curry", "rice"}, TopLabels(scores, 5))
	assert.Equal(t, []string{"pizza"}, TopLabels(scores, 1))
	assert.Len(t, TopLabels(scores[:2], 5), 2)
	assert.Equal(t, "rice", scores[0].Label, "input is not reordered")
}

func TestDescribeLabels(t *testing.T) {
	assert.Equal(t, "Detected food items: pizza, salad", DescribeLabels([]string{"pizza", "salad"}))
}

func TestHuggingFaceClassifier(t *testing.T) {
	image := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))
		var body struct {
			Inputs     string `json:"inputs"`
			Parameters struct {
				CandidateLabels []string `json:"candidate_labels"`
			} `json:"parameters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, base64.StdEncoding.EncodeToString(image), body.Inputs)
		assert.Equal(t, FoodLabels, body.Parameters.CandidateLabels)

		w.Write([]byte(`[{"label":"salad","score":0.6},{"label":"spaceship","score":0.3},{"label":"rice","score":0.1}]`))
	}))
	defer srv.Close()

	c := NewHuggingFaceClassifier(srv.URL, "hf-token", nil, zap.NewNop())
	scores, err := c.Classify(context.Background(), image)
	require.NoError(t, err)
	assert.Equal(t, []LabelScore{{"salad", 0.6}, {"rice", 0.1}}, scores)

	desc, labels, err := NewVisionDescriber(c).Describe(context.Background(), image)
	require.NoError(t, err)
	assert.Equal(t, []string{"salad", "rice"}, labels)
	assert.Equal(t, "Detected food items: salad, rice", desc)
}

func TestHuggingFaceClassifierErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHuggingFaceClassifier(srv.URL, "", nil, zap.NewNop())
	_, err := c.Classify(context.Background(), []byte("img"))
	assert.Error(t, err)

	_, err = c.Classify(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FoodLabels is the closed vocabulary the classifier scores against.
var FoodLabels = []string{
	"pizza",
	"salad",
	"rice",
	"curry",
	"noodles",
	"burger",
	"sandwich",
	"pasta",
	"chicken",
	"fish",
	"vegetables",
	"fruit bowl",
	"breakfast plate",
	"indian meal",
	"thali",
	"healthy food",
}

const describeTopN = 5

// LabelScore is one classifier guess.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// HuggingFaceClassifier scores images with a zero-shot CLIP model on the
// Hugging Face inference API.
type HuggingFaceClassifier struct {
	url        string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ ImageClassifier = (*HuggingFaceClassifier)(nil)

// NewHuggingFaceClassifier creates a classifier for the given model URL.
func NewHuggingFaceClassifier(url, token string, httpClient *http.Client, logger *zap.Logger) *HuggingFaceClassifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &HuggingFaceClassifier{url: url, token: token, httpClient: httpClient, logger: logger.Named("vision")}
}

// Classify returns scores for the labels in FoodLabels. Labels the model
// returns outside the vocabulary are dropped.
func (c *HuggingFaceClassifier) Classify(ctx context.Context, image []byte) ([]LabelScore, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidInput)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"inputs": base64.StdEncoding.EncodeToString(image),
		"parameters": map[string]interface{}{
			"candidate_labels": FoodLabels,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classification request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var scores []LabelScore
	if err := json.Unmarshal(body, &scores); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	known := make(map[string]struct{}, len(FoodLabels))
	for _, l := range FoodLabels {
		known[l] = struct{}{}
	}
	out := scores[:0]
	for _, s := range scores {
		if _, ok := known[s.Label]; ok {
			out = append(out, s)
		} else {
			c.logger.Debug("dropping label outside vocabulary", zap.String("label", s.Label))
		}
	}
	return out, nil
}

// TopLabels returns up to n labels by descending score. Equal scores keep
// their input order.
func TopLabels(scores []LabelScore, n int) []string {
	sorted := make([]LabelScore, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if n > len(sorted) {
		n = len(sorted)
	}
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		labels[i] = sorted[i].Label
	}
	return labels
}

// DescribeLabels renders the prompt description of detected food.
func DescribeLabels(labels []string) string {
	return "Detected food items: " + strings.Join(labels, ", ")
}

// VisionDescriber turns an image into a short description of the food in it.
type VisionDescriber struct {
	classifier ImageClassifier
}

// NewVisionDescriber wraps a classifier.
func NewVisionDescriber(classifier ImageClassifier) *VisionDescriber {
	return &VisionDescriber{classifier: classifier}
}

// Describe classifies the image and returns the top five labels and their
// description.
func (d *VisionDescriber) Describe(ctx context.Context, image []byte) (string, []string, error) {
	scores, err := d.classifier.Classify(ctx, image)
	if err != nil {
		return "", nil, fmt.Errorf("failed to classify image: %w", err)
	}
	labels := TopLabels(scores, describeTopN)
	return DescribeLabels(labels), labels, nil
}

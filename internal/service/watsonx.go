package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultIAMURL      = "https://iam.cloud.ibm.com/identity/token"
	iamGrantType       = "urn:ibm:params:oauth:grant-type:apikey"
	watsonxAPIVersion  = "2024-03-01"
	tokenRefreshMargin = 60 * time.Second
)

// GenerationParams are the sampling parameters sent with every generation call.
type GenerationParams struct {
	MaxNewTokens      int     `json:"max_new_tokens"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
}

// DefaultGenerationParams returns the sampling parameters used for meal plans.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		MaxNewTokens:      1400,
		Temperature:       0.3,
		TopP:              0.9,
		RepetitionPenalty: 1.05,
	}
}

// WatsonxConfig configures the watsonx.ai clients.
type WatsonxConfig struct {
	APIKey    string
	ProjectID string
	Region    string
	ModelID   string
	// BaseURL and IAMURL override the regional endpoints.
	BaseURL string
	IAMURL  string
	Params  GenerationParams
}

func (c WatsonxConfig) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.ml.cloud.ibm.com", c.Region)
}

// IAMTokenSource exchanges an API key for IBM Cloud access tokens and caches
// them until shortly before they expire.
type IAMTokenSource struct {
	apiKey     string
	url        string
	httpClient *http.Client
	now        func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewIAMTokenSource creates a token source for the given API key.
func NewIAMTokenSource(apiKey, iamURL string, httpClient *http.Client) *IAMTokenSource {
	if iamURL == "" {
		iamURL = defaultIAMURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &IAMTokenSource{apiKey: apiKey, url: iamURL, httpClient: httpClient, now: time.Now}
}

// Token returns a valid access token, fetching a new one when needed.
func (s *IAMTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expires.Add(-tokenRefreshMargin)) {
		return s.token, nil
	}

	form := url.Values{}
	form.Set("apikey", s.apiKey)
	form.Set("grant_type", iamGrantType)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request access token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		AccessToken string `json:"access_token"`
		Expiration  int64  `json:"expiration"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.AccessToken == "" {
		return "", errors.New("token response has no access_token")
	}

	s.token = result.AccessToken
	s.expires = time.Unix(result.Expiration, 0)
	return s.token, nil
}

// WatsonxClient calls the watsonx.ai text generation endpoint.
type WatsonxClient struct {
	cfg        WatsonxConfig
	tokens     *IAMTokenSource
	httpClient *http.Client
	logger     *zap.Logger
}

var _ TextGenerator = (*WatsonxClient)(nil)

// NewWatsonxClient creates a generation client. httpClient may be nil; request
// deadlines come from the caller's context.
func NewWatsonxClient(cfg WatsonxConfig, tokens *IAMTokenSource, httpClient *http.Client, logger *zap.Logger) *WatsonxClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Params == (GenerationParams{}) {
		cfg.Params = DefaultGenerationParams()
	}
	return &WatsonxClient{cfg: cfg, tokens: tokens, httpClient: httpClient, logger: logger.Named("watsonx")}
}

type generationRequest struct {
	ModelID    string           `json:"model_id"`
	Input      string           `json:"input"`
	ProjectID  string           `json:"project_id"`
	Parameters GenerationParams `json:"parameters"`
}

// Generate sends the prompt and returns the trimmed generated text. Any
// transport failure, non-200 status or empty result is ErrGeneration.
func (c *WatsonxClient) Generate(ctx context.Context, prompt string) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	payload, err := json.Marshal(generationRequest{
		ModelID:    c.cfg.ModelID,
		Input:      prompt,
		ProjectID:  c.cfg.ProjectID,
		Parameters: c.cfg.Params,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/ml/v1/text/generation?version=%s", c.cfg.baseURL(), watsonxAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to send request: %w", ErrGeneration, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %w", ErrGeneration, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("generation request failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return "", fmt.Errorf("%w: API request failed with status %d: %s", ErrGeneration, resp.StatusCode, string(body))
	}

	var result struct {
		Results []struct {
			GeneratedText string `json:"generated_text"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", ErrGeneration, err)
	}
	if len(result.Results) == 0 {
		return "", fmt.Errorf("%w: no results in response", ErrGeneration)
	}

	c.logger.Debug("generation complete",
		zap.Int("prompt_chars", len(prompt)),
		zap.Duration("latency", time.Since(start)))
	return strings.TrimSpace(result.Results[0].GeneratedText), nil
}

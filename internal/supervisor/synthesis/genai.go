// internal/supervisor/synthesis/genai.go
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"supervisor-core/internal/common/config"
	serrors "supervisor-core/internal/common/errors"
	"supervisor-core/internal/common/httpclient"
)

const synthesisPrompt = `You are a due-diligence assistant combining analyses from multiple specialists into one answer.

User question:
%s

Specialist analyses:
%s

Write a single coherent answer that merges the analyses, preserves every concrete figure and citation, and flags any disagreement between specialists. Do not mention the specialists themselves.`

// GenAIClient implements TextSynthesizer against the generation endpoint of
// the GenAI service.
type GenAIClient struct {
	client      *httpclient.Client
	baseURL     string
	apiKey      string
	timeout     time.Duration
	maxTokens   int
	temperature float64
}

func NewGenAIClient(cfg config.GenAIConfig, client *httpclient.Client) *GenAIClient {
	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GenAIClient{
		client:      client,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		timeout:     timeout,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

type generateRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
	Error string `json:"error,omitempty"`
}

// Synthesize merges the labeled blocks through one generation call. Any
// failure is returned as-is; the caller owns the degradation policy.
func (c *GenAIClient) Synthesize(ctx context.Context, query string, blocks []LabeledBlock) (string, error) {
	if c.baseURL == "" {
		return "", serrors.NewSynthesisFailedError(fmt.Errorf("GENAI_BASE_URL is empty"))
	}

	var sb strings.Builder
	for _, b := range blocks {
		fmt.Fprintf(&sb, "--- %s ---\n%s\n\n", b.Label, b.Text)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	resp, err := c.client.PostJSON(callCtx, c.baseURL+"/api/ai/generate", generateRequest{
		Prompt:      fmt.Sprintf(synthesisPrompt, query, sb.String()),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}, headers)
	if err != nil {
		return "", serrors.NewSynthesisFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", serrors.NewSynthesisFailedError(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", serrors.NewSynthesisFailedError(fmt.Errorf("malformed response body: %w", err))
	}
	if out.Error != "" {
		return "", serrors.NewSynthesisFailedError(fmt.Errorf("%s", out.Error))
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", serrors.NewSynthesisFailedError(fmt.Errorf("empty generation result"))
	}
	return out.Text, nil
}

var _ TextSynthesizer = (*GenAIClient)(nil)

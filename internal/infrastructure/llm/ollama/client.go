// Package ollama adapts the LLMAnalyser port (spec section 6) onto Ollama's
// /api/generate endpoint. This is intentionally narrow: only intent
// classification and paraphrase generation, the two operations the Query
// Analyser (spec section 4.1) delegates to an LLM collaborator. Answer
// generation belongs to the external generator collaborator (spec section
// 1(a)) and is out of scope for this core.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

type Analyser struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(baseURL, model string) *Analyser {
	return &Analyser{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

var _ ports.LLMAnalyser = (*Analyser)(nil)

// ClassifyIntent calls the LLM with a deterministic classification prompt.
// Accepted intents are the eight closed categories from spec section 4.1;
// an unrecognised or malformed response is the caller's job to fall back on
// (spec section 4.1's failure clause), so this only reports the parse
// failure, it does not itself default to overview.
func (a *Analyser) ClassifyIntent(ctx context.Context, question string) (domain.Intent, float64, error) {
	respText, err := a.generateJSON(ctx, buildClassificationPrompt(question))
	if err != nil {
		return "", 0, err
	}

	var parsed struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return "", 0, fmt.Errorf("parse intent classification json: %w", err)
	}

	intent := domain.Intent(strings.ToLower(strings.TrimSpace(parsed.Intent)))
	if !domain.IsValidIntent(intent) {
		return "", 0, fmt.Errorf("classifier returned unrecognised intent %q", parsed.Intent)
	}
	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return intent, confidence, nil
}

// Paraphrase asks the LLM for up to n paraphrases of question (spec section
// 4.1: "up to three paraphrases via the LLM").
func (a *Analyser) Paraphrase(ctx context.Context, question string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	respText, err := a.generateJSON(ctx, buildParaphrasePrompt(question, n))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Paraphrases []string `json:"paraphrases"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return nil, fmt.Errorf("parse paraphrase json: %w", err)
	}

	out := make([]string, 0, n)
	for _, p := range parsed.Paraphrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func (a *Analyser) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  a.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0.3,
		},
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := a.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

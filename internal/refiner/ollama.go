package refiner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opentranslate/mdtran/internal/postprocess"
)

// OllamaRefiner uses a local Ollama model as an editor for the polish pass.
type OllamaRefiner struct {
	model   string
	baseURL string
	client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// NewOllamaRefiner creates a refiner backed by a local Ollama model.
func NewOllamaRefiner(model, baseURL string) *OllamaRefiner {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaRefiner{
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Refine sends the draft to the LLM with an editor prompt and returns
// the polished translation. An empty model response falls back to the
// draft rather than failing the block.
func (r *OllamaRefiner) Refine(ctx context.Context, targetLang, sourceText, draftText string) (string, error) {
	reqBody := ollamaRequest{
		Model:  r.model,
		Prompt: buildRefinementPrompt(targetLang, sourceText, draftText),
		Stream: false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal refinement request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/generate", r.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create refinement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("refinement request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refiner returned status %d", resp.StatusCode)
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("failed to decode refinement response: %w", err)
	}

	refined := postprocess.Clean(ollamaResp.Response)
	if refined == "" {
		return draftText, nil
	}
	return refined, nil
}

func buildRefinementPrompt(targetLang, sourceText, draftText string) string {
	return fmt.Sprintf(`You are an experienced %s technical editor.

You will receive a Markdown fragment and its DRAFT %s translation.
Rewrite the draft so it reads naturally in %s.

ORIGINAL:
%s

DRAFT TRANSLATION:
%s

Rules:
- Fix awkward literal phrasing and unnatural word order.
- Keep all meaning, names and technical terms intact.
- Keep every Markdown marker (#, *, -, |, backticks, links) exactly where it is.
- If the draft is already good, return it unchanged.

Output ONLY the refined translation in %s. Do not include any explanation.`,
		targetLang, targetLang, targetLang, sourceText, draftText, targetLang)
}

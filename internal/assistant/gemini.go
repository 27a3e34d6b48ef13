package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/thapargpt/thapargpt/internal/lang"
	"github.com/thapargpt/thapargpt/internal/rag"
)

// Gemini is the production generation and translation backend.
// It implements Generator and rag.Translator.
type Gemini struct {
	genkit      *genkit.Genkit
	model       string
	temperature float64
	maxTokens   int
}

// NewGemini creates the generation backend for the given model.
func NewGemini(g *genkit.Genkit, model string, temperature float64, maxTokens int) *Gemini {
	return &Gemini{genkit: g, model: model, temperature: temperature, maxTokens: maxTokens}
}

// Generate runs one generation call for the composed prompt.
func (c *Gemini) Generate(ctx context.Context, prompt rag.Prompt) (string, error) {
	resp, err := genkit.Generate(ctx, c.genkit,
		ai.WithModelName(c.model),
		ai.WithSystem(prompt.System),
		ai.WithPrompt(prompt.User),
		ai.WithConfig(map[string]any{
			"temperature":     c.temperature,
			"maxOutputTokens": c.maxTokens,
		}),
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Translate converts text into the target language with a single model
// call. The instruction forbids commentary so the output is usable
// verbatim.
func (c *Gemini) Translate(ctx context.Context, text string, target lang.Language) (string, error) {
	instruction := fmt.Sprintf(
		"Translate the following text into %s (%s). Preserve meaning, names, numbers and formatting. Return only the translation.\n\n%s",
		target.Name(), target.Code(), text)

	resp, err := genkit.Generate(ctx, c.genkit,
		ai.WithModelName(c.model),
		ai.WithPrompt(instruction),
	)
	if err != nil {
		return "", fmt.Errorf("translate to %s: %w", target.Code(), err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

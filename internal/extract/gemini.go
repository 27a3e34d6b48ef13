package extract

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

const ocrPrompt = `Transcribe all text visible in this document. Return only the transcribed text, preserving reading order. Do not add commentary. If the document contains no text, return nothing.`

// Gemini extracts text from attachments, using the model's vision
// capability for images and for PDFs whose text layer is empty.
type Gemini struct {
	genkit *genkit.Genkit
	model  string
	logger *slog.Logger
}

// NewGemini creates an attachment extractor backed by the given model.
func NewGemini(g *genkit.Genkit, model string, logger *slog.Logger) *Gemini {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{genkit: g, model: model, logger: logger}
}

// Extract returns the plain text of the attachment.
//
// PDFs try the embedded text layer first and fall back to optical
// extraction only when the layer is empty, so digital PDFs never pay
// for a model call.
func (e *Gemini) Extract(ctx context.Context, att Attachment) (string, error) {
	switch att.Kind {
	case KindImage:
		return e.optical(ctx, att)
	case KindPDF:
		text, err := pdfText(att.Data)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrNoUsableText) {
			e.logger.Warn("pdf text layer unreadable, falling back to optical extraction",
				"name", att.Name, "error", err)
		}
		return e.optical(ctx, att)
	case KindFile:
		return Text(att)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAttachment, att.Kind)
	}
}

func (e *Gemini) optical(ctx context.Context, att Attachment) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(att.Data)
	media := ai.NewMediaPart(att.MIME, "data:"+att.MIME+";base64,"+encoded)

	resp, err := genkit.Generate(ctx, e.genkit,
		ai.WithModelName(e.model),
		ai.WithMessages(ai.NewUserMessage(media, ai.NewTextPart(ocrPrompt))),
	)
	if err != nil {
		return "", fmt.Errorf("optical extraction: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrNoUsableText
	}
	return text, nil
}

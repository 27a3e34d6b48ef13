package rag

import (
	"context"
	"log/slog"

	"github.com/thapargpt/thapargpt/internal/lang"
)

// Translator translates text into a target language.
type Translator interface {
	Translate(ctx context.Context, text string, target lang.Language) (string, error)
}

// Normalizer ensures the final answer is in the user's detected language,
// translating only when necessary.
type Normalizer struct {
	translator Translator
	detect     func(string) lang.Language
	logger     *slog.Logger
}

// NewNormalizer creates a Normalizer. detect may be nil (defaults to
// lang.Detect); logger may be nil.
func NewNormalizer(translator Translator, detect func(string) lang.Language, logger *slog.Logger) *Normalizer {
	if detect == nil {
		detect = lang.Detect
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{translator: translator, detect: detect, logger: logger}
}

// Normalize returns the answer in the target language and whether a
// translation pass was performed.
//
// English targets are returned unchanged: no translation round-trip for
// already-primary-language answers, which also makes Normalize idempotent
// for them. For a secondary target, the text is re-detected: only when
// the generation service ignored the language directive (output detects
// as English) is one translation pass made. Translation failure degrades
// to returning the untranslated text, never to dropping the answer.
func (n *Normalizer) Normalize(ctx context.Context, text string, target lang.Language) (string, bool) {
	if target.IsEnglish() || text == "" {
		return text, false
	}

	if detected := n.detect(text); !detected.IsEnglish() {
		// Directive honored (or at least not detectably ignored).
		return text, false
	}

	translated, err := n.translator.Translate(ctx, text, target)
	if err != nil {
		n.logger.Warn("translation failed, returning untranslated answer",
			"target", target.Code(), "error", err)
		return text, false
	}
	return translated, true
}

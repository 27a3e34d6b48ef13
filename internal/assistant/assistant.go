// Package assistant orchestrates the question answering pipeline:
// language detection, attachment extraction, retrieval, prompt
// composition, generation, and response normalization.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/thapargpt/thapargpt/internal/extract"
	"github.com/thapargpt/thapargpt/internal/knowledge"
	"github.com/thapargpt/thapargpt/internal/lang"
	"github.com/thapargpt/thapargpt/internal/rag"
)

// ErrEmptyQuery reports a request with neither a question nor an
// attachment.
var ErrEmptyQuery = errors.New("assistant: empty query")

// defaultMediaQuery stands in for the question when only an attachment
// was sent.
const defaultMediaQuery = "Analyze this and describe what you see."

// Generator produces an answer for a composed prompt.
type Generator interface {
	Generate(ctx context.Context, prompt rag.Prompt) (string, error)
}

// Retriever searches the knowledge base.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// History persists and recalls conversation turns.
type History interface {
	Ensure(ctx context.Context, id uuid.UUID) error
	Recent(ctx context.Context, id uuid.UUID, limit int) ([]rag.Turn, error)
	Append(ctx context.Context, id uuid.UUID, turn rag.Turn, language lang.Language) error
}

// Answer is the assistant's reply.
type Answer struct {
	Text     string
	Language lang.Language
	// Degraded is set when a pipeline stage fell back: unusable
	// attachment, unavailable retrieval, or no reference material.
	Degraded bool
	// Translated is set when a post-generation translation pass ran.
	Translated bool
}

// Options bounds the pipeline stages.
type Options struct {
	TopK            int
	ContextBudget   int
	MaxEmbedChars   int
	MaxPromptChars  int
	MaxHistoryTurns int
	ExtractTimeout  time.Duration
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration
	Retry           RetryPolicy
}

// DefaultOptions returns the pipeline bounds used when a field is zero.
func DefaultOptions() Options {
	return Options{
		TopK:            3,
		ContextBudget:   6000,
		MaxEmbedChars:   8000,
		MaxPromptChars:  24000,
		MaxHistoryTurns: 5,
		ExtractTimeout:  30 * time.Second,
		SearchTimeout:   10 * time.Second,
		GenerateTimeout: 60 * time.Second,
		Retry:           DefaultRetryPolicy(),
	}
}

// Assistant answers questions about the institute.
type Assistant struct {
	retriever  Retriever
	extractor  extract.Extractor
	generator  Generator
	normalizer *rag.Normalizer
	prompts    *rag.Builder
	sessions   History
	limiter    *rate.Limiter
	opts       Options
	retry      RetryPolicy
	logger     *slog.Logger
}

// New creates an Assistant. sessions and limiter may be nil; nil
// sessions disables history, nil limiter disables rate limiting.
func New(retriever Retriever, extractor extract.Extractor, generator Generator,
	translator rag.Translator, sessions History, limiter *rate.Limiter,
	opts Options, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.ContextBudget <= 0 {
		opts.ContextBudget = def.ContextBudget
	}
	if opts.MaxEmbedChars <= 0 {
		opts.MaxEmbedChars = def.MaxEmbedChars
	}
	if opts.MaxPromptChars <= 0 {
		opts.MaxPromptChars = def.MaxPromptChars
	}
	if opts.MaxHistoryTurns <= 0 {
		opts.MaxHistoryTurns = def.MaxHistoryTurns
	}
	if opts.ExtractTimeout <= 0 {
		opts.ExtractTimeout = def.ExtractTimeout
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = def.SearchTimeout
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = def.GenerateTimeout
	}
	if opts.Retry.MaxRetries <= 0 && opts.Retry.InitialInterval <= 0 {
		opts.Retry = def.Retry
	}

	return &Assistant{
		retriever:  retriever,
		extractor:  extractor,
		generator:  generator,
		normalizer: rag.NewNormalizer(translator, nil, logger),
		prompts:    rag.NewBuilder(opts.MaxPromptChars),
		sessions:   sessions,
		limiter:    limiter,
		opts:       opts,
		retry:      opts.Retry,
		logger:     logger,
	}
}

// Chat answers a plain text question.
func (a *Assistant) Chat(ctx context.Context, sessionID uuid.UUID, query string) (Answer, error) {
	return a.ask(ctx, sessionID, query, nil)
}

// ChatWithImage answers a question about an uploaded image.
func (a *Assistant) ChatWithImage(ctx context.Context, sessionID uuid.UUID, query, name string, data []byte) (Answer, error) {
	att := extract.Classify(name, data)
	if att.Kind != extract.KindImage {
		return Answer{}, fmt.Errorf("%w: %s is not an image", extract.ErrUnsupportedAttachment, name)
	}
	return a.ask(ctx, sessionID, query, &att)
}

// ChatWithPDF answers a question about an uploaded PDF.
func (a *Assistant) ChatWithPDF(ctx context.Context, sessionID uuid.UUID, query, name string, data []byte) (Answer, error) {
	att := extract.Classify(name, data)
	if att.Kind != extract.KindPDF {
		return Answer{}, fmt.Errorf("%w: %s is not a PDF", extract.ErrUnsupportedAttachment, name)
	}
	return a.ask(ctx, sessionID, query, &att)
}

// ChatWithFile answers a question about an uploaded file of any
// supported type, dispatching on sniffed content.
func (a *Assistant) ChatWithFile(ctx context.Context, sessionID uuid.UUID, query, name string, data []byte) (Answer, error) {
	att := extract.Classify(name, data)
	return a.ask(ctx, sessionID, query, &att)
}

// ask runs the full pipeline.
func (a *Assistant) ask(ctx context.Context, sessionID uuid.UUID, query string, att *extract.Attachment) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		if att == nil {
			return Answer{}, ErrEmptyQuery
		}
		query = defaultMediaQuery
	}

	// Language detection and attachment extraction are independent;
	// run them concurrently.
	var (
		language       lang.Language
		attachmentText string
		degraded       bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		language = lang.Detect(query)
		return nil
	})
	if att != nil {
		g.Go(func() error {
			ectx, cancel := context.WithTimeout(gctx, a.opts.ExtractTimeout)
			defer cancel()

			text, err := a.extractor.Extract(ectx, *att)
			switch {
			case err == nil:
				attachmentText = text
			case errors.Is(err, extract.ErrNoUsableText):
				// A blank scan or empty file: answer anyway,
				// flagged as degraded.
				a.logger.Warn("attachment yielded no text", "name", att.Name)
				degraded = true
			case errors.Is(err, extract.ErrUnsupportedAttachment):
				return err
			default:
				a.logger.Warn("attachment extraction failed", "name", att.Name, "error", err)
				degraded = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Answer{}, err
	}

	block, err := a.retrieve(ctx, query, attachmentText, language)
	if err != nil {
		return Answer{}, err
	}
	if block.Empty() {
		degraded = true
	}

	history := a.recentHistory(ctx, sessionID)

	prompt := a.prompts.Build(query, block, language, attachmentText, history)
	raw, err := a.generate(ctx, prompt)
	if err != nil {
		return Answer{}, err
	}

	text, translated := a.normalizer.Normalize(ctx, raw, language)

	a.persistTurn(ctx, sessionID, rag.Turn{User: query, Assistant: text}, language)

	return Answer{
		Text:       text,
		Language:   language,
		Degraded:   degraded,
		Translated: translated,
	}, nil
}

// retrieve searches the knowledge base when the question concerns the
// institute. The keyword gate only applies to English text; secondary
// language questions always retrieve, since the keyword list cannot
// classify them. An unreachable index is retried with backoff, then
// surfaced as a retryable failure; zero results is a valid empty
// context, not an error.
func (a *Assistant) retrieve(ctx context.Context, query, attachmentText string, language lang.Language) (rag.Context, error) {
	if language.IsEnglish() && !aboutInstitute(query) && !aboutInstitute(attachmentText) {
		return rag.Context{}, nil
	}

	needle := query
	if attachmentText != "" {
		needle = truncate(query+"\n"+attachmentText, a.opts.MaxEmbedChars)
	}

	results, err := a.search(ctx, needle)
	if err != nil {
		return rag.Context{}, err
	}
	return rag.Assemble(results, a.opts.ContextBudget), nil
}

// search runs the index query with the same bounded backoff as
// generation. Only ErrUnavailable is retried.
func (a *Assistant) search(ctx context.Context, needle string) ([]knowledge.Result, error) {
	var lastErr error
	delay := a.retry.InitialInterval

	for attempt := 0; attempt <= a.retry.MaxRetries; attempt++ {
		results, err := a.retriever.Search(ctx, needle,
			knowledge.WithTopK(a.opts.TopK),
			knowledge.WithTimeout(a.opts.SearchTimeout),
		)
		if err == nil {
			return results, nil
		}
		if !errors.Is(err, knowledge.ErrUnavailable) {
			return nil, fmt.Errorf("retrieve: %w", err)
		}
		lastErr = err

		if attempt == a.retry.MaxRetries {
			break
		}
		a.logger.Debug("retrying retrieval", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, a.retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("retrieve after %d retries: %w", a.retry.MaxRetries, lastErr)
}

func (a *Assistant) recentHistory(ctx context.Context, sessionID uuid.UUID) []rag.Turn {
	if a.sessions == nil || sessionID == uuid.Nil {
		return nil
	}
	if err := a.sessions.Ensure(ctx, sessionID); err != nil {
		a.logger.Warn("session lookup failed", "session_id", sessionID, "error", err)
		return nil
	}
	turns, err := a.sessions.Recent(ctx, sessionID, a.opts.MaxHistoryTurns)
	if err != nil {
		a.logger.Warn("history lookup failed", "session_id", sessionID, "error", err)
		return nil
	}
	return turns
}

func (a *Assistant) persistTurn(ctx context.Context, sessionID uuid.UUID, turn rag.Turn, language lang.Language) {
	if a.sessions == nil || sessionID == uuid.Nil {
		return
	}
	if err := a.sessions.Append(ctx, sessionID, turn, language); err != nil {
		a.logger.Warn("failed to persist turn", "session_id", sessionID, "error", err)
	}
}

// truncate keeps the leading max characters, cutting at a rune
// boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !isRuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// Package app wires configuration, database, the model runtime, and
// the pipeline into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/thapargpt/thapargpt/internal/assistant"
	"github.com/thapargpt/thapargpt/internal/config"
	"github.com/thapargpt/thapargpt/internal/database"
	"github.com/thapargpt/thapargpt/internal/extract"
	"github.com/thapargpt/thapargpt/internal/knowledge"
	"github.com/thapargpt/thapargpt/internal/session"
)

// App holds the initialized application components.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Pool      *pgxpool.Pool
	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	Knowledge *knowledge.Store
	Sessions  *session.Store
	Assistant *assistant.Assistant
}

// Setup initializes every component. On error, everything already
// initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	if err := database.Migrate(cfg.ConnString()); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	pool, err := database.Open(ctx, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.Pool = pool

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initialize genkit with gemini provider")
	}
	a.Genkit = g
	logger.Info("initialized model runtime",
		"model", cfg.ModelName, "embedder", cfg.EmbedderModel)

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	a.Knowledge = knowledge.New(knowledge.NewQueries(pool), embedder, logger)

	// A wrong embedder dimension corrupts every stored vector; refuse
	// to start rather than detect it per request.
	if err := a.Knowledge.EnsureDimension(ctx, cfg.EmbedderDimension); err != nil {
		return nil, err
	}

	a.Sessions = session.New(session.NewQueries(pool), logger)

	gemini := assistant.NewGemini(g, cfg.FullModelName(), float64(cfg.Temperature), cfg.MaxTokens)
	extractor := extract.NewGemini(g, cfg.FullModelName(), logger)
	limiter := rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst)

	a.Assistant = assistant.New(
		a.Knowledge, extractor, gemini, gemini, a.Sessions, limiter,
		assistant.Options{
			TopK:            cfg.TopK,
			ContextBudget:   cfg.ContextBudget,
			MaxEmbedChars:   cfg.MaxEmbedChars,
			MaxPromptChars:  cfg.MaxPromptChars,
			MaxHistoryTurns: cfg.MaxHistoryTurns,
			ExtractTimeout:  cfg.ExtractTimeout(),
			SearchTimeout:   cfg.SearchTimeout(),
			GenerateTimeout: cfg.GenerateTimeout(),
		},
		logger,
	)

	return a, nil
}

// Close releases application resources.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
		a.Pool = nil
	}
}

// Package knowledge manages the institution knowledge base: embedding
// generation and cosine-similarity vector search over PostgreSQL + pgvector.
//
// The index is written only by the offline indexing command; the query path
// is read-only and safe for concurrent use by many requests.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
)

var (
	// ErrEmptyContent indicates there was no text to embed after
	// normalization. Callers treat this as "no content", not a failure.
	ErrEmptyContent = errors.New("no content to embed")

	// ErrUnavailable indicates the vector index could not be reached.
	// Distinct from zero results, which is a valid non-error outcome.
	ErrUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch indicates the embedder's output dimensionality
	// does not match the dimensionality the index was built with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Querier defines the database operations the Store needs. The interface
// is defined by the consumer so tests can supply a mock.
type Querier interface {
	// UpsertDocument inserts or updates a document row.
	UpsertDocument(ctx context.Context, row DocumentRow) error

	// SearchDocuments performs a cosine top-K search. filterJSON restricts
	// results to rows whose metadata contains it (JSONB @>); nil means no
	// filter. Rows come back ordered by similarity descending, id ascending.
	SearchDocuments(ctx context.Context, vec pgvector.Vector, filterJSON []byte, limit int32) ([]SearchRow, error)

	// CountDocuments counts all documents.
	CountDocuments(ctx context.Context) (int64, error)

	// DeleteDocument deletes a document by ID.
	DeleteDocument(ctx context.Context, id string) error
}

// DocumentRow is the storage representation of a Document.
type DocumentRow struct {
	ID        string
	Content   string
	Embedding pgvector.Vector
	Metadata  []byte
	CreatedAt time.Time
}

// Store manages knowledge documents with vector search.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store. logger may be nil (defaults to slog.Default).
func New(querier Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: querier, embedder: embedder, logger: logger}
}

// Embed generates the embedding vector for text. The embedding API is
// deterministic: identical input yields an identical vector, which the
// tests rely on. Empty input after trimming returns ErrEmptyContent.
func (s *Store) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContent
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

// Add embeds and upserts a document into the knowledge store.
func (s *Store) Add(ctx context.Context, doc Document) error {
	embedding, err := s.Embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	err = s.queries.UpsertDocument(ctx, DocumentRow{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: pgvector.NewVector(embedding),
		Metadata:  metadataJSON,
		CreatedAt: doc.CreateAt,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert document %q: %w", doc.ID, err)
	}

	s.logger.Debug("added document", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Search embeds the query and returns the most similar documents, ordered
// by similarity descending. A per-call timeout bounds the index query; an
// unreachable index surfaces as ErrUnavailable, distinct from the valid
// zero-results outcome.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := s.Embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, err
	}

	var filterJSON []byte
	if len(cfg.filter) > 0 {
		filterJSON, err = json.Marshal(cfg.filter)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal filter: %w", err)
		}
	}

	// limit is clamped to [1, 10] by WithTopK
	rows, err := s.queries.SearchDocuments(queryCtx, pgvector.NewVector(embedding), filterJSON, int32(cfg.topK)) // #nosec G115
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: search query timeout: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.rowsToResults(rows), nil
}

// Count returns the total number of indexed documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	count, err := s.queries.CountDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return int(count), nil
}

// Delete removes a document from the knowledge store.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if err := s.queries.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete document %q: %w", docID, err)
	}
	s.logger.Debug("deleted document", "id", docID)
	return nil
}

// EnsureDimension probes the embedder once and verifies its output matches
// the dimensionality the index was built with. A mismatch is a fatal
// configuration error; call this at startup, never per request.
func (s *Store) EnsureDimension(ctx context.Context, want int) error {
	embedding, err := s.Embed(ctx, "dimension probe")
	if err != nil {
		return fmt.Errorf("probing embedder: %w", err)
	}
	if len(embedding) != want {
		return fmt.Errorf("%w: embedder produced %d dimensions, index built with %d",
			ErrDimensionMismatch, len(embedding), want)
	}
	return nil
}

func (s *Store) rowsToResults(rows []SearchRow) []Result {
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		var metadata map[string]string
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
				s.logger.Warn("failed to parse metadata", "document_id", row.ID, "error", err)
			}
		}
		if metadata == nil {
			metadata = make(map[string]string)
		}

		results = append(results, Result{
			Document: Document{
				ID:       row.ID,
				Content:  row.Content,
				Metadata: metadata,
				CreateAt: row.CreatedAt,
			},
			Similarity: row.Similarity,
		})
	}
	return results
}

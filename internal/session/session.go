// Package session persists conversation history so follow-up questions
// can be answered with prior turns as context.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/thapargpt/thapargpt/internal/lang"
	"github.com/thapargpt/thapargpt/internal/rag"
)

// ErrNotFound reports an unknown session ID.
var ErrNotFound = errors.New("session: not found")

// TurnRow is one persisted conversation exchange.
type TurnRow struct {
	ID            int64
	SessionID     uuid.UUID
	UserText      string
	AssistantText string
	Language      string
	CreatedAt     time.Time
}

// Querier is the database access the store needs.
type Querier interface {
	InsertSession(ctx context.Context, id uuid.UUID) error
	SessionExists(ctx context.Context, id uuid.UUID) (bool, error)
	InsertTurn(ctx context.Context, row TurnRow) error
	RecentTurns(ctx context.Context, sessionID uuid.UUID, limit int32) ([]TurnRow, error)
}

// Store manages conversation sessions and their turns.
type Store struct {
	queries Querier
	logger  *slog.Logger
}

// New creates a session store.
func New(queries Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: queries, logger: logger}
}

// Create starts a new session and returns its ID.
func (s *Store) Create(ctx context.Context) (uuid.UUID, error) {
	id := uuid.New()
	if err := s.queries.InsertSession(ctx, id); err != nil {
		return uuid.Nil, fmt.Errorf("create session: %w", err)
	}
	s.logger.Debug("session created", "session_id", id)
	return id, nil
}

// Ensure creates the session if it does not exist yet. Unknown IDs from
// clients become fresh sessions instead of errors.
func (s *Store) Ensure(ctx context.Context, id uuid.UUID) error {
	exists, err := s.queries.SessionExists(ctx, id)
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.queries.InsertSession(ctx, id); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Append records one completed exchange.
func (s *Store) Append(ctx context.Context, sessionID uuid.UUID, turn rag.Turn, language lang.Language) error {
	row := TurnRow{
		SessionID:     sessionID,
		UserText:      turn.User,
		AssistantText: turn.Assistant,
		Language:      language.Code(),
	}
	if err := s.queries.InsertTurn(ctx, row); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// Recent returns up to limit turns in chronological order, newest last.
func (s *Store) Recent(ctx context.Context, sessionID uuid.UUID, limit int) ([]rag.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.queries.RecentTurns(ctx, sessionID, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}

	// Rows arrive newest first; reverse into prompt order.
	turns := make([]rag.Turn, len(rows))
	for i, row := range rows {
		turns[len(rows)-1-i] = rag.Turn{User: row.UserText, Assistant: row.AssistantText}
	}
	return turns, nil
}

// History returns the full recorded exchange rows for a session,
// newest last.
func (s *Store) History(ctx context.Context, sessionID uuid.UUID, limit int) ([]TurnRow, error) {
	exists, err := s.queries.SessionExists(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := s.queries.RecentTurns(ctx, sessionID, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("session history: %w", err)
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries implements Querier against a pgx connection pool.
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries creates the pgx-backed query layer.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const insertSessionSQL = `
INSERT INTO sessions (id)
VALUES ($1)
ON CONFLICT (id) DO NOTHING
`

func (q *Queries) InsertSession(ctx context.Context, id uuid.UUID) error {
	_, err := q.pool.Exec(ctx, insertSessionSQL, id)
	return err
}

const sessionExistsSQL = `
SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)
`

func (q *Queries) SessionExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := q.pool.QueryRow(ctx, sessionExistsSQL, id).Scan(&exists)
	return exists, err
}

const insertTurnSQL = `
INSERT INTO messages (session_id, user_text, assistant_text, language)
VALUES ($1, $2, $3, $4)
`

func (q *Queries) InsertTurn(ctx context.Context, row TurnRow) error {
	_, err := q.pool.Exec(ctx, insertTurnSQL,
		row.SessionID, row.UserText, row.AssistantText, row.Language)
	return err
}

const recentTurnsSQL = `
SELECT id, session_id, user_text, assistant_text, language, created_at
FROM messages
WHERE session_id = $1
ORDER BY id DESC
LIMIT $2
`

func (q *Queries) RecentTurns(ctx context.Context, sessionID uuid.UUID, limit int32) ([]TurnRow, error) {
	rows, err := q.pool.Query(ctx, recentTurnsSQL, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TurnRow
	for rows.Next() {
		var row TurnRow
		if err := rows.Scan(&row.ID, &row.SessionID, &row.UserText,
			&row.AssistantText, &row.Language, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

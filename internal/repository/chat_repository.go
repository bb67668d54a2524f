package repository

import (
	"context"
	"time"

	"crypto-concierge/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createChatTurnsTable = `
CREATE TABLE IF NOT EXISTS chat_turns (
    id              BIGSERIAL   PRIMARY KEY,
    conversation_id TEXT        NOT NULL,
    role            TEXT        NOT NULL,
    content         TEXT        NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chat_turns_conversation_time
    ON chat_turns (conversation_id, created_at DESC);
`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type ChatRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewChatRepository(pool PgxPool, tracer trace.Tracer) *ChatRepository {
	return &ChatRepository{pool: pool, tracer: tracer}
}

func (r *ChatRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "chat-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createChatTurnsTable)
	return err
}

func (r *ChatRepository) AppendTurn(ctx context.Context, conversationID, role, content string) error {
	_, span := r.tracer.Start(ctx, "chat-repo.append-turn")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_turns (conversation_id, role, content) VALUES ($1, $2, $3)`,
		conversationID, role, content,
	)
	return err
}

// RecentTurns returns up to limit turns, oldest first, for prompt building.
func (r *ChatRepository) RecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.ChatTurn, error) {
	_, span := r.tracer.Start(ctx, "chat-repo.recent-turns")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, role, content, created_at
		 FROM chat_turns
		 WHERE conversation_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.ChatTurn
	for rows.Next() {
		var t domain.ChatTurn
		var ts time.Time
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &ts); err != nil {
			return nil, err
		}
		t.ConversationID = conversationID
		t.CreatedAt = ts.UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse: DB returns newest-first, we need oldest-first for prompt building
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

// ListTurns returns the full conversation in chronological order.
func (r *ChatRepository) ListTurns(ctx context.Context, conversationID string) ([]domain.ChatTurn, error) {
	_, span := r.tracer.Start(ctx, "chat-repo.list-turns")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, role, content, created_at
		 FROM chat_turns
		 WHERE conversation_id = $1
		 ORDER BY created_at ASC`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.ChatTurn
	for rows.Next() {
		var t domain.ChatTurn
		var ts time.Time
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &ts); err != nil {
			return nil, err
		}
		t.ConversationID = conversationID
		t.CreatedAt = ts.UTC()
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// DeleteConversation removes every turn and reports how many were deleted.
func (r *ChatRepository) DeleteConversation(ctx context.Context, conversationID string) (int64, error) {
	_, span := r.tracer.Start(ctx, "chat-repo.delete-conversation")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM chat_turns WHERE conversation_id = $1`,
		conversationID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

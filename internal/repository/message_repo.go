package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nutricoach-api/internal/domain"
)

// MessageRepository guarda el log ordenado (por Seq) de cada thread.
type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) error
	ListByThread(ctx context.Context, threadID string) ([]domain.Message, error)
	Last(ctx context.Context, threadID string) (domain.Message, error)
	DeleteByThread(ctx context.Context, threadID string) error
}

type MemoryMessageRepository struct {
	mu       sync.RWMutex
	byThread map[string][]domain.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{byThread: make(map[string][]domain.Message)}
}

func (r *MemoryMessageRepository) Create(_ context.Context, message domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byThread[message.ThreadID] = append(r.byThread[message.ThreadID], message)
	return nil
}

func (r *MemoryMessageRepository) ListByThread(_ context.Context, threadID string) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.byThread[threadID]
	out := make([]domain.Message, len(stored))
	copy(out, stored)
	return out, nil
}

func (r *MemoryMessageRepository) Last(_ context.Context, threadID string) (domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.byThread[threadID]
	if len(stored) == 0 {
		return domain.Message{}, ErrNotFound
	}
	return stored[len(stored)-1], nil
}

func (r *MemoryMessageRepository) DeleteByThread(_ context.Context, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byThread, threadID)
	return nil
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) Create(ctx context.Context, message domain.Message) error {
	const query = `
		INSERT INTO messages (id, user_id, thread_id, seq, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		message.ID,
		message.UserID,
		message.ThreadID,
		message.Seq,
		message.Role,
		message.Content,
		message.CreatedAt,
	)
	return err
}

func (r *PgMessageRepository) ListByThread(ctx context.Context, threadID string) ([]domain.Message, error) {
	const query = `
		SELECT id, user_id, thread_id, seq, role, content, created_at
		FROM messages
		WHERE thread_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.pool.Query(ctx, query, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		err = rows.Scan(
			&msg.ID,
			&msg.UserID,
			&msg.ThreadID,
			&msg.Seq,
			&msg.Role,
			&msg.Content,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *PgMessageRepository) Last(ctx context.Context, threadID string) (domain.Message, error) {
	const query = `
		SELECT id, user_id, thread_id, seq, role, content, created_at
		FROM messages
		WHERE thread_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`
	var msg domain.Message
	err := r.pool.QueryRow(ctx, query, threadID).Scan(
		&msg.ID,
		&msg.UserID,
		&msg.ThreadID,
		&msg.Seq,
		&msg.Role,
		&msg.Content,
		&msg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, ErrNotFound
	}
	return msg, err
}

func (r *PgMessageRepository) DeleteByThread(ctx context.Context, threadID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE thread_id = $1`, threadID)
	return err
}

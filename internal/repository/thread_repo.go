package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nutricoach-api/internal/domain"
)

// ThreadRepository guarda los threads de cada usuario y el puntero al thread actual.
type ThreadRepository interface {
	Create(ctx context.Context, thread domain.Thread) error
	GetByID(ctx context.Context, id string) (domain.Thread, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Thread, error)
	GetCurrent(ctx context.Context, userID string) (string, error)
	SetCurrent(ctx context.Context, userID, threadID string) error
}

type MemoryThreadRepository struct {
	mu      sync.RWMutex
	threads map[string]domain.Thread
	byUser  map[string][]string
	current map[string]string
}

func NewMemoryThreadRepository() *MemoryThreadRepository {
	return &MemoryThreadRepository{
		threads: make(map[string]domain.Thread),
		byUser:  make(map[string][]string),
		current: make(map[string]string),
	}
}

func (r *MemoryThreadRepository) Create(_ context.Context, thread domain.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[thread.ID]; !ok {
		r.byUser[thread.UserID] = append(r.byUser[thread.UserID], thread.ID)
	}
	r.threads[thread.ID] = thread
	return nil
}

func (r *MemoryThreadRepository) GetByID(_ context.Context, id string) (domain.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	thread, ok := r.threads[id]
	if !ok {
		return domain.Thread{}, ErrNotFound
	}
	return thread, nil
}

func (r *MemoryThreadRepository) ListByUser(_ context.Context, userID string) ([]domain.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byUser[userID]
	out := make([]domain.Thread, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.threads[id])
	}
	return out, nil
}

func (r *MemoryThreadRepository) GetCurrent(_ context.Context, userID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.current[userID]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (r *MemoryThreadRepository) SetCurrent(_ context.Context, userID, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current[userID] = threadID
	return nil
}

type PgThreadRepository struct {
	pool *pgxpool.Pool
}

func NewPgThreadRepository(pool *pgxpool.Pool) *PgThreadRepository {
	return &PgThreadRepository{pool: pool}
}

func (r *PgThreadRepository) Create(ctx context.Context, thread domain.Thread) error {
	const query = `
		INSERT INTO threads (id, user_id, created_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.pool.Exec(ctx, query, thread.ID, thread.UserID, thread.CreatedAt)
	return err
}

func (r *PgThreadRepository) GetByID(ctx context.Context, id string) (domain.Thread, error) {
	const query = `
		SELECT id, user_id, created_at
		FROM threads
		WHERE id = $1
	`
	var thread domain.Thread
	err := r.pool.QueryRow(ctx, query, id).Scan(&thread.ID, &thread.UserID, &thread.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Thread{}, ErrNotFound
	}
	return thread, err
}

func (r *PgThreadRepository) ListByUser(ctx context.Context, userID string) ([]domain.Thread, error) {
	const query = `
		SELECT id, user_id, created_at
		FROM threads
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	threads := []domain.Thread{}
	for rows.Next() {
		var thread domain.Thread
		if err := rows.Scan(&thread.ID, &thread.UserID, &thread.CreatedAt); err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return threads, nil
}

func (r *PgThreadRepository) GetCurrent(ctx context.Context, userID string) (string, error) {
	const query = `SELECT thread_id FROM current_threads WHERE user_id = $1`
	var threadID string
	err := r.pool.QueryRow(ctx, query, userID).Scan(&threadID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return threadID, err
}

func (r *PgThreadRepository) SetCurrent(ctx context.Context, userID, threadID string) error {
	const query = `
		INSERT INTO current_threads (user_id, thread_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET thread_id = EXCLUDED.thread_id
	`
	_, err := r.pool.Exec(ctx, query, userID, threadID)
	return err
}

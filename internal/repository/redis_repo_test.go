package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"nutricoach-api/internal/domain"
)

func TestRedisSessionRepository_RoundTripAndTTL(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := &RedisSessionRepository{client: fake, prefix: "session:", now: func() time.Time { return now }}

	session := domain.Session{ID: "jti-1", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}
	if fake.ttls["session:jti-1"] != time.Hour {
		t.Fatalf("expected ttl 1h, got %v", fake.ttls["session:jti-1"])
	}

	got, err := repo.Get(ctx, "jti-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "u1" || !got.ExpiresAt.Equal(session.ExpiresAt) {
		t.Fatalf("unexpected session: %+v", got)
	}

	if err := repo.Delete(ctx, "jti-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, "jti-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRedisSessionRepository_PastExpiryGetsMinimumTTL(t *testing.T) {
	fake := newFakeRedis()
	now := time.Now().UTC()
	repo := &RedisSessionRepository{client: fake, prefix: "session:", now: func() time.Time { return now }}

	err := repo.Create(context.Background(), domain.Session{ID: "old", UserID: "u1", ExpiresAt: now.Add(-time.Minute)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if fake.ttls["session:old"] != time.Second {
		t.Fatalf("expected 1s floor ttl, got %v", fake.ttls["session:old"])
	}
}

func TestRedisSessionRepository_PropagatesErrors(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	repo := &RedisSessionRepository{client: fake, prefix: "session:", now: time.Now}

	if _, err := repo.Get(context.Background(), "jti"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped connection error, got %v", err)
	}
	if err := repo.Delete(context.Background(), "jti"); err == nil {
		t.Fatalf("expected delete error")
	}
}

func TestRedisThreadRepository_KeysAndListing(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	repo := &RedisThreadRepository{client: fake, prefix: redisChatPrefix}

	created := time.Date(2026, 3, 1, 9, 30, 0, 123, time.UTC)
	if err := repo.Create(ctx, domain.Thread{ID: "t1", UserID: "u1", CreatedAt: created}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, domain.Thread{ID: "t2", UserID: "u1", CreatedAt: created.Add(time.Minute)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if fake.hashes["chat:thread:t1"]["user_id"] != "u1" {
		t.Fatalf("expected thread hash, got %+v", fake.hashes)
	}
	if ids := fake.lists["chat:user:u1:threads"]; len(ids) != 2 || ids[0] != "t1" {
		t.Fatalf("unexpected thread index: %+v", ids)
	}

	got, err := repo.GetByID(ctx, "t1")
	if err != nil || got.UserID != "u1" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected thread: %+v, %v", got, err)
	}
	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	threads, err := repo.ListByUser(ctx, "u1")
	if err != nil || len(threads) != 2 || threads[1].ID != "t2" {
		t.Fatalf("unexpected list: %+v, %v", threads, err)
	}

	if _, err := repo.GetCurrent(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for current, got %v", err)
	}
	if err := repo.SetCurrent(ctx, "u1", "t2"); err != nil {
		t.Fatalf("set current: %v", err)
	}
	if fake.strings["chat:user:u1:current"] != "t2" {
		t.Fatalf("expected current key, got %+v", fake.strings)
	}
	current, err := repo.GetCurrent(ctx, "u1")
	if err != nil || current != "t2" {
		t.Fatalf("expected t2, got %q, %v", current, err)
	}
}

func TestRedisMessageRepository_AppendListLastDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	repo := &RedisMessageRepository{client: fake, prefix: redisChatPrefix}

	if _, err := repo.Last(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty thread, got %v", err)
	}

	now := time.Now().UTC()
	msgs := []domain.Message{
		{ID: "m1", UserID: "u1", ThreadID: "t1", Seq: 0, Role: domain.RoleUser, Content: "hello", CreatedAt: now},
		{ID: "m2", UserID: "u1", ThreadID: "t1", Seq: 1, Role: domain.RoleAssistant, Content: "hi there", CreatedAt: now},
	}
	for _, m := range msgs {
		if err := repo.Create(ctx, m); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if len(fake.lists["chat:thread:t1:messages"]) != 2 {
		t.Fatalf("expected 2 entries in message list, got %+v", fake.lists)
	}

	list, err := repo.ListByThread(ctx, "t1")
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 messages, got %+v, %v", list, err)
	}
	if list[0].Content != "hello" || list[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected order: %+v", list)
	}

	last, err := repo.Last(ctx, "t1")
	if err != nil || last.ID != "m2" {
		t.Fatalf("expected m2 as last, got %+v, %v", last, err)
	}

	if err := repo.DeleteByThread(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err = repo.ListByThread(ctx, "t1")
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty after delete, got %+v, %v", list, err)
	}
}

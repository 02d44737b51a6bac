package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nutricoach-api/internal/domain"
)

// Layout de claves:
//
//	chat:user:<uid>:current     string, id del thread actual
//	chat:user:<uid>:threads     list, ids de threads en orden de creación
//	chat:thread:<tid>           hash, user_id y created_at
//	chat:thread:<tid>:messages  list, mensajes JSON en orden de Seq
type redisConversationClient interface {
	redisKV
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	LIndex(ctx context.Context, key string, index int64) *redis.StringCmd
}

const redisChatPrefix = "chat:"

func userCurrentKey(prefix, userID string) string {
	return prefix + "user:" + userID + ":current"
}

func userThreadsKey(prefix, userID string) string {
	return prefix + "user:" + userID + ":threads"
}

func threadKey(prefix, threadID string) string {
	return prefix + "thread:" + threadID
}

func threadMessagesKey(prefix, threadID string) string {
	return prefix + "thread:" + threadID + ":messages"
}

type RedisThreadRepository struct {
	client redisConversationClient
	prefix string
}

func NewRedisThreadRepository(client *redis.Client) *RedisThreadRepository {
	return &RedisThreadRepository{client: client, prefix: redisChatPrefix}
}

func (r *RedisThreadRepository) Create(ctx context.Context, thread domain.Thread) error {
	err := r.client.HSet(ctx, threadKey(r.prefix, thread.ID),
		"user_id", thread.UserID,
		"created_at", thread.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("save thread: %w", err)
	}
	if err := r.client.RPush(ctx, userThreadsKey(r.prefix, thread.UserID), thread.ID).Err(); err != nil {
		return fmt.Errorf("index thread: %w", err)
	}
	return nil
}

func (r *RedisThreadRepository) GetByID(ctx context.Context, id string) (domain.Thread, error) {
	fields, err := r.client.HGetAll(ctx, threadKey(r.prefix, id)).Result()
	if err != nil {
		return domain.Thread{}, fmt.Errorf("get thread: %w", err)
	}
	if len(fields) == 0 {
		return domain.Thread{}, ErrNotFound
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return domain.Thread{}, fmt.Errorf("parse thread created_at: %w", err)
	}
	return domain.Thread{ID: id, UserID: fields["user_id"], CreatedAt: createdAt}, nil
}

func (r *RedisThreadRepository) ListByUser(ctx context.Context, userID string) ([]domain.Thread, error) {
	ids, err := r.client.LRange(ctx, userThreadsKey(r.prefix, userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	threads := make([]domain.Thread, 0, len(ids))
	for _, id := range ids {
		thread, err := r.GetByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	return threads, nil
}

func (r *RedisThreadRepository) GetCurrent(ctx context.Context, userID string) (string, error) {
	id, err := r.client.Get(ctx, userCurrentKey(r.prefix, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get current thread: %w", err)
	}
	return id, nil
}

func (r *RedisThreadRepository) SetCurrent(ctx context.Context, userID, threadID string) error {
	return r.client.Set(ctx, userCurrentKey(r.prefix, userID), threadID, 0).Err()
}

type RedisMessageRepository struct {
	client redisConversationClient
	prefix string
}

func NewRedisMessageRepository(client *redis.Client) *RedisMessageRepository {
	return &RedisMessageRepository{client: client, prefix: redisChatPrefix}
}

func (r *RedisMessageRepository) Create(ctx context.Context, message domain.Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return r.client.RPush(ctx, threadMessagesKey(r.prefix, message.ThreadID), payload).Err()
}

func (r *RedisMessageRepository) ListByThread(ctx context.Context, threadID string) ([]domain.Message, error) {
	raw, err := r.client.LRange(ctx, threadMessagesKey(r.prefix, threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	messages := make([]domain.Message, 0, len(raw))
	for _, item := range raw {
		var msg domain.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r *RedisMessageRepository) Last(ctx context.Context, threadID string) (domain.Message, error) {
	raw, err := r.client.LIndex(ctx, threadMessagesKey(r.prefix, threadID), -1).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Message{}, ErrNotFound
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("last message: %w", err)
	}
	var msg domain.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return domain.Message{}, fmt.Errorf("unmarshal message: %w", err)
	}
	return msg, nil
}

func (r *RedisMessageRepository) DeleteByThread(ctx context.Context, threadID string) error {
	return r.client.Del(ctx, threadMessagesKey(r.prefix, threadID)).Err()
}

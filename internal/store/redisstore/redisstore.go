// Package redisstore mirrors the plan state into Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fentz26/studyplan/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "studyplan:"

// maxPDR bounds the audit list.
const maxPDR = 1000

// Store is a Redis-backed mirror.
type Store struct {
	client *redis.Client
	prefix string
}

// Connect creates a Redis client from a URL and verifies it.
func Connect(ctx context.Context, redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, DefaultPrefix), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// Read returns the values stored under keys. Missing keys are omitted.
func (s *Store) Read(ctx context.Context, keys ...string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	values, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget records: %w", err)
	}

	out := make(map[string]string, len(keys))
	for i, v := range values {
		if str, ok := v.(string); ok {
			out[keys[i]] = str
		}
	}
	return out, nil
}

// Write sets every record in one MULTI/EXEC transaction.
func (s *Store) Write(ctx context.Context, records map[string]string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range records {
			pipe.Set(ctx, s.key(k), v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

// Delete removes the records stored under keys.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

// WritePDR pushes a Process Decision Record onto a capped list.
func (s *Store) WritePDR(action, inputsHash, outcome, taskID, details string) (*models.PDREntry, error) {
	pdr := &models.PDREntry{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		TaskID:     taskID,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}
	data, err := json.Marshal(pdr)
	if err != nil {
		return nil, fmt.Errorf("encode pdr: %w", err)
	}

	ctx := context.Background()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key("pdr"), data)
		pipe.LTrim(ctx, s.key("pdr"), 0, maxPDR-1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("push pdr: %w", err)
	}
	return pdr, nil
}

// ListPDR returns the most recent audit entries, newest first.
func (s *Store) ListPDR(limit int) ([]models.PDREntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	items, err := s.client.LRange(context.Background(), s.key("pdr"), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read pdr: %w", err)
	}
	entries := make([]models.PDREntry, 0, len(items))
	for _, item := range items {
		var e models.PDREntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode pdr: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

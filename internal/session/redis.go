// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/validation-engine/pkg/types"
)

const keyPrefix = "validation-engine:"

// RedisStore keeps sessions in Redis: one JSON string per session, one list
// for its history and a set indexing every ID. A non-zero TTL expires idle
// sessions; every Save refreshes it.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to cfg.RedisAddr and pings it.
func NewRedisStore(ctx context.Context, cfg types.SessionConfig) (*RedisStore, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("session backend redis requires redis_addr")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}
	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

func sessionKey(id string) string { return keyPrefix + "session:" + id }
func historyKey(id string) string { return keyPrefix + "history:" + id }
func indexKey() string            { return keyPrefix + "sessions" }

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Create inserts a new session. It fails if the ID is taken.
func (s *RedisStore) Create(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, sessionKey(sess.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("creating session %s: %w", sess.ID, err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	if err := s.client.SAdd(ctx, indexKey(), sess.ID).Err(); err != nil {
		return fmt.Errorf("indexing session %s: %w", sess.ID, err)
	}
	return nil
}

// Load returns the session with id.
func (s *RedisStore) Load(ctx context.Context, id string) (Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("loading session %s: %w", id, err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("decoding session %s: %w: %v", id, ErrInconsistentRecord, err)
	}
	if err := checkRecord(id, sess.Record); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Save overwrites an existing session and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	ok, err := s.client.SetXX(ctx, sessionKey(sess.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("saving session %s: %w", sess.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sess.ID)
	}
	if s.ttl > 0 {
		s.client.Expire(ctx, historyKey(sess.ID), s.ttl)
	}
	return nil
}

// Delete removes a session, its history and its index entry.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, sessionKey(id))
	pipe.Del(ctx, historyKey(id))
	pipe.SRem(ctx, indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns all live sessions, most recently updated first. IDs whose
// session key has expired are pruned from the index.
func (s *RedisStore) List(ctx context.Context) ([]Session, error) {
	ids, err := s.client.SMembers(ctx, indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}

	var out []Session
	var expired []any
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var sess Session
		if err := json.Unmarshal([]byte(str), &sess); err != nil {
			return nil, fmt.Errorf("decoding session %s: %w", ids[i], err)
		}
		out = append(out, sess)
	}
	if len(expired) > 0 {
		s.client.SRem(ctx, indexKey(), expired...)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AppendHistory pushes a transition onto the session's history list.
func (s *RedisStore) AppendHistory(ctx context.Context, id string, t Transition) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling transition: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, historyKey(id), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, historyKey(id), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("appending history for %s: %w", id, err)
	}
	return nil
}

// History returns the transitions of a session, oldest first.
func (s *RedisStore) History(ctx context.Context, id string) ([]Transition, error) {
	items, err := s.client.LRange(ctx, historyKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("querying history for %s: %w", id, err)
	}
	out := make([]Transition, 0, len(items))
	for _, item := range items {
		var t Transition
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("decoding history for %s: %w", id, err)
		}
		out = append(out, t)
	}
	return out, nil
}

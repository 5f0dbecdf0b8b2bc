package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pageza/nutriplan/backend/internal/types"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

func newSession() types.Session {
	return types.Session{
		ID:        uuid.New().String(),
		Turns:     []types.ConversationTurn{},
		CreatedAt: time.Now().UTC(),
	}
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]types.Session
}

var _ ISessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates a store whose sessions expire ttl after
// creation. A zero ttl never expires.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{ttl: ttl, now: time.Now, sessions: make(map[string]types.Session)}
}

func (m *MemorySessionStore) Create(_ context.Context) (types.Session, error) {
	s := newSession()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s, nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return types.Session{}, ErrSessionNotFound
	}
	if m.ttl > 0 && m.now().After(s.CreatedAt.Add(m.ttl)) {
		delete(m.sessions, id)
		return types.Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *MemorySessionStore) Save(_ context.Context, s types.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return ErrSessionNotFound
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// RedisSessionStore keeps sessions as JSON values with a TTL.
type RedisSessionStore struct {
	redis *redis.Client
	ttl   time.Duration
}

var _ ISessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore creates a Redis-backed store.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{redis: client, ttl: ttl}
}

func sessionKey(id string) string {
	return fmt.Sprintf("nutriplan:session:%s", id)
}

// Create saves a new empty session.
func (r *RedisSessionStore) Create(ctx context.Context) (types.Session, error) {
	s := newSession()
	data, err := json.Marshal(s)
	if err != nil {
		return types.Session{}, fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.redis.Set(ctx, sessionKey(s.ID), data, r.ttl).Err(); err != nil {
		return types.Session{}, fmt.Errorf("failed to save session to Redis: %w", err)
	}
	return s, nil
}

// Get retrieves a session from Redis
func (r *RedisSessionStore) Get(ctx context.Context, id string) (types.Session, error) {
	data, err := r.redis.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return types.Session{}, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var s types.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return types.Session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return s, nil
}

// Save overwrites an existing session and keeps its remaining TTL.
func (r *RedisSessionStore) Save(ctx context.Context, s types.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	ok, err := r.redis.SetArgs(ctx, sessionKey(s.ID), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Result()
	if errors.Is(err, redis.Nil) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update session in Redis: %w", err)
	}
	if ok != "OK" {
		return ErrSessionNotFound
	}
	return nil
}

// Delete removes a session from Redis
func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := r.redis.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	return nil
}

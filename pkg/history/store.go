package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "chat_session:"
	defaultTTL = time.Hour
)

// Roles a stored turn can carry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// kv is the subset of the redis client the store needs. Tests swap in
// an in-memory fake.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Store keeps per-session conversation history in redis with a
// sliding expiry. Every save rewrites the full transcript and
// refreshes the TTL.
type Store struct {
	client kv
	ttl    time.Duration
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client, ttl: defaultTTL}
}

func newStoreWithKV(client kv, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Get returns the stored turns for a session. A missing key, an
// unreachable redis or a corrupt payload all yield an empty history
// so a transient store failure never blocks a conversation.
func (s *Store) Get(ctx context.Context, sessionID string) []Turn {
	raw, err := s.client.Get(ctx, keyPrefix+sessionID).Result()
	if err != nil {
		return nil
	}
	var turns []Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil
	}
	return turns
}

// Save overwrites the session transcript and resets the expiry.
func (s *Store) Save(ctx context.Context, sessionID string, turns []Turn) error {
	payload, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+sessionID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// Append loads the current transcript, adds the given turns and saves
// the result. History reads are best-effort so a failed read appends
// onto an empty transcript.
func (s *Store) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	current := s.Get(ctx, sessionID)
	return s.Save(ctx, sessionID, append(current, turns...))
}

// Package redis provides a Redis-backed history store for deployments where
// several server processes share conversation history.
//
// # Keys
//
//	<prefix>sessions              sorted set of session ids scored by creation time
//	<prefix>session:<id>          hash with id, title and created_at
//	<prefix>session:<id>:messages list of JSON-encoded turns
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// DefaultKeyPrefix namespaces all keys written by the store.
const DefaultKeyPrefix = "docqa:"

const (
	fieldID        = "id"
	fieldTitle     = "title"
	fieldCreatedAt = "created_at"
)

// Ensure HistoryStore implements the interface.
var _ driven.HistoryStore = (*HistoryStore)(nil)

// Config holds Redis connection configuration.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// HistoryStore keeps sessions in Redis hashes and lists.
type HistoryStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewHistoryStore connects to Redis and verifies the connection.
func NewHistoryStore(ctx context.Context, cfg Config) (*HistoryStore, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	return &HistoryStore{client: client, prefix: cfg.KeyPrefix, now: time.Now}, nil
}

// Close releases the connection pool.
func (s *HistoryStore) Close() error {
	return s.client.Close()
}

// Create stores a new session, replacing any previous session with the same id.
func (s *HistoryStore) Create(ctx context.Context, session *domain.Session) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(session.ID), s.messagesKey(session.ID))
		pipe.HSet(ctx, s.sessionKey(session.ID),
			fieldID, session.ID,
			fieldTitle, session.Title,
			fieldCreatedAt, session.CreatedAt.Format(time.RFC3339Nano),
		)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{
			Score:  float64(session.CreatedAt.UnixNano()),
			Member: session.ID,
		})
		for _, turn := range session.Messages {
			data, err := json.Marshal(turn)
			if err != nil {
				return fmt.Errorf("encoding turn: %w", err)
			}
			pipe.RPush(ctx, s.messagesKey(session.ID), data)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating session %s: %w", session.ID, err)
	}
	return nil
}

// Load reads a session and all its turns.
func (s *HistoryStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}

	raw, err := s.client.LRange(ctx, s.messagesKey(sessionID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("loading messages for %s: %w", sessionID, err)
	}

	session := sessionFromFields(sessionID, fields)
	session.Messages = make([]domain.Turn, 0, len(raw))
	for _, item := range raw {
		var turn domain.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decoding turn for %s: %w", sessionID, err)
		}
		session.Messages = append(session.Messages, turn)
	}
	return session, nil
}

// Append adds a turn, creating the session if it does not exist.
// The list length returned by RPUSH decides whether this is the first turn,
// so concurrent appends agree on which one retitles the session.
func (s *HistoryStore) Append(ctx context.Context, sessionID string, turn domain.Turn) error {
	now := s.now()
	if turn.Timestamp.IsZero() {
		turn.Timestamp = now
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encoding turn: %w", err)
	}

	var length *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := s.sessionKey(sessionID)
		pipe.HSetNX(ctx, key, fieldID, sessionID)
		pipe.HSetNX(ctx, key, fieldTitle, domain.DefaultSessionTitle)
		pipe.HSetNX(ctx, key, fieldCreatedAt, now.Format(time.RFC3339Nano))
		pipe.ZAddNX(ctx, s.indexKey(), redis.Z{Score: float64(now.UnixNano()), Member: sessionID})
		length = pipe.RPush(ctx, s.messagesKey(sessionID), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending to session %s: %w", sessionID, err)
	}

	if turn.Role == domain.RoleUser && length.Val() == 1 {
		title := domain.TitleFromQuestion(turn.Content)
		if err := s.client.HSet(ctx, s.sessionKey(sessionID), fieldTitle, title).Err(); err != nil {
			return fmt.Errorf("setting title for %s: %w", sessionID, err)
		}
	}
	return nil
}

// List returns all sessions, most recent first.
func (s *HistoryStore) List(ctx context.Context) ([]domain.SessionSummary, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.sessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	result := make([]domain.SessionSummary, 0, len(ids))
	for i, id := range ids {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		result = append(result, sessionFromFields(id, fields).Summary())
	}
	return result, nil
}

// Delete removes a session and its turns.
func (s *HistoryStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(sessionID), s.messagesKey(sessionID))
		pipe.ZRem(ctx, s.indexKey(), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

func (s *HistoryStore) indexKey() string {
	return s.prefix + "sessions"
}

func (s *HistoryStore) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *HistoryStore) messagesKey(id string) string {
	return s.prefix + "session:" + id + ":messages"
}

func sessionFromFields(id string, fields map[string]string) *domain.Session {
	session := &domain.Session{ID: id, Title: fields[fieldTitle]}
	if session.Title == "" {
		session.Title = domain.DefaultSessionTitle
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt]); err == nil {
		session.CreatedAt = ts
	}
	return session
}

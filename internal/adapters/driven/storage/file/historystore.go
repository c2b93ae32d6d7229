// Package file provides a JSON-file implementation of the history store.
//
// Each session is one indented JSON document named <session-id>.json:
//
//	{"id": "...", "title": "...", "created_at": "...", "messages": [...]}
//
// Files are replaced atomically on every write.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure HistoryStore implements the interface.
var _ driven.HistoryStore = (*HistoryStore)(nil)

const fileExt = ".json"

// HistoryStore keeps one JSON file per session in a directory.
type HistoryStore struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// NewHistoryStore creates a store in dir.
// If dir is empty, defaults to ~/.docqa/history.
func NewHistoryStore(dir string) (*HistoryStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".docqa", "history")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	return &HistoryStore{dir: dir, now: time.Now}, nil
}

// Dir returns the history directory.
func (s *HistoryStore) Dir() string {
	return s.dir
}

// Create writes a new session file.
func (s *HistoryStore) Create(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.Messages == nil {
		session.Messages = []domain.Turn{}
	}
	return s.write(session)
}

// Load reads a session file.
func (s *HistoryStore) Load(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(sessionID)
}

// Append adds a turn to the session file, creating it if needed.
func (s *HistoryStore) Append(_ context.Context, sessionID string, turn domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.read(sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		session = &domain.Session{
			ID:        sessionID,
			Title:     domain.DefaultSessionTitle,
			CreatedAt: s.now(),
			Messages:  []domain.Turn{},
		}
	} else if err != nil {
		return err
	}

	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	session.AppendTurn(turn)
	return s.write(session)
}

// List returns all readable sessions, most recent first.
// Unreadable files are skipped.
func (s *HistoryStore) List(_ context.Context) ([]domain.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading history directory: %w", err)
	}

	var result []domain.SessionSummary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		session, err := s.read(strings.TrimSuffix(name, fileExt))
		if err != nil {
			logger.Warn("skipping history file %s: %v", name, err)
			continue
		}
		result = append(result, session.Summary())
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Delete removes a session file.
func (s *HistoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.path(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

// path resolves the session's history file inside the history directory.
func (s *HistoryStore) path(sessionID string) (string, error) {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, sessionID+fileExt), nil
}

func (s *HistoryStore) read(sessionID string) (*domain.Session, error) {
	path, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("reading session %s: %w", sessionID, err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", sessionID, err)
	}
	if session.ID == "" {
		session.ID = sessionID
	}
	if session.Messages == nil {
		session.Messages = []domain.Turn{}
	}
	return &session, nil
}

func (s *HistoryStore) write(session *domain.Session) error {
	path, err := s.path(session.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", session.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+session.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing session %s: %w", session.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing session %s: %w", session.ID, err)
	}
	return nil
}

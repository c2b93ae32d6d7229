package file

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

//go:embed defaults
var defaults embed.FS

const defaultsDir = "defaults"

// requiredPlaceholders must appear in every answer prompt, otherwise the
// model would never see the retrieved chunks or the question.
var requiredPlaceholders = []string{"{context}", "{question}"}

// PromptStore serves the answer prompts from ~/.docqa/prompts, seeding the
// directory with the built-in prompts on first use. An edited prompt that
// drops a required placeholder is ignored in favour of the built-in one.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.Mutex
	cache map[string]string
}

// NewPromptStore creates a prompt store rooted at dir, or ~/.docqa/prompts
// when dir is empty. Nothing is written until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".docqa", "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Load returns the prompt called name. Names without a built-in prompt
// return ErrNotFound.
func (s *PromptStore) Load(name string) (string, error) {
	builtin, ok := builtinPrompt(name)
	if !ok {
		return "", fmt.Errorf("prompt %q: %w", name, domain.ErrNotFound)
	}

	s.seedOnce.Do(s.seed)
	if s.seedErr != nil {
		logger.Debug("prompts: %v, using built-in %s", s.seedErr, name)
		return builtin, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prompt, ok := s.cache[name]; ok {
		return prompt, nil
	}
	prompt := s.read(name, builtin)
	s.cache[name] = prompt
	return prompt, nil
}

// Reload forgets cached prompts so edits on disk are picked up.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.cache)
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.dir
}

func (s *PromptStore) read(name, builtin string) string {
	data, err := os.ReadFile(filepath.Join(s.dir, name+".txt"))
	if err != nil {
		logger.Debug("prompts: %v, using built-in %s", err, name)
		return builtin
	}

	prompt := strings.TrimSpace(string(data))
	if missing := missingPlaceholders(prompt); len(missing) > 0 {
		logger.Warn("prompt %s.txt lacks %s, using the built-in prompt", name, strings.Join(missing, " and "))
		return builtin
	}
	return prompt
}

// seed copies every built-in file that is not already on disk.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	entries, err := defaults.ReadDir(defaultsDir)
	if err != nil {
		s.seedErr = err
		return
	}
	for _, entry := range entries {
		data, err := defaults.ReadFile(path.Join(defaultsDir, entry.Name()))
		if err != nil {
			s.seedErr = err
			return
		}
		if err := writeIfAbsent(filepath.Join(s.dir, entry.Name()), data); err != nil {
			s.seedErr = fmt.Errorf("seed %s: %w", entry.Name(), err)
			return
		}
	}
}

func writeIfAbsent(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func builtinPrompt(name string) (string, bool) {
	data, err := defaults.ReadFile(path.Join(defaultsDir, name+".txt"))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func missingPlaceholders(prompt string) []string {
	var missing []string
	for _, p := range requiredPlaceholders {
		if !strings.Contains(prompt, p) {
			missing = append(missing, p)
		}
	}
	return missing
}

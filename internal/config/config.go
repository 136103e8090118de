package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"
)

// Config is the operator-editable settings file (settings.toml).
type Config struct {
	Keyword string   `toml:"keyword"`
	Admins  []string `toml:"admins"`
}

// Load reads config from the given path. Returns nil config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Service exposes the runtime bot settings. Implementations must be safe for
// concurrent use.
type Service interface {
	Keyword(ctx context.Context) (string, error)
	SetKeyword(ctx context.Context, keyword string) error
	Admins(ctx context.Context) ([]string, error)
	SetAdmins(ctx context.Context, admins []string) error
}

// IsAdmin reports whether username is on the allow-list held by svc.
func IsAdmin(ctx context.Context, svc Service, username string) (bool, error) {
	if username == "" {
		return false, nil
	}
	admins, err := svc.Admins(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(admins, username), nil
}

// FileService is a Service backed by a TOML file. The file is re-read on
// every call so manual edits take effect without a restart.
type FileService struct {
	mu   sync.Mutex
	path string
}

// NewFileService returns a FileService for path, creating the file with
// defaults if it does not exist yet.
func NewFileService(path string, defaults Config) (*FileService, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := Save(path, &defaults); err != nil {
			return nil, fmt.Errorf("seed settings file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat settings file: %w", err)
	}
	return &FileService{path: path}, nil
}

func (s *FileService) read() (*Config, error) {
	cfg, err := Load(s.path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return cfg, nil
}

func (s *FileService) update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.read()
	if err != nil {
		return err
	}
	fn(cfg)
	if err := Save(s.path, cfg); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Keyword returns the configured trigger keyword.
func (s *FileService) Keyword(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.read()
	if err != nil {
		return "", err
	}
	return cfg.Keyword, nil
}

// SetKeyword persists a new trigger keyword.
func (s *FileService) SetKeyword(_ context.Context, keyword string) error {
	return s.update(func(c *Config) { c.Keyword = keyword })
}

// Admins returns the admin allow-list.
func (s *FileService) Admins(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.read()
	if err != nil {
		return nil, err
	}
	return cfg.Admins, nil
}

// SetAdmins persists a new admin allow-list.
func (s *FileService) SetAdmins(_ context.Context, admins []string) error {
	return s.update(func(c *Config) { c.Admins = slices.Clone(admins) })
}

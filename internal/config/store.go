package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Store owns the active fusion policy. Readers take lock-free snapshots; writers build a new
// validated SearchConfig and swap it in.
type Store struct {
	defaultPath string
	savedPath   string
	logger      *zap.Logger

	active  atomic.Pointer[SearchConfig]
	writeMu sync.Mutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used for fallback and reload messages.
func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates a store. defaultPath may be empty, in which case DefaultSearchConfig is the
// factory default. The active policy starts as DefaultSearchConfig until LoadActive is called.
func NewStore(defaultPath, savedPath string, opts ...StoreOption) *Store {
	s := &Store{
		defaultPath: defaultPath,
		savedPath:   savedPath,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	def := DefaultSearchConfig()
	s.active.Store(&def)
	return s
}

// SavedPath returns the path of the saved policy file.
func (s *Store) SavedPath() string {
	return s.savedPath
}

// LoadDefault returns the factory defaults.
func (s *Store) LoadDefault() (SearchConfig, error) {
	if s.defaultPath == "" {
		return DefaultSearchConfig(), nil
	}
	data, err := os.ReadFile(s.defaultPath)
	if err != nil {
		return SearchConfig{}, fmt.Errorf("failed to read default search config: %w", err)
	}
	c, err := ParseSearchConfig(data)
	if err != nil {
		return SearchConfig{}, fmt.Errorf("default search config %s: %w", s.defaultPath, err)
	}
	return c, nil
}

// LoadSaved returns the saved policy, or nil with no error when none has been saved.
func (s *Store) LoadSaved() (*SearchConfig, error) {
	if s.savedPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.savedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read saved search config: %w", err)
	}
	c, err := ParseSearchConfig(data)
	if err != nil {
		return nil, fmt.Errorf("saved search config %s: %w", s.savedPath, err)
	}
	return &c, nil
}

// Save persists c atomically (temp file then rename) and makes it active.
func (s *Store) Save(c SearchConfig) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.save(c)
}

// SavePatch applies p to the active policy and persists the result. No other write can land
// between reading the active policy and storing the patched one.
func (s *Store) SavePatch(p SearchConfigPatch) (SearchConfig, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, err := p.Apply(s.Active())
	if err != nil {
		return SearchConfig{}, err
	}
	if err := s.save(next); err != nil {
		return SearchConfig{}, err
	}
	return next, nil
}

// save requires writeMu.
func (s *Store) save(c SearchConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if s.savedPath == "" {
		return errors.New("no saved search config path configured")
	}
	data, err := MarshalSearchConfig(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.savedPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".saved_config-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp config: %w", err)
	}
	if err := os.Rename(tmpName, s.savedPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace saved config: %w", err)
	}

	s.active.Store(&c)
	s.logger.Info("search config saved", zap.String("path", s.savedPath))
	return nil
}

// LoadActive resolves the policy to use at startup: the saved one when present and valid,
// otherwise the defaults. An invalid saved file is logged and ignored. The result becomes active.
func (s *Store) LoadActive() (SearchConfig, error) {
	saved, err := s.LoadSaved()
	if err != nil {
		s.logger.Warn("ignoring saved search config", zap.Error(err))
	}
	if err == nil && saved != nil {
		s.active.Store(saved)
		return *saved, nil
	}
	if err == nil {
		s.logger.Info("no saved search config found, using defaults")
	}
	def, err := s.LoadDefault()
	if err != nil {
		return SearchConfig{}, err
	}
	s.active.Store(&def)
	return def, nil
}

// Active returns a snapshot of the active policy.
func (s *Store) Active() SearchConfig {
	return *s.active.Load()
}

// Replace validates c and makes it active without persisting it.
func (s *Store) Replace(c SearchConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.writeMu.Lock()
	s.active.Store(&c)
	s.writeMu.Unlock()
	return nil
}

// Update applies p to the active policy and makes the result active without persisting it.
func (s *Store) Update(p SearchConfigPatch) (SearchConfig, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, err := p.Apply(s.Active())
	if err != nil {
		return SearchConfig{}, err
	}
	s.active.Store(&next)
	return next, nil
}

// Reset makes the defaults active. The saved file is left untouched.
func (s *Store) Reset() (SearchConfig, error) {
	def, err := s.LoadDefault()
	if err != nil {
		return SearchConfig{}, fmt.Errorf("failed to reset search config: %w", err)
	}
	s.writeMu.Lock()
	s.active.Store(&def)
	s.writeMu.Unlock()
	return def, nil
}

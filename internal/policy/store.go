package policy

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store holds the single live policy document.
type Store interface {
	// GetPolicy returns nil, nil when no document has been stored yet.
	GetPolicy(ctx context.Context) (*Config, error)
	SetPolicy(ctx context.Context, cfg Config) error
}

type memoryStore struct {
	mu  sync.RWMutex
	cfg *Config
}

func NewInMemoryStore() Store { return &memoryStore{} }

func (m *memoryStore) GetPolicy(_ context.Context) (*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg == nil {
		return nil, nil
	}
	c := clone(*m.cfg)
	return &c, nil
}

func (m *memoryStore) SetPolicy(_ context.Context, cfg Config) error {
	c := clone(cfg)
	m.mu.Lock()
	m.cfg = &c
	m.mu.Unlock()
	return nil
}

// Current loads the live policy and falls back to Default when none is stored.
func Current(ctx context.Context, s Store) (Config, error) {
	cfg, err := s.GetPolicy(ctx)
	if err != nil {
		return Config{}, fmt.Errorf("load policy: %w", err)
	}
	if cfg == nil {
		return Default(), nil
	}
	return *cfg, nil
}

// SeedIfEmpty stores cfg only when the store has no document. It reports
// whether a seed happened.
func SeedIfEmpty(ctx context.Context, s Store, cfg Config) (bool, error) {
	cur, err := s.GetPolicy(ctx)
	if err != nil {
		return false, err
	}
	if cur != nil {
		return false, nil
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return false, err
	}
	if err := s.SetPolicy(ctx, cfg); err != nil {
		return false, err
	}
	return true, nil
}

// Parse decodes a YAML (or JSON, being a YAML subset) policy document.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(b)
}

func clone(c Config) Config {
	out := c
	for _, pair := range []struct{ dst, src *StepRule }{
		{&out.Step1, &c.Step1}, {&out.Step2, &c.Step2}, {&out.Step3, &c.Step3},
	} {
		pair.dst.Thresholds = append([]Threshold(nil), pair.src.Thresholds...)
		if pair.src.LockStep1Below != nil {
			pair.dst.LockStep1Below = f64(*pair.src.LockStep1Below)
		}
		if pair.src.UnlockNextAt != nil {
			pair.dst.UnlockNextAt = f64(*pair.src.UnlockNextAt)
		}
	}
	return out
}

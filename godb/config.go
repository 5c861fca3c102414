package godb

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// BufferPoolConfig is the ambient configuration surface for a BufferPool,
// loadable from a YAML file.
type BufferPoolConfig struct {
	PageSize      int `yaml:"pageSize"`
	NumPages      int `yaml:"numPages"`
	LockTimeoutMS int `yaml:"lockTimeoutMs"`
}

// DefaultConfig returns the package defaults: 4096-byte pages, a 50-page
// pool, and a 500ms lock-acquire deadline.
func DefaultConfig() BufferPoolConfig {
	return BufferPoolConfig{
		PageSize:      DefaultPageSize,
		NumPages:      DefaultPages,
		LockTimeoutMS: int(lockAcquireDeadline.Milliseconds()),
	}
}

// LoadConfig reads a BufferPoolConfig from a YAML file at path, filling in
// DefaultConfig() for any field left unset (zero).
func LoadConfig(path string) (BufferPoolConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading buffer pool config")
	}
	var parsed BufferPoolConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return cfg, errors.Wrap(err, "parsing buffer pool config")
	}
	if parsed.PageSize != 0 {
		cfg.PageSize = parsed.PageSize
	}
	if parsed.NumPages != 0 {
		cfg.NumPages = parsed.NumPages
	}
	if parsed.LockTimeoutMS != 0 {
		cfg.LockTimeoutMS = parsed.LockTimeoutMS
	}
	return cfg, nil
}

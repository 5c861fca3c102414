package godb

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigMatchesPackageDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.PageSize != DefaultPageSize {
		t.Errorf("expected PageSize %d, got %d", DefaultPageSize, cfg.PageSize)
	}
	if cfg.NumPages != DefaultPages {
		t.Errorf("expected NumPages %d, got %d", DefaultPages, cfg.NumPages)
	}
	if time.Duration(cfg.LockTimeoutMS)*time.Millisecond != lockAcquireDeadline {
		t.Errorf("expected LockTimeoutMS %v, got %dms", lockAcquireDeadline, cfg.LockTimeoutMS)
	}
}

func TestLoadConfigOverridesOnlySetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bufferpool.yaml")
	yaml := "numPages: 7\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.NumPages != 7 {
		t.Errorf("expected NumPages 7 from file, got %d", cfg.NumPages)
	}
	if cfg.PageSize != DefaultPageSize {
		t.Errorf("expected PageSize to fall back to default %d, got %d", DefaultPageSize, cfg.PageSize)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error loading a nonexistent config file")
	}
}

func TestNewBufferPoolFromConfigAppliesPageSizeAndDeadline(t *testing.T) {
	defer ResetPageSize()
	cfg := BufferPoolConfig{PageSize: 256, NumPages: 4, LockTimeoutMS: 50}

	bp := NewBufferPoolFromConfig(cfg, NewMapCatalog(), nil)

	if PageSize != 256 {
		t.Errorf("expected NewBufferPoolFromConfig to apply PageSize 256, got %d", PageSize)
	}
	if bp.capacity != 4 {
		t.Errorf("expected capacity 4, got %d", bp.capacity)
	}
	if bp.deadline != 50*time.Millisecond {
		t.Errorf("expected deadline 50ms, got %v", bp.deadline)
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/chanctl/chanctl/internal/errors"
)

// Settings are the runtime knobs that are not part of any per-gateway
// document: pacing, concurrency, page sizes, and where state lives.
type Settings struct {
	Concurrency       int            `mapstructure:"concurrency"`
	RequestIntervalMS int            `mapstructure:"request_interval_ms"`
	PageSizes         map[string]int `mapstructure:"page_sizes"`
	MaxPages          int            `mapstructure:"max_pages"`
	DataDir           string         `mapstructure:"data_dir"`
	LogLevel          string         `mapstructure:"log_level"`
	NoColor           bool           `mapstructure:"no_color"`
}

// SetDefaults registers default settings on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("concurrency", 5)
	v.SetDefault("request_interval_ms", 0)
	v.SetDefault("page_sizes", map[string]int{"newapi": 100, "voapi": 100})
	v.SetDefault("max_pages", 500)
	v.SetDefault("log_level", "info")
	v.SetDefault("no_color", false)

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault("data_dir", filepath.Join(home, ".chanctl"))
}

// LoadSettings unmarshals settings from a prepared viper instance.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(errors.KindConfig, "parsing settings", err)
	}
	if s.Concurrency < 1 {
		return nil, errors.Newf(errors.KindConfig, "concurrency must be at least 1, got %d", s.Concurrency)
	}
	return &s, nil
}

// RequestInterval returns the configured fixed delay between outbound
// calls.
func (s *Settings) RequestInterval() time.Duration {
	return time.Duration(s.RequestIntervalMS) * time.Millisecond
}

// PageSize returns the page size for a vendor, defaulting to 100.
func (s *Settings) PageSize(apiType string) int {
	if n, ok := s.PageSizes[apiType]; ok && n > 0 {
		return n
	}
	return 100
}

// SnapshotDir is where pre-mutation snapshots are written.
func (s *Settings) SnapshotDir() string {
	return filepath.Join(s.DataDir, "snapshots")
}

// BackupDir is where update-rule backups are written.
func (s *Settings) BackupDir() string {
	return filepath.Join(s.DataDir, "backups")
}

// EnsureDirs creates the state directories if missing.
func (s *Settings) EnsureDirs() error {
	for _, dir := range []string{s.SnapshotDir(), s.BackupDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errors.KindSnapshot, fmt.Sprintf("creating %s", dir), err)
		}
	}
	return nil
}

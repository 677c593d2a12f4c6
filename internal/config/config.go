// internal/config/config.go
//
// This package handles configuration and the data directory layout.
// Every project that uses videoforge gets a videoforge.yaml in its root and
// a data/cache tree for cached external-call results.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the per-project configuration file.
	ConfigFileName = "videoforge.yaml"

	// CacheDirName is the root of the on-disk response cache.
	CacheDirName = "data/cache"
)

const defaultConfigYAML = `# videoforge project configuration
version: 1

paths:
  output_dir: output
  cache_dir: data/cache

cache:
  # TTLs per cache category. Entries older than their TTL are treated as
  # misses and swept on the next cleanup.
  api_response_hours: 24
  processed_image_days: 7
  temp_file_hours: 1
  max_size_gb: 10

retry:
  max_attempts: 3
  base_delay_ms: 500

timeline:
  # Total-duration drift (seconds) tolerated before a warning is raised.
  drift_tolerance_seconds: 0.5

services:
  tts_voice: alloy
  video_model: wan2.1-14_i2v-250225
  video_poll_seconds: 10
`

// PathsConfig names the filesystem roots used by a run.
type PathsConfig struct {
	OutputDir string `yaml:"output_dir"`
	CacheDir  string `yaml:"cache_dir"`
}

// CacheConfig carries cache TTLs and the capacity budget. The numbers are
// defaults, not algorithmic requirements.
type CacheConfig struct {
	APIResponseHours   int     `yaml:"api_response_hours"`
	ProcessedImageDays int     `yaml:"processed_image_days"`
	TempFileHours      int     `yaml:"temp_file_hours"`
	MaxSizeGB          float64 `yaml:"max_size_gb"`
}

// RetryConfig bounds retries of transient step failures.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
}

// TimelineConfig configures the reconciler.
type TimelineConfig struct {
	DriftToleranceSeconds float64 `yaml:"drift_tolerance_seconds"`
}

// ServicesConfig carries knobs for the external collaborators. API keys are
// never stored here; they come from the environment (.env is honoured).
type ServicesConfig struct {
	TTSVoice         string `yaml:"tts_voice"`
	VideoModel       string `yaml:"video_model"`
	VideoPollSeconds int    `yaml:"video_poll_seconds"`
}

// ProjectConfig models videoforge.yaml.
type ProjectConfig struct {
	Version  int            `yaml:"version"`
	Paths    PathsConfig    `yaml:"paths"`
	Cache    CacheConfig    `yaml:"cache"`
	Retry    RetryConfig    `yaml:"retry"`
	Timeline TimelineConfig `yaml:"timeline"`
	Services ServicesConfig `yaml:"services"`
}

// Config holds the runtime configuration for videoforge.
type Config struct {
	// ProjectDir is the directory the user ran videoforge from.
	ProjectDir string

	Project ProjectConfig
}

// New loads configuration for the given project directory. Missing config
// files fall back to defaults; a .env file, when present, is loaded into the
// process environment so service clients can pick up their API keys.
func New(projectDir string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(projectDir, ".env"))

	cfg := &Config{
		ProjectDir: projectDir,
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes the default videoforge.yaml if none exists and creates the
// cache directory tree.
func Init(projectDir string) error {
	path := filepath.Join(projectDir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: stat %s: %w", path, err)
		}
		if writeErr := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); writeErr != nil {
			return fmt.Errorf("config: write default config: %w", writeErr)
		}
	}
	for _, dir := range []string{
		filepath.Join(projectDir, CacheDirName, "api_responses"),
		filepath.Join(projectDir, CacheDirName, "processed_images"),
		filepath.Join(projectDir, CacheDirName, "temp_files"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func defaultProjectConfig() ProjectConfig {
	var cfg ProjectConfig
	if err := yaml.Unmarshal([]byte(defaultConfigYAML), &cfg); err != nil {
		panic(fmt.Sprintf("config: default config is invalid: %v", err))
	}
	return cfg
}

func (c *Config) loadProjectConfig() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.Project = mergeProjectConfig(c.Project, parsed)
	return nil
}

// mergeProjectConfig overlays parsed values onto the defaults so a sparse
// config file keeps sensible settings for everything it omits.
func mergeProjectConfig(base, parsed ProjectConfig) ProjectConfig {
	if parsed.Version != 0 {
		base.Version = parsed.Version
	}
	if parsed.Paths.OutputDir != "" {
		base.Paths.OutputDir = parsed.Paths.OutputDir
	}
	if parsed.Paths.CacheDir != "" {
		base.Paths.CacheDir = parsed.Paths.CacheDir
	}
	if parsed.Cache.APIResponseHours > 0 {
		base.Cache.APIResponseHours = parsed.Cache.APIResponseHours
	}
	if parsed.Cache.ProcessedImageDays > 0 {
		base.Cache.ProcessedImageDays = parsed.Cache.ProcessedImageDays
	}
	if parsed.Cache.TempFileHours > 0 {
		base.Cache.TempFileHours = parsed.Cache.TempFileHours
	}
	if parsed.Cache.MaxSizeGB > 0 {
		base.Cache.MaxSizeGB = parsed.Cache.MaxSizeGB
	}
	if parsed.Retry.MaxAttempts > 0 {
		base.Retry.MaxAttempts = parsed.Retry.MaxAttempts
	}
	if parsed.Retry.BaseDelayMS > 0 {
		base.Retry.BaseDelayMS = parsed.Retry.BaseDelayMS
	}
	if parsed.Timeline.DriftToleranceSeconds > 0 {
		base.Timeline.DriftToleranceSeconds = parsed.Timeline.DriftToleranceSeconds
	}
	if parsed.Services.TTSVoice != "" {
		base.Services.TTSVoice = parsed.Services.TTSVoice
	}
	if parsed.Services.VideoModel != "" {
		base.Services.VideoModel = parsed.Services.VideoModel
	}
	if parsed.Services.VideoPollSeconds > 0 {
		base.Services.VideoPollSeconds = parsed.Services.VideoPollSeconds
	}
	return base
}

// ConfigPath returns the on-disk location of the project config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.ProjectDir, ConfigFileName)
}

// OutputDir returns the root directory for run output.
func (c *Config) OutputDir() string {
	return c.resolve(c.Project.Paths.OutputDir)
}

// CacheDir returns the root directory of the response cache.
func (c *Config) CacheDir() string {
	return c.resolve(c.Project.Paths.CacheDir)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.ProjectDir, path)
}

// APIResponseTTL returns the TTL for cached API responses.
func (c *Config) APIResponseTTL() time.Duration {
	return time.Duration(c.Project.Cache.APIResponseHours) * time.Hour
}

// ProcessedImageTTL returns the TTL for cached processed-image artifacts.
func (c *Config) ProcessedImageTTL() time.Duration {
	return time.Duration(c.Project.Cache.ProcessedImageDays) * 24 * time.Hour
}

// TempFileTTL returns the TTL for transient scratch entries.
func (c *Config) TempFileTTL() time.Duration {
	return time.Duration(c.Project.Cache.TempFileHours) * time.Hour
}

// CacheCapacityBytes returns the configured cache capacity in bytes.
func (c *Config) CacheCapacityBytes() int64 {
	return int64(c.Project.Cache.MaxSizeGB * float64(1<<30))
}

// RetryBaseDelay returns the first backoff delay for retryable step errors.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Project.Retry.BaseDelayMS) * time.Millisecond
}

// DriftTolerance returns the reconciler drift tolerance in seconds.
func (c *Config) DriftTolerance() float64 {
	return c.Project.Timeline.DriftToleranceSeconds
}

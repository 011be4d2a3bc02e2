package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SILENCESENSE_"

// Config represents the complete service configuration
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Audio    AudioConfig    `yaml:"audio"`
	VAD      VADConfig      `yaml:"vad"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port           int      `yaml:"port"`
	Address        string   `yaml:"address"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
	ReadTimeout    int      `yaml:"read_timeout"`  // seconds
	WriteTimeout   int      `yaml:"write_timeout"` // seconds
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AudioConfig contains decoding parameters
type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"` // decoded audio is resampled to this rate
	ScratchDir string `yaml:"scratch_dir"` // empty means os.TempDir()
}

// VADConfig contains frame classification and smoothing parameters
type VADConfig struct {
	FrameDurationMs   int    `yaml:"frame_duration_ms"`
	PaddingDurationMs int    `yaml:"padding_duration_ms"`
	Mode              int    `yaml:"mode"`       // classifier aggressiveness, 0..3
	Classifier        string `yaml:"classifier"` // webrtc or energy
}

// AnalysisConfig bounds analysis work
type AnalysisConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
	Timeout       int `yaml:"timeout"` // seconds
}

// StorageConfig selects where analysis results are kept
type StorageConfig struct {
	Backend string      `yaml:"backend"` // memory or redis
	TTL     int         `yaml:"ttl"`     // seconds
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig contains redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration the service runs with when no file is given.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:           5000,
			Address:        "0.0.0.0",
			MaxUploadMB:    100,
			ReadTimeout:    60,
			WriteTimeout:   120,
			AllowedOrigins: []string{"*"},
		},
		Audio: AudioConfig{
			SampleRate: 16000,
		},
		VAD: VADConfig{
			FrameDurationMs:   30,
			PaddingDurationMs: 300,
			Mode:              3,
			Classifier:        "webrtc",
		},
		Analysis: AnalysisConfig{
			MaxConcurrent: 4,
			Timeout:       60,
		},
		Storage: StorageConfig{
			Backend: "memory",
			TTL:     3600,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "silencesense:",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file on top of Default, applies
// .env and environment overrides, and validates the result. An empty path
// skips the file.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides deployment settings from SILENCESENSE_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("HTTP_ADDRESS", &c.HTTP.Address)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("REDIS_ADDR", &c.Storage.Redis.Addr)
	str("REDIS_PASSWORD", &c.Storage.Redis.Password)
	str("SCRATCH_DIR", &c.Audio.ScratchDir)
	str("VAD_CLASSIFIER", &c.VAD.Classifier)

	for key, dst := range map[string]*int{
		"HTTP_PORT":           &c.HTTP.Port,
		"MAX_CONCURRENT":      &c.Analysis.MaxConcurrent,
		"FRAME_DURATION_MS":   &c.VAD.FrameDurationMs,
		"PADDING_DURATION_MS": &c.VAD.PaddingDurationMs,
		"VAD_MODE":            &c.VAD.Mode,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok {
		c.HTTP.AllowedOrigins = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if h.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be at least 1, got %d", h.MaxUploadMB)
	}

	if len(h.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins must list at least one origin")
	}

	if h.ReadTimeout < 1 || h.WriteTimeout < 1 {
		return fmt.Errorf("read_timeout and write_timeout must be at least 1 second, got %d and %d",
			h.ReadTimeout, h.WriteTimeout)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	switch a.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return fmt.Errorf("sample_rate must be one of 8000, 16000, 32000, 48000 Hz, got %d", a.SampleRate)
	}

	if a.ScratchDir != "" {
		info, err := os.Stat(a.ScratchDir)
		if err != nil {
			return fmt.Errorf("scratch_dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("scratch_dir %s is not a directory", a.ScratchDir)
		}
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	switch v.FrameDurationMs {
	case 10, 20, 30:
	default:
		return fmt.Errorf("frame_duration_ms must be 10, 20 or 30, got %d", v.FrameDurationMs)
	}

	if v.PaddingDurationMs < v.FrameDurationMs {
		return fmt.Errorf("padding_duration_ms (%d) must be at least frame_duration_ms (%d)",
			v.PaddingDurationMs, v.FrameDurationMs)
	}

	if v.Mode < 0 || v.Mode > 3 {
		return fmt.Errorf("mode must be between 0 and 3, got %d", v.Mode)
	}

	switch v.Classifier {
	case "webrtc", "energy":
	default:
		return fmt.Errorf("classifier must be webrtc or energy, got %q", v.Classifier)
	}

	return nil
}

// Validate validates analysis configuration
func (a *AnalysisConfig) Validate() error {
	if a.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", a.MaxConcurrent)
	}

	if a.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", a.Timeout)
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	switch s.Backend {
	case "memory":
	case "redis":
		if s.Redis.Addr == "" {
			return fmt.Errorf("redis addr cannot be empty when backend is redis")
		}
		if s.Redis.DB < 0 {
			return fmt.Errorf("redis db cannot be negative, got %d", s.Redis.DB)
		}
	default:
		return fmt.Errorf("backend must be 'memory' or 'redis', got '%s'", s.Backend)
	}

	if s.TTL < 1 {
		return fmt.Errorf("ttl must be at least 1 second, got %d", s.TTL)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetReadTimeout returns the read timeout as a time.Duration
func (h *HTTPConfig) GetReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeout) * time.Second
}

// GetWriteTimeout returns the write timeout as a time.Duration
func (h *HTTPConfig) GetWriteTimeout() time.Duration {
	return time.Duration(h.WriteTimeout) * time.Second
}

// GetMaxUploadBytes returns the upload limit in bytes
func (h *HTTPConfig) GetMaxUploadBytes() int64 {
	return int64(h.MaxUploadMB) << 20
}

// GetTimeoutDuration returns the per-analysis timeout as a time.Duration
func (a *AnalysisConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// GetTTLDuration returns the result retention as a time.Duration
func (s *StorageConfig) GetTTLDuration() time.Duration {
	return time.Duration(s.TTL) * time.Second
}

// Package config loads server settings from defaults, an optional YAML file
// and SLIDE_MCP_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "SLIDE_MCP_CONFIG"

// EnvPrefix is stripped from environment variables. A double underscore
// separates nesting levels: SLIDE_MCP_CACHE__GLOBAL_CAPACITY sets
// cache.global_capacity.
const EnvPrefix = "SLIDE_MCP_"

// DefaultMaxRegionPixels allows a 4096x4096 region, 48 MiB as RGB8.
const DefaultMaxRegionPixels = 4096 * 4096

// DefaultPaths are searched in order when PathEnvVar is unset.
var DefaultPaths = []string{
	"slide-mcp.yaml",
	"slide-mcp.yml",
}

// Config is the full server configuration.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Cache   CacheConfig   `koanf:"cache"`
	Slide   SlideConfig   `koanf:"slide"`
	OCR     OCRConfig     `koanf:"ocr"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled off"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// CacheConfig sizes the region caches.
type CacheConfig struct {
	// GlobalCapacity is applied to the process-wide cache at startup.
	GlobalCapacity int `koanf:"global_capacity" validate:"gt=0"`

	// RecentKeys is the history length of private per-session caches.
	RecentKeys int `koanf:"recent_keys" validate:"gte=0"`
}

// SlideConfig holds session defaults.
type SlideConfig struct {
	// KeyScope is "session" or "source".
	KeyScope string `koanf:"key_scope" validate:"oneof=session source"`

	// AttachGlobalCache attaches the global cache to new sessions unless
	// the open request says otherwise.
	AttachGlobalCache bool `koanf:"attach_global_cache"`

	// MaxRegionPixels caps width*height of one region request.
	MaxRegionPixels int64 `koanf:"max_region_pixels" validate:"gt=0"`

	Raster RasterConfig `koanf:"raster"`
}

// RasterConfig mirrors imaging.RasterOptions.
type RasterConfig struct {
	MinLevelSize  int     `koanf:"min_level_size" validate:"gt=0"`
	MPP           float64 `koanf:"mpp" validate:"gte=0"`
	ThumbnailSize int     `koanf:"thumbnail_size" validate:"gt=0,lte=8192"`
}

// OCRConfig configures label text recognition.
type OCRConfig struct {
	Language       string `koanf:"language" validate:"required"`
	TessdataPrefix string `koanf:"tessdata_prefix"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Listen
// disables it.
type MetricsConfig struct {
	Listen string `koanf:"listen" validate:"omitempty,hostname_port"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			GlobalCapacity: 1000,
			RecentKeys:     32,
		},
		Slide: SlideConfig{
			KeyScope:          "session",
			AttachGlobalCache: true,
			MaxRegionPixels:   DefaultMaxRegionPixels,
			Raster: RasterConfig{
				MinLevelSize:  256,
				ThumbnailSize: 256,
			},
		},
		OCR: OCRConfig{
			Language: "eng",
		},
	}
}

// Load builds the configuration from defaults, the config file (if any) and
// the environment, then validates it.
func Load() (*Config, error) {
	return load(findFile())
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps SLIDE_MCP_SLIDE__RASTER__MPP to slide.raster.mpp. Variables
// that are not part of the configuration map to "" and are dropped.
func envKey(key string) string {
	if key == PathEnvVar {
		return ""
	}
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

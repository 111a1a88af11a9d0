// Package config loads webp2png settings from defaults, an optional YAML
// file and WEBP2PNG_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/deepteams/webp2png"
)

// EnvPrefix is prepended to every environment override, with dots in keys
// replaced by underscores (convert.max_pixels -> WEBP2PNG_CONVERT_MAX_PIXELS).
const EnvPrefix = "WEBP2PNG"

// ConvertConfig holds transcoder settings.
type ConvertConfig struct {
	// Compression is the PNG zlib effort: default, none, speed or best.
	Compression string `mapstructure:"compression" yaml:"compression"`

	// Strict rejects every container other than WebP.
	Strict bool `mapstructure:"strict" yaml:"strict"`

	// MaxPixels bounds width*height (0 = library default).
	MaxPixels int `mapstructure:"max_pixels" yaml:"max_pixels"`

	// Verify re-reads the encoded PNG header after each conversion.
	Verify bool `mapstructure:"verify" yaml:"verify"`
}

// BatchConfig holds settings for directory and archive conversion.
type BatchConfig struct {
	// Workers is the number of concurrent conversions.
	Workers int `mapstructure:"workers" yaml:"workers"`

	// Extensions lists the lowercase file extensions taken from the source.
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`

	// Overwrite replaces existing outputs instead of skipping them.
	Overwrite bool `mapstructure:"overwrite" yaml:"overwrite"`
}

// BindConfig holds PDF binding settings.
type BindConfig struct {
	// DPI maps image pixels to PDF points (72 = one pixel per point).
	DPI float64 `mapstructure:"dpi" yaml:"dpi"`

	// Title is written to the document info dictionary when set.
	Title string `mapstructure:"title" yaml:"title"`
}

// ServerConfig holds the HTTP invocation endpoint settings.
type ServerConfig struct {
	Addr          string        `mapstructure:"addr" yaml:"addr"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	MaxConcurrent int64         `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// RateLimit is the sustained API request rate per second (0 = unlimited).
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	// RateBurst is the limiter bucket size (0 = max(1, RateLimit)).
	RateBurst int `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // json or console
}

// Config is the complete configuration.
type Config struct {
	Convert ConvertConfig `mapstructure:"convert" yaml:"convert"`
	Batch   BatchConfig   `mapstructure:"batch" yaml:"batch"`
	Bind    BindConfig    `mapstructure:"bind" yaml:"bind"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("convert.compression", "default")
	v.SetDefault("convert.strict", false)
	v.SetDefault("convert.max_pixels", webp2png.DefaultMaxPixels)
	v.SetDefault("convert.verify", true)

	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.extensions", []string{".webp", ".png", ".jpg", ".jpeg"})
	v.SetDefault("batch.overwrite", false)

	v.SetDefault("bind.dpi", 72.0)
	v.SetDefault("bind.title", "")

	v.SetDefault("server.addr", "127.0.0.1:8765")
	v.SetDefault("server.max_body_bytes", int64(64<<20))
	v.SetDefault("server.max_concurrent", int64(4))
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.rate_limit", 0.0)
	v.SetDefault("server.rate_burst", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration into v and returns it. An explicit cfgFile must
// exist; otherwise webp2png.yaml is looked up in the working directory and
// ~/.config/webp2png, and a missing file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("webp2png")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "webp2png"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading %s: %w", describe(v, cfgFile), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func describe(v *viper.Viper, cfgFile string) string {
	if cfgFile != "" {
		return cfgFile
	}
	if used := v.ConfigFileUsed(); used != "" {
		return used
	}
	return "webp2png.yaml"
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := webp2png.ParseCompression(c.Convert.Compression); err != nil {
		return fmt.Errorf("config: convert.compression: %w", err)
	}
	if c.Convert.MaxPixels < 0 {
		return fmt.Errorf("config: convert.max_pixels must be >= 0, got %d", c.Convert.MaxPixels)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("config: batch.workers must be >= 1, got %d", c.Batch.Workers)
	}
	if len(c.Batch.Extensions) == 0 {
		return errors.New("config: batch.extensions must not be empty")
	}
	if c.Bind.DPI <= 0 {
		return fmt.Errorf("config: bind.dpi must be > 0, got %g", c.Bind.DPI)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: server.max_body_bytes must be > 0, got %d", c.Server.MaxBodyBytes)
	}
	if c.Server.MaxConcurrent < 1 {
		return fmt.Errorf("config: server.max_concurrent must be >= 1, got %d", c.Server.MaxConcurrent)
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("config: server.rate_limit and server.rate_burst must be >= 0")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// Options translates ConvertConfig into converter options.
func (c ConvertConfig) Options() ([]webp2png.Option, error) {
	level, err := webp2png.ParseCompression(c.Compression)
	if err != nil {
		return nil, err
	}
	return []webp2png.Option{
		webp2png.WithCompression(level),
		webp2png.WithStrictWebP(c.Strict),
		webp2png.WithMaxPixels(c.MaxPixels),
		webp2png.WithVerify(c.Verify),
	}, nil
}

// NormalizedExtensions returns Extensions lowercased with a leading dot.
func (c BatchConfig) NormalizedExtensions() []string {
	out := make([]string, 0, len(c.Extensions))
	for _, e := range c.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

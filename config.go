package vecsketch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v8"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vecsketch/codec"
	"github.com/hupe1980/vecsketch/frame"
	"github.com/hupe1980/vecsketch/quantization"
	"github.com/hupe1980/vecsketch/resource"
	"github.com/hupe1980/vecsketch/sketch"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "VECSKETCH_"

// Config is the file and environment form of the compressor options plus
// the resource limits and storage settings around them.
type Config struct {
	Quantization string  `yaml:"quantization" env:"QUANTIZATION"`
	BinNum       int     `yaml:"binNum" env:"BIN_NUM"`
	GroupNum     int     `yaml:"groupNum" env:"GROUP_NUM"`
	RowNum       int     `yaml:"rowNum" env:"ROW_NUM"`
	ColRatio     float64 `yaml:"colRatio" env:"COL_RATIO"`
	KeyCodec     string  `yaml:"keyCodec" env:"KEY_CODEC"`
	// Seed fixes hash selection. 0 draws a fresh seed per sketch.
	Seed int64 `yaml:"seed" env:"SEED"`

	// Compression is the frame block compression: none, lz4, zstd or snappy.
	Compression string `yaml:"compression" env:"COMPRESSION"`

	LogLevel string `yaml:"logLevel" env:"LOG_LEVEL"`
	// LogFormat is text, json or none.
	LogFormat string `yaml:"logFormat" env:"LOG_FORMAT"`

	// Workers bounds parallel entry points. 0 uses GOMAXPROCS.
	Workers            int   `yaml:"workers" env:"WORKERS"`
	MemoryLimitBytes   int64 `yaml:"memoryLimitBytes" env:"MEMORY_LIMIT_BYTES"`
	IOLimitBytesPerSec int64 `yaml:"ioLimitBytesPerSec" env:"IO_LIMIT_BYTES_PER_SEC"`
}

// DefaultConfig returns the configuration matching the option defaults.
func DefaultConfig() Config {
	return Config{
		Quantization: quantization.Quantile.String(),
		BinNum:       quantization.DefaultBinNum,
		GroupNum:     sketch.DefaultGroupNum,
		RowNum:       sketch.DefaultRowNum,
		ColRatio:     sketch.DefaultColRatio,
		KeyCodec:     codec.Delta.String(),
		Compression:  frame.None.String(),
		LogLevel:     "info",
		LogFormat:    "none",
	}
}

// LoadConfig decodes YAML from r over DefaultConfig, then overlays
// VECSKETCH_* environment variables. r may be nil or empty.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	if r != nil {
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, translateError("load config", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, translateError("load config", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := c.Options(); err != nil {
		return err
	}
	if _, err := c.FrameCompression(); err != nil {
		return err
	}
	if _, err := c.Logger(); err != nil {
		return err
	}
	if c.Workers < 0 {
		return translateError("validate config", fmt.Errorf("%w: %d workers", resource.ErrInvalidParallelism, c.Workers))
	}
	if c.MemoryLimitBytes < 0 || c.IOLimitBytesPerSec < 0 {
		return translateError("validate config", fmt.Errorf("%w: negative resource limit", ErrInvalidConfig))
	}
	return nil
}

// Options converts the compressor settings into options. The logger built
// from LogLevel and LogFormat is included.
func (c Config) Options() ([]Option, error) {
	qk, err := quantization.ParseKind(c.Quantization)
	if err != nil {
		return nil, translateError("config options", err)
	}
	kc, err := codec.ParseKind(c.KeyCodec)
	if err != nil {
		return nil, translateError("config options", err)
	}
	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithQuantization(qk),
		WithBinNum(c.BinNum),
		WithGroupNum(c.GroupNum),
		WithRowNum(c.RowNum),
		WithColRatio(c.ColRatio),
		WithKeyCodec(kc),
		WithLogger(logger),
	}
	if c.Seed != 0 {
		opts = append(opts, WithSeed(c.Seed))
	}

	o := applyOptions(opts)
	if err := o.validate(); err != nil {
		return nil, translateError("config options", err)
	}
	return opts, nil
}

// ResourceConfig returns the controller settings.
func (c Config) ResourceConfig() resource.Config {
	return resource.Config{
		MaxWorkers:         c.Workers,
		MemoryLimitBytes:   c.MemoryLimitBytes,
		IOLimitBytesPerSec: c.IOLimitBytesPerSec,
	}
}

// FrameCompression parses Compression.
func (c Config) FrameCompression() (frame.Compression, error) {
	fc, err := frame.ParseCompression(c.Compression)
	return fc, translateError("config compression", err)
}

// Logger builds the logger described by LogLevel and LogFormat.
func (c Config) Logger() (*Logger, error) {
	var level slog.Level
	if c.LogLevel != "" {
		if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return nil, translateError("config logger", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "none":
		return NoopLogger(), nil
	case "text":
		return NewTextLogger(level), nil
	case "json":
		return NewJSONLogger(level), nil
	default:
		return nil, translateError("config logger", fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.LogFormat))
	}
}

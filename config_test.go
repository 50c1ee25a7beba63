package vecsketch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsketch/frame"
	"github.com/hupe1980/vecsketch/resource"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)

		cfg, err = LoadConfig(strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("yaml", func(t *testing.T) {
		cfg, err := LoadConfig(strings.NewReader(`
quantization: uniform
binNum: 64
groupNum: 4
colRatio: 0.5
keyCodec: adaptive
seed: 7
compression: zstd
workers: 2
memoryLimitBytes: 1048576
`))
		require.NoError(t, err)
		assert.Equal(t, "uniform", cfg.Quantization)
		assert.Equal(t, 64, cfg.BinNum)
		assert.Equal(t, 4, cfg.GroupNum)
		assert.Equal(t, 2, cfg.RowNum)
		assert.InDelta(t, 0.5, cfg.ColRatio, 0)
		assert.Equal(t, int64(7), cfg.Seed)

		fc, err := cfg.FrameCompression()
		require.NoError(t, err)
		assert.Equal(t, frame.ZSTD, fc)
		assert.Equal(t, resource.Config{MaxWorkers: 2, MemoryLimitBytes: 1 << 20}, cfg.ResourceConfig())
	})

	t.Run("env overrides yaml", func(t *testing.T) {
		t.Setenv("VECSKETCH_BIN_NUM", "32")
		t.Setenv("VECSKETCH_LOG_FORMAT", "json")
		t.Setenv("VECSKETCH_LOG_LEVEL", "debug")

		cfg, err := LoadConfig(strings.NewReader("binNum: 64\n"))
		require.NoError(t, err)
		assert.Equal(t, 32, cfg.BinNum)

		logger, err := cfg.Logger()
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name string
			yaml string
		}{
			{"syntax", "binNum: [1"},
			{"quantization", "quantization: bogus"},
			{"key codec", "keyCodec: huffman"},
			{"bins", "binNum: 1"},
			{"compression", "compression: brotli"},
			{"log format", "logFormat: xml"},
			{"log level", "logLevel: loud"},
			{"workers", "workers: -1"},
			{"memory", "memoryLimitBytes: -5"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := LoadConfig(strings.NewReader(tt.yaml))
				require.Error(t, err)
				assert.Equal(t, KindConfig, KindOf(err))
			})
		}
	})

	t.Run("invalid env", func(t *testing.T) {
		t.Setenv("VECSKETCH_ROW_NUM", "many")
		_, err := LoadConfig(nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quantization = "uniform"
	cfg.BinNum = 16
	cfg.GroupNum = 16
	cfg.Seed = 42

	opts, err := cfg.Options()
	require.NoError(t, err)

	c, err := NewSparse(opts...)
	require.NoError(t, err)
	require.NoError(t, c.CompressSparse([]int32{15, 3, 10}, []float64{0.5, 1, -2}))

	_, values, err := c.DecompressSparse()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.90625, -1.90625, 0.53125}, values)
}

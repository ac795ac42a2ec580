package avpresent

import (
	"fmt"
	"os"
	"time"

	"github.com/xaionaro-go/avpresent/framequeue"
	"github.com/xaionaro-go/avpresent/loadshed"
	"github.com/xaionaro-go/avpresent/sink"
	"github.com/xaionaro-go/avpresent/types"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxSinkFailures = 3
	maxQueueSize           = 1 << 16
)

type Config struct {
	// DegradeUnderLoad enables degraded decoding and frame skipping while
	// the presented frames are late.
	DegradeUnderLoad bool `yaml:"degrade_under_load"`

	// GrayscaleOnly asks the decoder for luma only.
	GrayscaleOnly bool `yaml:"grayscale_only"`

	QueueSize int `yaml:"queue_size"`

	LateDegradeAbove int `yaml:"late_degrade_above"`
	LateSkipAt       int `yaml:"late_skip_at"`

	// MaxDecodeErrors stops the pipeline after that many decode errors;
	// zero means unlimited.
	MaxDecodeErrors uint64 `yaml:"max_decode_errors"`

	// MaxSinkFailures stops the pipeline after that many consecutive
	// failures to acquire a surface; zero means unlimited.
	MaxSinkFailures int `yaml:"max_sink_failures"`

	BufferRetryInterval time.Duration `yaml:"buffer_retry_interval"`
	BufferRetryLimit    int           `yaml:"buffer_retry_limit"`

	Codec        string            `yaml:"codec"`
	CodecOptions map[string]string `yaml:"codec_options"`
}

func DefaultConfig() Config {
	return Config{
		QueueSize:           framequeue.DefaultSize,
		LateDegradeAbove:    loadshed.DefaultDegradeAbove,
		LateSkipAt:          loadshed.DefaultSkipAt,
		MaxSinkFailures:     DefaultMaxSinkFailures,
		BufferRetryInterval: sink.DefaultBufferRetryInterval,
		BufferRetryLimit:    sink.DefaultBufferRetryLimit,
	}
}

// LoadConfig reads a YAML config on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse '%s': %w", path, err)
	}
	return cfg, nil
}

func (cfg Config) Bytes() []byte {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return []byte(fmt.Sprintf("<unable to marshal: %v>", err))
	}
	return b
}

func (cfg Config) Validate() error {
	if cfg.LateDegradeAbove < 0 {
		return fmt.Errorf("late_degrade_above must not be negative, got %d", cfg.LateDegradeAbove)
	}
	if cfg.LateSkipAt <= cfg.LateDegradeAbove {
		return fmt.Errorf("late_skip_at (%d) must be above late_degrade_above (%d)", cfg.LateSkipAt, cfg.LateDegradeAbove)
	}
	if cfg.MaxSinkFailures < 0 {
		return fmt.Errorf("max_sink_failures must not be negative, got %d", cfg.MaxSinkFailures)
	}
	if cfg.BufferRetryInterval < 0 || cfg.BufferRetryLimit < 0 {
		return fmt.Errorf("the buffer retry settings must not be negative: %v, %d", cfg.BufferRetryInterval, cfg.BufferRetryLimit)
	}
	if cfg.Codec == "" {
		return fmt.Errorf("codec is not set")
	}
	return nil
}

// normalized returns the config with out-of-range sizes clamped.
func (cfg Config) normalized() Config {
	cfg.QueueSize = types.Clamp(cfg.QueueSize, 1, maxQueueSize)
	return cfg
}

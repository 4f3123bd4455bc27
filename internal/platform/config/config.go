// Package config loads the engine's flat configuration record the way the
// rest of the stack does: a YAML file via viper, overlaid with environment
// variables via envconfig.
package config

import (
	"fmt"
	"runtime"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// LogLevel is the recognized log verbosity vocabulary from spec.md §6.
type LogLevel string

const (
	LogDebug    LogLevel = "DEBUG"
	LogInfo     LogLevel = "INFO"
	LogWarning  LogLevel = "WARNING"
	LogError    LogLevel = "ERROR"
	LogCritical LogLevel = "CRITICAL"
)

func (l LogLevel) valid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarning, LogError, LogCritical:
		return true
	}
	return false
}

// Config is the flat record of recognized options from spec.md §6.
// Defaults match the spec exactly; IOBoundCount defaults to host_cores-1
// when left unset (zero) by the loader.
type Config struct {
	InputQueueSize    int      `mapstructure:"input_queue_size" envconfig:"INPUT_QUEUE_SIZE"`
	OutputQueueSize   int      `mapstructure:"output_queue_size" envconfig:"OUTPUT_QUEUE_SIZE"`
	CPUBoundCount     int      `mapstructure:"cpu_bound_count" envconfig:"CPU_BOUND_COUNT"`
	IOBoundCount      int      `mapstructure:"io_bound_count" envconfig:"IO_BOUND_COUNT"`
	CPUBoundTaskLimit int      `mapstructure:"cpu_bound_task_limit" envconfig:"CPU_BOUND_TASK_LIMIT"`
	IOBoundTaskLimit  int      `mapstructure:"io_bound_task_limit" envconfig:"IO_BOUND_TASK_LIMIT"`
	LogLevel          LogLevel `mapstructure:"log_level" envconfig:"LOG_LEVEL"`
	QueuePollTimeout  float64  `mapstructure:"queue_poll_timeout" envconfig:"QUEUE_POLL_TIMEOUT"`

	// Ambient: where the Prometheus exporter listens. Not part of the
	// spec's recognized option list but carried the way every service in
	// this stack carries a metrics address.
	MetricsAddr string `mapstructure:"metrics_addr" envconfig:"METRICS_ADDR"`

	CPUThreshold float64 `mapstructure:"cpu_threshold" envconfig:"CPU_THRESHOLD"`
	MemThreshold float64 `mapstructure:"mem_threshold" envconfig:"MEM_THRESHOLD"`
}

// Default returns the configuration with every default applied and
// IOBoundCount resolved against the host's CPU count.
func Default() *Config {
	cfg := &Config{
		InputQueueSize:    1000,
		OutputQueueSize:   10000,
		CPUBoundCount:     1,
		CPUBoundTaskLimit: 1,
		IOBoundTaskLimit:  20,
		LogLevel:          LogInfo,
		QueuePollTimeout:  1.0,
		MetricsAddr:       ":9090",
		CPUThreshold:      100.0,
		MemThreshold:      100.0,
	}
	cfg.IOBoundCount = defaultIOBoundCount()
	return cfg
}

func defaultIOBoundCount() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// Load reads config.yaml (if present, searched the way the platform stack
// searches it) then overlays environment variables, matching every other
// service in this codebase.
func Load() (*Config, error) {
	cfg := Default()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	if cfg.IOBoundCount == 0 {
		cfg.IOBoundCount = defaultIOBoundCount()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces spec.md §6: every numeric option is >= 1, log level is
// one of the five recognized values.
func (c *Config) Validate() error {
	numeric := map[string]int{
		"input_queue_size":     c.InputQueueSize,
		"output_queue_size":    c.OutputQueueSize,
		"cpu_bound_count":      c.CPUBoundCount,
		"io_bound_count":       c.IOBoundCount,
		"cpu_bound_task_limit": c.CPUBoundTaskLimit,
		"io_bound_task_limit":  c.IOBoundTaskLimit,
	}
	for name, v := range numeric {
		if v < 1 {
			return fmt.Errorf("config: %s must be >= 1, got %d", name, v)
		}
	}
	if c.QueuePollTimeout < 1 {
		return fmt.Errorf("config: queue_poll_timeout must be >= 1, got %f", c.QueuePollTimeout)
	}
	if !c.LogLevel.valid() {
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	return nil
}

// Package config loads and validates the dlqwatch configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default policy values, applied when the config file omits a field.
const (
	DefaultCheckInterval  = 30 * time.Second
	DefaultCooldown       = time.Hour
	DefaultTimeout        = 30 * time.Minute
	DefaultBackendTimeout = 10 * time.Second
	DefaultMaxConcurrent  = 3
)

// Duration wraps time.Duration with YAML support for strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// AWSConfig selects the account, region, and queue discovery rules.
type AWSConfig struct {
	Profile  string `yaml:"profile,omitempty"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint,omitempty"` // custom endpoint, e.g. localstack

	// QueuePatterns are lowercase substrings identifying dead-letter
	// queues during discovery.
	QueuePatterns []string `yaml:"queue_patterns,omitempty"`

	// PeekOldest enables a zero-visibility receive per poll to read the
	// oldest message's age. Off by default: it counts against SQS
	// request quotas.
	PeekOldest bool `yaml:"peek_oldest,omitempty"`

	// CallTimeout bounds every individual backend call. Independent of
	// the per-session investigation timeout.
	CallTimeout Duration `yaml:"call_timeout,omitempty"`
}

// MonitorConfig is the orchestration policy.
type MonitorConfig struct {
	CheckInterval Duration `yaml:"check_interval,omitempty"`
	Cooldown      Duration `yaml:"cooldown,omitempty"`
	Timeout       Duration `yaml:"timeout,omitempty"`
	MaxConcurrent int      `yaml:"max_concurrent,omitempty"`

	// TargetQueues is the allow-list of queues eligible for automatic
	// investigation. Other discovered queues are monitored only.
	TargetQueues []string `yaml:"target_queues,omitempty"`
}

// WorkerConfig describes how investigation workers are launched.
type WorkerConfig struct {
	// Command is the investigation CLI invoked inside the tmux session.
	Command string `yaml:"command,omitempty"`

	// WorkDir is where per-session context and result files live.
	// Defaults to ~/.dlqwatch/investigations.
	WorkDir string `yaml:"work_dir,omitempty"`

	// Instructions is prepended to every investigation prompt.
	Instructions string `yaml:"instructions,omitempty"`
}

// NotifyConfig toggles notification listeners.
type NotifyConfig struct {
	Desktop bool `yaml:"desktop"`
}

// Config is the full dlqwatch configuration.
type Config struct {
	AWS     AWSConfig     `yaml:"aws"`
	Monitor MonitorConfig `yaml:"monitor"`
	Worker  WorkerConfig  `yaml:"worker"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.AWS.Region == "" {
		c.AWS.Region = "us-east-1"
	}
	if len(c.AWS.QueuePatterns) == 0 {
		c.AWS.QueuePatterns = []string{"-dlq", "-dead-letter", "-deadletter", "_dlq", "-dl"}
	}
	if c.AWS.CallTimeout == 0 {
		c.AWS.CallTimeout = Duration(DefaultBackendTimeout)
	}
	if c.Monitor.CheckInterval == 0 {
		c.Monitor.CheckInterval = Duration(DefaultCheckInterval)
	}
	if c.Monitor.Cooldown == 0 {
		c.Monitor.Cooldown = Duration(DefaultCooldown)
	}
	if c.Monitor.Timeout == 0 {
		c.Monitor.Timeout = Duration(DefaultTimeout)
	}
	if c.Monitor.MaxConcurrent == 0 {
		c.Monitor.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Worker.Command == "" {
		c.Worker.Command = "claude"
	}
}

// Validate rejects policies the engine cannot run with. A validation
// failure is fatal at startup; nothing else is.
func (c *Config) Validate() error {
	if c.AWS.Region == "" {
		return fmt.Errorf("aws.region is required")
	}
	if c.Monitor.CheckInterval.Std() <= 0 {
		return fmt.Errorf("monitor.check_interval must be positive, got %s", c.Monitor.CheckInterval.Std())
	}
	if c.Monitor.Timeout.Std() <= 0 {
		return fmt.Errorf("monitor.timeout must be positive, got %s", c.Monitor.Timeout.Std())
	}
	if c.Monitor.Cooldown.Std() < 0 {
		return fmt.Errorf("monitor.cooldown must not be negative, got %s", c.Monitor.Cooldown.Std())
	}
	if c.Monitor.MaxConcurrent <= 0 {
		return fmt.Errorf("monitor.max_concurrent must be positive, got %d", c.Monitor.MaxConcurrent)
	}
	if c.AWS.CallTimeout.Std() <= 0 {
		return fmt.Errorf("aws.call_timeout must be positive, got %s", c.AWS.CallTimeout.Std())
	}
	return nil
}

// DefaultPath returns ~/.dlqwatch/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".dlqwatch", "config.yaml"), nil
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads the default config file, falling back to defaults
// when it does not exist. A present-but-broken file is still an error.
func LoadOrDefault() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes the config as YAML, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

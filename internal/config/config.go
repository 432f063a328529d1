// Package config loads and validates the YAML configuration file and turns
// it into the core's typed configuration values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"streamgen/internal/models"
	"streamgen/pkg/sink"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5s".
type Duration time.Duration

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

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// KafkaConfig is the broker-level Kafka configuration shared by producers
// with a kafka output.
type KafkaConfig struct {
	BootstrapServers []string `yaml:"bootstrap_servers"`
	SecurityProtocol string   `yaml:"security_protocol"`
	SASLUsername     string   `yaml:"sasl_username"`
	SASLPassword     string   `yaml:"sasl_password"`
	DefaultTopic     string   `yaml:"default_topic"`
}

// FileOutputConfig configures the rolling file sink.
type FileOutputConfig struct {
	Directory string       `yaml:"directory"`
	Rolling   sink.Rolling `yaml:"rolling"`
}

// ErrorLogConfig configures the quarantine log.
type ErrorLogConfig struct {
	Directory     string       `yaml:"directory"`
	Rolling       sink.Rolling `yaml:"rolling"`
	MaxAgeDays    int          `yaml:"max_age_days"`
	SweepInterval Duration     `yaml:"sweep_interval"`
}

// APIConfig configures the monitoring/control HTTP server.
type APIConfig struct {
	Host      string  `yaml:"host"`
	Port      int     `yaml:"port"`
	Token     string  `yaml:"token"`
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// LogConfig configures the operational log. When File is set, output goes
// through a size-rotated file in addition to stderr.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// DictionaryConfig points at a CSV file and maps column names to zero-based
// column indexes.
type DictionaryConfig struct {
	File    string         `yaml:"file"`
	Columns map[string]int `yaml:"columns"`
}

// DispatchConfig tunes the output dispatcher.
type DispatchConfig struct {
	MaxInFlight   int      `yaml:"max_in_flight"`
	SlotTimeout   Duration `yaml:"slot_timeout"`
	RetryAttempts uint     `yaml:"retry_attempts"`
	RetryDelay    Duration `yaml:"retry_delay"`
	StopGrace     Duration `yaml:"stop_grace"`
}

// ProducerSection is the raw producer block of the config file.
type ProducerSection struct {
	Name       string             `yaml:"name"`
	Output     models.SinkType    `yaml:"output"`
	Rate       int                `yaml:"rate"`
	Interval   Duration           `yaml:"interval"`
	KafkaTopic string             `yaml:"kafka_topic"`
	FilePath   string             `yaml:"file_path"`
	Key        models.KeyConfig   `yaml:"key"`
	Fields     []models.FieldSpec `yaml:"fields"`
}

// AppConfig is the whole configuration file.
type AppConfig struct {
	Kafka        *KafkaConfig                `yaml:"kafka"`
	FileOutput   FileOutputConfig            `yaml:"file_output"`
	ErrorLog     ErrorLogConfig              `yaml:"error_log"`
	API          APIConfig                   `yaml:"api"`
	Log          LogConfig                   `yaml:"log"`
	Dispatch     DispatchConfig              `yaml:"dispatch"`
	Dictionaries map[string]DictionaryConfig `yaml:"dictionaries"`
	Producer     *ProducerSection            `yaml:"producer"`
}

// Load reads and parses the configuration file and applies defaults.
func Load(path string) (*AppConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(raw)
}

// Parse parses configuration bytes and applies defaults.
func Parse(raw []byte) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize applies defaults and validates. Parse calls it for loaded files;
// hand-built configs (the quick verb) call it directly.
func (c *AppConfig) Finalize() error {
	c.applyDefaults()
	return c.validate()
}

func (c *AppConfig) applyDefaults() {
	if c.FileOutput.Directory == "" {
		c.FileOutput.Directory = "./data"
	}
	if c.FileOutput.Rolling == "" {
		c.FileOutput.Rolling = sink.RollHourly
	}
	if c.ErrorLog.Directory == "" {
		c.ErrorLog.Directory = "./logs"
	}
	if c.ErrorLog.Rolling == "" {
		c.ErrorLog.Rolling = sink.RollDaily
	}
	if c.ErrorLog.MaxAgeDays <= 0 {
		c.ErrorLog.MaxAgeDays = 7
	}
	if c.ErrorLog.SweepInterval <= 0 {
		c.ErrorLog.SweepInterval = Duration(time.Hour)
	}
	if c.API.Host == "" {
		c.API.Host = "127.0.0.1"
	}
	if c.API.Port == 0 {
		c.API.Port = 8000
	}
	if c.API.RateLimit <= 0 {
		c.API.RateLimit = 20
	}
	if c.API.Burst <= 0 {
		c.API.Burst = 40
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Kafka != nil && c.Kafka.DefaultTopic == "" {
		c.Kafka.DefaultTopic = "telemetry"
	}
}

func (c *AppConfig) validate() error {
	if c.Producer == nil {
		return &models.ConfigError{Reason: "no producer section found"}
	}
	p := c.Producer
	if p.Name == "" {
		return &models.ConfigError{Reason: "producer name must not be empty"}
	}
	switch p.Output {
	case models.SinkConsole, models.SinkFile, models.SinkMemory:
	case models.SinkKafka:
		if c.Kafka == nil || len(c.Kafka.BootstrapServers) == 0 {
			return &models.ConfigError{Field: "kafka", Reason: "kafka output requires bootstrap_servers"}
		}
	default:
		return &models.ConfigError{Field: "output", Reason: fmt.Sprintf("unknown output type %q", p.Output)}
	}
	if p.Rate > 0 && p.Interval > 0 {
		return &models.ConfigError{Field: "cadence", Reason: "rate and interval are mutually exclusive"}
	}
	if p.Rate <= 0 && p.Interval <= 0 {
		return &models.ConfigError{Field: "cadence", Reason: "either rate or interval must be set"}
	}
	if len(p.Fields) == 0 {
		return &models.ConfigError{Reason: "producer requires at least one field"}
	}
	for name, dict := range c.Dictionaries {
		if dict.File == "" {
			return &models.ConfigError{Field: name, Reason: "dictionary requires a file"}
		}
		if len(dict.Columns) == 0 {
			return &models.ConfigError{Field: name, Reason: "dictionary requires a columns mapping"}
		}
	}
	return nil
}

// ProducerConfig converts the raw producer section into the core's typed
// configuration. Semantic invariants beyond this shape conversion (duplicate
// fields, dangling references) are enforced again by the schema and key
// compilers.
func (c *AppConfig) ProducerConfig() models.ProducerConfig {
	p := c.Producer
	out := models.ProducerConfig{
		Name: p.Name,
		Cadence: models.CadenceConfig{
			Rate:     p.Rate,
			Interval: p.Interval.Std(),
		},
		Sink: models.SinkConfig{
			Type:  p.Output,
			Topic: p.KafkaTopic,
			Path:  p.FilePath,
		},
		Key:    p.Key,
		Fields: p.Fields,
	}
	if out.Sink.Type == models.SinkKafka && out.Sink.Topic == "" && c.Kafka != nil {
		out.Sink.Topic = c.Kafka.DefaultTopic
	}
	if out.Sink.Type == models.SinkFile && out.Sink.Path == "" {
		out.Sink.Path = c.FileOutput.Directory
	}
	return out
}

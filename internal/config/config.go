// Package config loads the process configuration from defaults, an optional
// YAML file and DI_* environment variable overrides, in that precedence.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TR14WR/Testinfotecs/pkg/types"
)

// Config is the complete configuration for both processes. Each binary only
// reads its own section plus Logging.
type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Worker      WorkerConfig      `yaml:"worker"`
	HTTP        HTTPConfig        `yaml:"http"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CoordinatorConfig holds coordinator settings.
type CoordinatorConfig struct {
	// ListenAddr is the TCP address workers connect to.
	ListenAddr string `yaml:"listen_addr" env:"DI_COORDINATOR_LISTEN_ADDR"`

	// AssignMode selects the task apportioning strategy (ceil or
	// largest_remainder).
	AssignMode string `yaml:"assign_mode" env:"DI_COORDINATOR_ASSIGN_MODE"`

	// ResultTimeout bounds how long an integration request waits for all
	// results. Zero means wait without a deadline.
	ResultTimeout time.Duration `yaml:"result_timeout" env:"DI_COORDINATOR_RESULT_TIMEOUT"`

	// MaxFrameSize bounds accepted wire frames in bytes. Zero selects the
	// protocol default.
	MaxFrameSize uint32 `yaml:"max_frame_size" env:"DI_COORDINATOR_MAX_FRAME_SIZE"`
}

// WorkerConfig holds worker settings.
type WorkerConfig struct {
	// CoordinatorAddr is the coordinator's TCP address.
	CoordinatorAddr string `yaml:"coordinator_addr" env:"DI_WORKER_COORDINATOR_ADDR"`

	// Lanes is the number of local execution lanes. Zero means detect from
	// the machine's CPU count.
	Lanes int `yaml:"lanes" env:"DI_WORKER_LANES"`

	// DialTimeout bounds the initial connection attempt.
	DialTimeout time.Duration `yaml:"dial_timeout" env:"DI_WORKER_DIAL_TIMEOUT"`

	// MaxFrameSize bounds accepted wire frames in bytes. Zero selects the
	// protocol default.
	MaxFrameSize uint32 `yaml:"max_frame_size" env:"DI_WORKER_MAX_FRAME_SIZE"`
}

// HTTPConfig holds the coordinator's HTTP control surface settings.
type HTTPConfig struct {
	Enabled      bool          `yaml:"enabled" env:"DI_HTTP_ENABLED"`
	Address      string        `yaml:"address" env:"DI_HTTP_ADDRESS"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"DI_HTTP_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"DI_HTTP_WRITE_TIMEOUT"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level" env:"DI_LOG_LEVEL"`
	Format   string `yaml:"format" env:"DI_LOG_FORMAT"`
	Output   string `yaml:"output" env:"DI_LOG_OUTPUT"`
	FilePath string `yaml:"file_path" env:"DI_LOG_FILE_PATH"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Coordinator: CoordinatorConfig{
			ListenAddr:    ":12345",
			AssignMode:    string(types.AssignModeCeil),
			ResultTimeout: 0,
			MaxFrameSize:  0,
		},
		Worker: WorkerConfig{
			CoordinatorAddr: "127.0.0.1:12345",
			Lanes:           0,
			DialTimeout:     10 * time.Second,
			MaxFrameSize:    0,
		},
		HTTP: HTTPConfig{
			Enabled:      false,
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
	}
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	if c.Coordinator.ListenAddr == "" {
		return fmt.Errorf("coordinator.listen_addr cannot be empty")
	}
	if !types.AssignMode(c.Coordinator.AssignMode).Valid() {
		return fmt.Errorf("coordinator.assign_mode must be %q or %q, got %q",
			types.AssignModeCeil, types.AssignModeLargestRemainder, c.Coordinator.AssignMode)
	}
	if c.Coordinator.ResultTimeout < 0 {
		return fmt.Errorf("coordinator.result_timeout cannot be negative")
	}
	if c.Worker.CoordinatorAddr == "" {
		return fmt.Errorf("worker.coordinator_addr cannot be empty")
	}
	if c.Worker.Lanes < 0 {
		return fmt.Errorf("worker.lanes cannot be negative")
	}
	if c.HTTP.Enabled && c.HTTP.Address == "" {
		return fmt.Errorf("http.address cannot be empty when http.enabled is set")
	}
	return nil
}

// Loader assembles configuration from its sources.
type Loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// WithConfigPath sets the path to the YAML configuration file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// Load loads configuration with precedence defaults < YAML file < env vars,
// then validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := applyEnvToStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// applyEnvToStruct recursively applies env-tagged overrides to struct fields.
func applyEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct && fieldType.Type != reflect.TypeOf(time.Duration(0)) {
			if err := applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("set field %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

// setFieldValue parses value into the field's type.
func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		// time.Duration fields accept duration syntax ("30s").
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint32, reflect.Uint64, reflect.Uint:
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field kind: %s", field.Kind())
	}
	return nil
}

// Package config loads the volshift service configuration: a YAML file
// with defaults, overlaid by VOLSHIFT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/cloud"
	"github.com/xraph/volshift/limit"
	"github.com/xraph/volshift/workflow"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "VOLSHIFT_"

// Store backends.
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
	BackendDynamoDB = "dynamodb"
)

// Config holds the top-level service configuration.
type Config struct {
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	HTTP         HTTPConfig         `yaml:"http" envPrefix:"HTTP_"`
	Store        StoreConfig        `yaml:"store" envPrefix:"STORE_"`
	AWS          cloud.Settings     `yaml:"aws" envPrefix:"AWS_"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" envPrefix:"SFN_"`
	Runtime      RuntimeConfig      `yaml:"runtime"`
	Attach       AttachConfig       `yaml:"attach" envPrefix:"ATTACH_"`
	Worker       WorkerConfig       `yaml:"worker" envPrefix:"WORKER_"`
	Commands     CommandConfig      `yaml:"commands" envPrefix:"COMMANDS_"`
	Devices      DeviceConfig       `yaml:"devices" envPrefix:"DEVICE_"`
	DLQ          DLQConfig          `yaml:"dlq" envPrefix:"DLQ_"`

	// Limits are per-stage rate and concurrency gates. YAML only.
	Limits []limit.Config `yaml:"limits"`
}

// HTTPConfig holds the intake server settings. An empty Addr disables the
// server.
type HTTPConfig struct {
	Addr   string `yaml:"addr" env:"ADDR"`
	APIKey string `yaml:"api_key" env:"API_KEY"`
}

// StoreConfig selects and addresses the correlation backend.
type StoreConfig struct {
	Backend string `yaml:"backend" env:"BACKEND"`
	// Path is the database file for bolt and sqlite.
	Path string `yaml:"path" env:"PATH"`
	// DSN is the connection string for postgres, redis and mongo.
	DSN string `yaml:"dsn" env:"DSN"`
	// Database is the mongo database name.
	Database string `yaml:"database" env:"DATABASE"`
	// RecordTable and DLQTable name the dynamodb tables.
	RecordTable string `yaml:"record_table" env:"RECORD_TABLE"`
	DLQTable    string `yaml:"dlq_table" env:"DLQ_TABLE"`
	// RecordTTL expires redis records. Zero keeps them until taken.
	RecordTTL time.Duration `yaml:"record_ttl" env:"RECORD_TTL"`
}

// OrchestratorConfig names the state machine and the activity serving
// each stage.
type OrchestratorConfig struct {
	StateMachineARN string `yaml:"state_machine_arn" env:"STATE_MACHINE_ARN"`
	// Activities maps stage name to activity ARN. From the environment use
	// "resize:arn1,create-instance:arn2".
	Activities map[string]string `yaml:"activities" env:"ACTIVITIES"`
}

// RuntimeConfig mirrors the runtime knobs of volshift.Config.
type RuntimeConfig struct {
	Concurrency       int           `yaml:"concurrency" env:"CONCURRENCY"`
	PollInterval      time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"HEARTBEAT_INTERVAL"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	StageTimeout      time.Duration `yaml:"stage_timeout" env:"STAGE_TIMEOUT"`
	FailStalledTasks  bool          `yaml:"fail_stalled_tasks" env:"FAIL_STALLED_TASKS"`
	AlarmPrefix       string        `yaml:"alarm_prefix" env:"ALARM_PREFIX"`
}

// AttachConfig bounds the attach loop.
type AttachConfig struct {
	MaxAttempts int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	Delay       time.Duration `yaml:"delay" env:"DELAY"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// WorkerConfig describes the helper instance.
type WorkerConfig struct {
	InstanceType    string `yaml:"instance_type" env:"INSTANCE_TYPE"`
	ImageID         string `yaml:"image_id" env:"IMAGE_ID"`
	KeyName         string `yaml:"key_name" env:"KEY_NAME"`
	InstanceProfile string `yaml:"instance_profile" env:"INSTANCE_PROFILE"`
	NamePrefix      string `yaml:"name_prefix" env:"NAME_PREFIX"`
}

// CommandConfig names the remote command documents.
type CommandConfig struct {
	ResizeDocument   string        `yaml:"resize_document" env:"RESIZE_DOCUMENT"`
	CopyDocument     string        `yaml:"copy_document" env:"COPY_DOCUMENT"`
	CopyTimeout      time.Duration `yaml:"copy_timeout" env:"COPY_TIMEOUT"`
	CloudWatchOutput bool          `yaml:"cloudwatch_output" env:"CLOUDWATCH_OUTPUT"`
}

// DeviceConfig holds the device slots.
type DeviceConfig struct {
	TargetOnWorker      string `yaml:"target_on_worker" env:"TARGET_ON_WORKER"`
	ReplacementOnWorker string `yaml:"replacement_on_worker" env:"REPLACEMENT_ON_WORKER"`
	Root                string `yaml:"root" env:"ROOT"`
}

// DLQConfig controls the scheduled purge. A zero Retention keeps entries
// forever.
type DLQConfig struct {
	Retention     time.Duration `yaml:"retention" env:"RETENTION"`
	PurgeSchedule string        `yaml:"purge_schedule" env:"PURGE_SCHEDULE"`
}

// Default returns a Config populated with the runtime defaults.
func Default() *Config {
	d := volshift.DefaultConfig()
	return &Config{
		LogLevel: "info",
		HTTP:     HTTPConfig{Addr: ":8080"},
		Store:    StoreConfig{Backend: BackendMemory},
		Runtime: RuntimeConfig{
			Concurrency:       d.Concurrency,
			PollInterval:      d.PollInterval,
			HeartbeatInterval: d.HeartbeatInterval,
			ShutdownTimeout:   d.ShutdownTimeout,
			StageTimeout:      d.StageTimeout,
			FailStalledTasks:  d.FailStalledTasks,
			AlarmPrefix:       d.AlarmPrefix,
		},
		Attach:   AttachConfig(d.Attach),
		Worker:   WorkerConfig(d.Worker),
		Commands: CommandConfig(d.Commands),
		Devices:  DeviceConfig(d.Devices),
		DLQ: DLQConfig{
			Retention:     14 * 24 * time.Hour,
			PurgeSchedule: "@hourly",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads "volshift.yaml" from the current directory, falling
// back to defaults and the environment when it does not exist.
func LoadDefault() (*Config, error) {
	cfg, err := Load("volshift.yaml")
	if errors.Is(err, os.ErrNotExist) {
		return Load("")
	}
	return cfg, err
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendMemory, BackendDynamoDB:
	case BackendBolt, BackendSQLite:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for %s", c.Store.Backend))
		}
	case BackendPostgres, BackendRedis, BackendMongo:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for %s", c.Store.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Store.Backend == BackendMongo && c.Store.Database == "" {
		errs = append(errs, errors.New("store.database is required for mongo"))
	}

	if _, err := c.Activities(); err != nil {
		errs = append(errs, err)
	}
	for _, l := range c.Limits {
		if !l.Stage.Valid() {
			errs = append(errs, fmt.Errorf("limits: %w: %q", volshift.ErrUnknownStage, l.Stage))
		}
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.Runtime.Concurrency < 1 {
		errs = append(errs, errors.New("runtime.concurrency must be at least 1"))
	}
	if c.Attach.MaxAttempts < 1 {
		errs = append(errs, errors.New("attach.max_attempts must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Activities returns the stage to activity ARN map.
func (c *Config) Activities() (map[workflow.Stage]string, error) {
	out := make(map[workflow.Stage]string, len(c.Orchestrator.Activities))
	for name, arn := range c.Orchestrator.Activities {
		s, err := workflow.ParseStage(name)
		if err != nil {
			return nil, fmt.Errorf("orchestrator.activities: %w", err)
		}
		out[s] = arn
	}
	return out, nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return l, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// Volshift converts the file form into the runtime configuration.
func (c *Config) Volshift() volshift.Config {
	return volshift.Config{
		Concurrency:       c.Runtime.Concurrency,
		PollInterval:      c.Runtime.PollInterval,
		HeartbeatInterval: c.Runtime.HeartbeatInterval,
		ShutdownTimeout:   c.Runtime.ShutdownTimeout,
		StageTimeout:      c.Runtime.StageTimeout,
		FailStalledTasks:  c.Runtime.FailStalledTasks,
		AlarmPrefix:       c.Runtime.AlarmPrefix,
		Attach:            volshift.AttachConfig(c.Attach),
		Worker:            volshift.WorkerConfig(c.Worker),
		Commands:          volshift.CommandConfig(c.Commands),
		Devices:           volshift.DeviceConfig(c.Devices),
	}
}

// Package config provides configuration management for actor systems
package config

import (
	"time"

	"github.com/najoast/actorcore/uuid"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// String returns the string representation of Environment
func (e Environment) String() string {
	return string(e)
}

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvTesting, EnvStaging, EnvProduction:
		return true
	default:
		return false
	}
}

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	return string(l)
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// Log formats
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config represents the complete configuration of one node
type Config struct {
	// Application configuration
	App AppConfig `yaml:"app" json:"app"`

	// Logging configuration
	Log LogConfig `yaml:"log" json:"log"`

	// Node identity
	Node NodeConfig `yaml:"node" json:"node"`

	// Actor system configuration
	Actor ActorConfig `yaml:"actor" json:"actor"`

	// Custom configurations (for user-defined actors)
	Custom map[string]interface{} `yaml:"custom,omitempty" json:"custom,omitempty"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	// Application name
	Name string `yaml:"name" json:"name"`

	// Application version
	Version string `yaml:"version" json:"version"`

	// Deployment environment
	Environment Environment `yaml:"environment" json:"environment"`

	// Debug mode
	Debug bool `yaml:"debug" json:"debug"`

	// Application description
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	// Log level
	Level LogLevel `yaml:"level" json:"level"`

	// Log format (json, text)
	Format string `yaml:"format" json:"format"`

	// Output destination (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`

	// Include source file and line
	AddSource bool `yaml:"add_source" json:"add_source"`

	// Fields to include in every record
	Fields map[string]string `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// NodeConfig pins the node identity. Zero values are filled from the
// process defaults, see NodeConfig.ID.
type NodeConfig struct {
	// Host UUID; the nil UUID selects a time-based one
	Host uuid.UUID `yaml:"host" json:"host"`

	// Process ID; 0 selects the OS process ID
	Process uint32 `yaml:"process" json:"process"`
}

// ActorConfig contains actor system configuration
type ActorConfig struct {
	// Maximum number of live actors, 0 for no limit
	MaxActors int `yaml:"max_actors" json:"max_actors"`

	// Default actor mailbox size
	DefaultMailboxSize int `yaml:"default_mailbox_size" json:"default_mailbox_size"`

	// Timeout for handling a single message
	ProcessTimeout time.Duration `yaml:"process_timeout" json:"process_timeout"`

	// Time allowed for a graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "actorcore-app",
			Version:     "1.0.0",
			Environment: EnvDevelopment,
			Debug:       true,
			Description: "actorcore node",
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
			Output: "stdout",
		},
		Actor: ActorConfig{
			MaxActors:          10000,
			DefaultMailboxSize: 1000,
			ProcessTimeout:     30 * time.Second,
			ShutdownTimeout:    10 * time.Second,
		},
		Custom: make(map[string]interface{}),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate app config
	if c.App.Name == "" {
		return ErrInvalidAppName
	}
	if !c.App.Environment.IsValid() {
		return ErrInvalidEnvironment
	}

	// Validate log config
	if !c.Log.Level.IsValid() {
		return ErrInvalidLogLevel
	}
	switch c.Log.Format {
	case "", LogFormatText, LogFormatJSON:
	default:
		return ErrInvalidLogFormat
	}

	// Validate node config
	if !c.Node.Host.Valid() {
		return ErrInvalidNodeHost
	}

	// Validate actor config
	if c.Actor.MaxActors < 0 {
		return ErrInvalidMaxActors
	}
	if c.Actor.DefaultMailboxSize <= 0 {
		return ErrInvalidMailboxSize
	}
	if c.Actor.ProcessTimeout < 0 || c.Actor.ShutdownTimeout < 0 {
		return ErrInvalidTimeout
	}

	return nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// IsDebugEnabled returns true if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == EnvDevelopment
}

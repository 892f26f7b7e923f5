package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/najoast/actorcore/uuid"
)

// ConfigFormat represents the configuration file format
type ConfigFormat string

const (
	FormatYAML ConfigFormat = "yaml"
	FormatJSON ConfigFormat = "json"
)

// DefaultEnvPrefix prefixes all environment overrides, e.g.
// ACTORCORE_LOG_LEVEL.
const DefaultEnvPrefix = "ACTORCORE"

// Loader handles configuration loading from various sources
type Loader struct {
	// Configuration search paths
	searchPaths []string

	// Environment variable prefix
	envPrefix string

	// Default configuration
	defaultConfig *Config
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		searchPaths: []string{
			".",
			"./config",
			"./configs",
			"/etc/actorcore",
			os.Getenv("HOME") + "/.actorcore",
		},
		envPrefix:     DefaultEnvPrefix,
		defaultConfig: DefaultConfig(),
	}
}

// SetSearchPaths sets the configuration file search paths
func (l *Loader) SetSearchPaths(paths []string) *Loader {
	l.searchPaths = paths
	return l
}

// SetEnvPrefix sets the environment variable prefix
func (l *Loader) SetEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// SetDefaultConfig sets the default configuration
func (l *Loader) SetDefaultConfig(config *Config) *Loader {
	l.defaultConfig = config
	return l
}

func (l *Loader) defaults() *Config {
	if l.defaultConfig == nil {
		return DefaultConfig()
	}
	// Shallow copy so that loading never mutates the defaults
	c := *l.defaultConfig
	return &c
}

// Load loads configuration from the specified file. An empty filename
// yields the defaults with environment overrides applied.
func (l *Loader) Load(filename string) (*Config, error) {
	if filename == "" {
		return l.finish(l.defaults())
	}
	return l.LoadFromFile(filename)
}

// LoadFromFile loads configuration from a specific file
func (l *Loader) LoadFromFile(filename string) (*Config, error) {
	format, err := formatOf(filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrConfigFileNotFound, "%s", filename)
		}
		return nil, errors.Wrapf(err, "read config file %s", filename)
	}

	config, err := l.parseConfig(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "config file %s", filename)
	}
	return l.finish(l.mergeConfig(l.defaults(), config))
}

// LoadFromReader loads configuration from an io.Reader. The result is
// merged with the defaults but not validated.
func (l *Loader) LoadFromReader(reader io.Reader, format ConfigFormat) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "read configuration data")
	}

	config, err := l.parseConfig(data, format)
	if err != nil {
		return nil, err
	}
	return l.mergeConfig(l.defaults(), config), nil
}

// AutoLoad automatically discovers and loads configuration. Without a
// configuration file the defaults are used.
func (l *Loader) AutoLoad() (*Config, error) {
	configFile, err := l.FindConfigFile()
	if errors.Is(err, ErrConfigFileNotFound) {
		return l.finish(l.defaults())
	}
	if err != nil {
		return nil, err
	}
	return l.LoadFromFile(configFile)
}

// finish applies environment overrides and validates the result
func (l *Loader) finish(config *Config) (*Config, error) {
	if err := l.loadFromEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrapf(ErrConfigValidateError, "%v", err)
	}
	return config, nil
}

// FindConfigFile searches for configuration files in search paths
func (l *Loader) FindConfigFile() (string, error) {
	filenames := []string{
		"actorcore.yaml", "actorcore.yml",
		"config.yaml", "config.yml",
		"actorcore.json", "config.json",
	}

	for _, searchPath := range l.searchPaths {
		for _, filename := range filenames {
			fullPath := filepath.Join(searchPath, filename)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
	}

	return "", ErrConfigFileNotFound
}

func formatOf(filename string) (ConfigFormat, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", errors.Errorf("unsupported config file format: %q", ext)
	}
}

// parseConfig parses configuration data based on format
func (l *Loader) parseConfig(data []byte, format ConfigFormat) (*Config, error) {
	config := &Config{}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, errors.Wrapf(ErrConfigParseError, "yaml: %v", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, errors.Wrapf(ErrConfigParseError, "json: %v", err)
		}
	default:
		return nil, errors.Errorf("unsupported config format: %s", format)
	}

	return config, nil
}

// loadFromEnv loads configuration overrides from environment variables
func (l *Loader) loadFromEnv(config *Config) error {
	env := func(key string) string {
		return os.Getenv(l.envPrefix + "_" + key)
	}
	envErr := func(key string, err error) error {
		return errors.Wrapf(ErrEnvironmentVarError, "%s_%s: %v", l.envPrefix, key, err)
	}

	// App configuration
	if val := env("APP_NAME"); val != "" {
		config.App.Name = val
	}
	if val := env("APP_VERSION"); val != "" {
		config.App.Version = val
	}
	if val := env("APP_ENVIRONMENT"); val != "" {
		config.App.Environment = Environment(val)
	}
	if val := env("APP_DEBUG"); val != "" {
		config.App.Debug = strings.ToLower(val) == "true"
	}

	// Log configuration
	if val := env("LOG_LEVEL"); val != "" {
		config.Log.Level = LogLevel(strings.ToLower(val))
	}
	if val := env("LOG_FORMAT"); val != "" {
		config.Log.Format = val
	}
	if val := env("LOG_OUTPUT"); val != "" {
		config.Log.Output = val
	}

	// Node configuration
	if val := env("NODE_HOST"); val != "" {
		host, err := uuid.Parse(val)
		if err != nil {
			return envErr("NODE_HOST", err)
		}
		config.Node.Host = host
	}
	if val := env("NODE_PROCESS"); val != "" {
		pid, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return envErr("NODE_PROCESS", err)
		}
		config.Node.Process = uint32(pid)
	}

	// Actor configuration
	if val := env("ACTOR_MAX_ACTORS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return envErr("ACTOR_MAX_ACTORS", err)
		}
		config.Actor.MaxActors = n
	}
	if val := env("ACTOR_MAILBOX_SIZE"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return envErr("ACTOR_MAILBOX_SIZE", err)
		}
		config.Actor.DefaultMailboxSize = n
	}
	if val := env("ACTOR_PROCESS_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return envErr("ACTOR_PROCESS_TIMEOUT", err)
		}
		config.Actor.ProcessTimeout = d
	}

	return nil
}

// mergeConfig merges user config with default config
func (l *Loader) mergeConfig(defaultConfig, userConfig *Config) *Config {
	// Start with default config
	merged := *defaultConfig

	// Override with user config values where specified
	if userConfig.App.Name != "" {
		merged.App.Name = userConfig.App.Name
	}
	if userConfig.App.Version != "" {
		merged.App.Version = userConfig.App.Version
	}
	if userConfig.App.Environment != "" {
		merged.App.Environment = userConfig.App.Environment
	}
	if userConfig.App.Description != "" {
		merged.App.Description = userConfig.App.Description
	}
	merged.App.Debug = userConfig.App.Debug

	// Log config
	if userConfig.Log.Level != "" {
		merged.Log.Level = userConfig.Log.Level
	}
	if userConfig.Log.Format != "" {
		merged.Log.Format = userConfig.Log.Format
	}
	if userConfig.Log.Output != "" {
		merged.Log.Output = userConfig.Log.Output
	}
	merged.Log.AddSource = userConfig.Log.AddSource
	if userConfig.Log.Fields != nil {
		merged.Log.Fields = userConfig.Log.Fields
	}

	// Node config
	if !userConfig.Node.Host.IsNil() {
		merged.Node.Host = userConfig.Node.Host
	}
	if userConfig.Node.Process != 0 {
		merged.Node.Process = userConfig.Node.Process
	}

	// Actor config
	if userConfig.Actor.MaxActors != 0 {
		merged.Actor.MaxActors = userConfig.Actor.MaxActors
	}
	if userConfig.Actor.DefaultMailboxSize != 0 {
		merged.Actor.DefaultMailboxSize = userConfig.Actor.DefaultMailboxSize
	}
	if userConfig.Actor.ProcessTimeout != 0 {
		merged.Actor.ProcessTimeout = userConfig.Actor.ProcessTimeout
	}
	if userConfig.Actor.ShutdownTimeout != 0 {
		merged.Actor.ShutdownTimeout = userConfig.Actor.ShutdownTimeout
	}

	// Custom fields
	custom := make(map[string]interface{}, len(merged.Custom)+len(userConfig.Custom))
	for k, v := range merged.Custom {
		custom[k] = v
	}
	for k, v := range userConfig.Custom {
		custom[k] = v
	}
	merged.Custom = custom

	return &merged
}

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/udp2redis/internal/model"
	"github.com/tinytelemetry/udp2redis/internal/pipeline"
	"github.com/tinytelemetry/udp2redis/internal/publish"
	"github.com/tinytelemetry/udp2redis/internal/queue"
)

const (
	defaultAPIAddr = "127.0.0.1:3000"
	redactedValue  = "xxxxx"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	UDPHost       string `mapstructure:"udp-host" yaml:"udp-host"`
	UDPPort       int    `mapstructure:"udp-port" yaml:"udp-port"`
	RedisURL      string `mapstructure:"redis-url" yaml:"redis-url"`
	Auth          string `mapstructure:"auth" yaml:"auth,omitempty"`
	AuthSecret    string `mapstructure:"auth-secret" yaml:"auth-secret,omitempty"`
	Verbose       bool   `mapstructure:"verbose" yaml:"verbose"`
	KeyPolicy     string `mapstructure:"key-policy" yaml:"key-policy"`
	SharedKey     string `mapstructure:"shared-key" yaml:"shared-key"`
	InertialKey   string `mapstructure:"inertial-key" yaml:"inertial-key"`
	RangingKey    string `mapstructure:"ranging-key" yaml:"ranging-key"`
	PersistLatest bool   `mapstructure:"persist-latest" yaml:"persist-latest"`
	QueueSize     int    `mapstructure:"queue-size" yaml:"queue-size"`
	APIEnabled    bool   `mapstructure:"api-enabled" yaml:"api-enabled"`
	APIAddr       string `mapstructure:"api-addr" yaml:"api-addr"`
	LogFile       string `mapstructure:"log-file" yaml:"log-file,omitempty"`
	ConfigPath    string `mapstructure:"-" yaml:"-"` // not from config file
}

// flagKeys maps viper keys to the flag names that override them.
var flagKeys = map[string]string{
	"udp-port":       "udp",
	"udp-host":       "udp-host",
	"redis-url":      "redis",
	"auth":           "auth",
	"auth-secret":    "auth-secret",
	"verbose":        "verbose",
	"key-policy":     "key-policy",
	"shared-key":     "shared-key",
	"inertial-key":   "inertial-key",
	"ranging-key":    "ranging-key",
	"persist-latest": "persist-latest",
	"queue-size":     "queue-size",
	"api-enabled":    "api-enabled",
	"api-addr":       "api-addr",
	"log-file":       "log-file",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("udp2redis", pflag.ContinueOnError)
	fs.String("config", "", "config file (default is $HOME/.config/udp2redis/config.yml)")
	fs.Bool("version", false, "print version information")
	fs.Bool("print-config", false, "print the effective configuration as YAML and exit")
	fs.BoolP("interactive", "i", false, "open the interactive connection form")

	fs.IntP("udp", "u", model.DefaultUDPPort, "UDP port to receive sensor datagrams on")
	fs.String("udp-host", model.DefaultUDPHost, "UDP bind address")
	fs.StringP("redis", "r", model.DefaultRedisURL, "Redis connection URL")
	fs.StringP("auth", "a", "", "Redis AUTH identity (password alone, or username with --auth-secret)")
	fs.String("auth-secret", "", "Redis AUTH secret, sent with --auth as the username")
	fs.BoolP("verbose", "v", false, "enable debug logging")
	fs.String("key-policy", string(publish.KeysPerKind), "destination key policy: per-kind or shared")
	fs.String("shared-key", publish.DefaultSharedKey, "key used by the shared policy")
	fs.String("inertial-key", publish.DefaultInertialKey, "key for inertial readings under per-kind")
	fs.String("ranging-key", publish.DefaultRangingKey, "key for ranging readings under per-kind")
	fs.Bool("persist-latest", true, "SET the latest value before each PUBLISH")
	fs.Int("queue-size", queue.DefaultSize, "capacity of the queue between the workers; a full queue stalls UDP reads")
	fs.Bool("api-enabled", true, "serve the HTTP control API")
	fs.String("api-addr", defaultAPIAddr, "HTTP control API listen address")
	fs.String("log-file", "", "also write JSON logs to this file")
	return fs
}

func loadConfig(fs *pflag.FlagSet) (appConfig, error) {
	var cfg appConfig

	v := viper.New()
	v.SetEnvPrefix("UDP2REDIS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("udp-host", model.DefaultUDPHost)
	v.SetDefault("udp-port", model.DefaultUDPPort)
	v.SetDefault("redis-url", model.DefaultRedisURL)
	v.SetDefault("auth", "")
	v.SetDefault("auth-secret", "")
	v.SetDefault("verbose", false)
	v.SetDefault("key-policy", string(publish.KeysPerKind))
	v.SetDefault("shared-key", publish.DefaultSharedKey)
	v.SetDefault("inertial-key", publish.DefaultInertialKey)
	v.SetDefault("ranging-key", publish.DefaultRangingKey)
	v.SetDefault("persist-latest", true)
	v.SetDefault("queue-size", queue.DefaultSize)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("log-file", "")

	for key, name := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return cfg, fmt.Errorf("binding flag %s: %w", name, err)
		}
	}

	configPath, _ := fs.GetString("config")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(filepath.Join(home, ".config", "udp2redis", "config.yml"))
	}

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
		fileLoaded = false
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if fileLoaded {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	if cfg.UDPPort < 0 || cfg.UDPPort > 65535 {
		return cfg, fmt.Errorf("invalid udp-port: %d", cfg.UDPPort)
	}
	if cfg.QueueSize <= 0 {
		return cfg, fmt.Errorf("invalid queue-size: %d", cfg.QueueSize)
	}
	if cfg.APIEnabled && cfg.APIAddr == "" {
		return cfg, errors.New("api-addr must be set when api-enabled is true")
	}
	if _, err := cfg.pipelineConfig(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// pipelineConfig converts the CLI view into the core's run configuration.
func (c appConfig) pipelineConfig() (pipeline.Config, error) {
	mode, err := publish.ParseKeyMode(c.KeyPolicy)
	if err != nil {
		return pipeline.Config{}, err
	}

	pc := pipeline.Config{
		UDPHost:      c.UDPHost,
		UDPPort:      c.UDPPort,
		RedisURL:     c.RedisURL,
		AuthIdentity: c.Auth,
		AuthSecret:   c.AuthSecret,
		Keys: publish.KeyPolicy{
			Mode:     mode,
			Shared:   c.SharedKey,
			Inertial: c.InertialKey,
			Ranging:  c.RangingKey,
		},
		PersistLatest: c.PersistLatest,
		QueueSize:     c.QueueSize,
		Verbose:       c.Verbose,
	}
	if err := pc.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return pc, nil
}

// redacted returns a copy safe to print.
func (c appConfig) redacted() appConfig {
	if c.Auth != "" {
		c.Auth = redactedValue
	}
	if c.AuthSecret != "" {
		c.AuthSecret = redactedValue
	}
	c.RedisURL = pipeline.Config{RedisURL: c.RedisURL}.RedactedRedisURL()
	return c
}

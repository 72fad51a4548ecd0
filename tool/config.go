package tool

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/moyoez/fleet-notify/types"
)

const (
	EnvToken = "FLEET_NOTIFY_TOKEN"
	EnvCSRF  = "FLEET_NOTIFY_CSRF"
)

var ConfigPath = "config.yaml" // be aware that it can be changed, default to ./config.yaml

// DefaultConfig returns the values the web client hard-coded: 10 notifications,
// 10 reconnect attempts every 5 seconds.
func DefaultConfig() types.AppConfig {
	return types.AppConfig{
		ServerURL:     "http://localhost:5000",
		WebSocketPath: "/ws",
		RESTBasePath:  "/api",
		Capacity:      10,
		Reconnect: types.ReconnectConfig{
			Interval:    5000,
			MaxInterval: 60000,
			Multiplier:  1,
			Jitter:      0,
			MaxAttempts: 10,
		},
		PendingTimeout:  30,
		ConfirmRate:     5,
		Port:            53318,
		AlertSocketPath: "/tmp/fleet-notify-alert.sock",
	}
}

// fillDefaults repairs zero values left by a partial config file.
func fillDefaults(cfg *types.AppConfig) {
	def := DefaultConfig()
	if cfg.ServerURL == "" {
		cfg.ServerURL = def.ServerURL
	}
	if cfg.WebSocketPath == "" {
		cfg.WebSocketPath = def.WebSocketPath
	}
	if cfg.RESTBasePath == "" {
		cfg.RESTBasePath = def.RESTBasePath
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.Reconnect.Interval <= 0 {
		cfg.Reconnect.Interval = def.Reconnect.Interval
	}
	if cfg.Reconnect.MaxInterval < cfg.Reconnect.Interval {
		cfg.Reconnect.MaxInterval = max(def.Reconnect.MaxInterval, cfg.Reconnect.Interval)
	}
	if cfg.Reconnect.Multiplier < 1 {
		cfg.Reconnect.Multiplier = 1
	}
	if cfg.Reconnect.Jitter < 0 || cfg.Reconnect.Jitter >= 1 {
		cfg.Reconnect.Jitter = 0
	}
	if cfg.Reconnect.MaxAttempts <= 0 {
		cfg.Reconnect.MaxAttempts = def.Reconnect.MaxAttempts
	}
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = def.PendingTimeout
	}
	if cfg.ConfirmRate < 0 {
		cfg.ConfirmRate = 0
	}
	if cfg.Port <= 0 {
		cfg.Port = def.Port
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
}

func LoadConfig(path string) (types.AppConfig, error) {
	if path == "" {
		path = ConfigPath
	}
	ConfigPath = path

	cfg := DefaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := writeDefaultConfig(path, cfg); writeErr != nil {
				return cfg, fmt.Errorf("config file not found, and failed to generate default config: %w", writeErr)
			}
			DefaultLogger.Infof("Created new config file at %s", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config file path is a directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	fillDefaults(&cfg)
	return cfg, nil
}

// LoadSecrets fills token and CSRF token from the environment, reading the .env
// file first when present. Environment values win over the config file.
func LoadSecrets(cfg *types.AppConfig, envPath string) {
	var err error
	if envPath != "" {
		err = godotenv.Load(envPath)
	} else {
		err = godotenv.Load()
	}
	if err != nil && !os.IsNotExist(err) {
		DefaultLogger.Warnf("Failed to load .env: %v", err)
	}
	if v, ok := os.LookupEnv(EnvToken); ok && v != "" {
		cfg.Token = v
	}
	if v, ok := os.LookupEnv(EnvCSRF); ok && v != "" {
		cfg.CSRFToken = v
	}
}

func writeDefaultConfig(path string, cfg types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

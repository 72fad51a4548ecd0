package tool

import (
	"flag"

	"github.com/moyoez/fleet-notify/types"
)

// SetFlags parses CLI flags and returns the override config.
func SetFlags() types.Config {
	var cfg types.Config
	flag.StringVar(&cfg.Log, "log", "", "log mode: dev|prod|none")
	flag.StringVar(&cfg.UseConfigPath, "useConfigPath", "", "override config file path")
	flag.StringVar(&cfg.UseEnvPath, "useEnvPath", "", "load secrets from this .env file instead of ./.env")
	flag.StringVar(&cfg.UseServerURL, "useServerURL", "", "override fleet server URL, e.g. https://fleet.example.org")
	flag.IntVar(&cfg.UsePort, "usePort", 0, "override local gateway port")
	flag.StringVar(&cfg.UseAlertSocket, "useAlertSocket", "", "override desktop helper unix socket path")
	flag.BoolVar(&cfg.SkipAlert, "skipAlert", false, "if true, do not forward pushed notifications to the desktop helper")
	flag.BoolVar(&cfg.UseInsecureTLS, "useInsecureTLS", false, "skip TLS verification (self-signed fleet servers)")
	flag.BoolVar(&cfg.UseExponential, "useExponential", false, "reconnect with exponential backoff and jitter instead of a fixed interval")
	flag.IntVar(&cfg.UseMaxAttempts, "useMaxAttempts", 0, "override reconnect attempt cap")
	flag.IntVar(&cfg.UseCapacity, "useCapacity", 0, "override the number of notifications kept in memory")
	flag.Parse()
	return cfg
}

// ApplyFlags merges CLI overrides into the loaded config.
func ApplyFlags(appCfg *types.AppConfig, flags types.Config) {
	if flags.UseServerURL != "" {
		appCfg.ServerURL = flags.UseServerURL
	}
	if flags.UsePort > 0 {
		appCfg.Port = flags.UsePort
	}
	if flags.UseAlertSocket != "" {
		appCfg.AlertSocketPath = flags.UseAlertSocket
	}
	if flags.SkipAlert {
		appCfg.AlertSocketPath = ""
	}
	if flags.UseInsecureTLS {
		appCfg.InsecureTLS = true
	}
	if flags.UseExponential {
		if appCfg.Reconnect.Multiplier <= 1 {
			appCfg.Reconnect.Multiplier = 2
		}
		if appCfg.Reconnect.Jitter <= 0 {
			appCfg.Reconnect.Jitter = 0.2
		}
	}
	if flags.UseMaxAttempts > 0 {
		appCfg.Reconnect.MaxAttempts = flags.UseMaxAttempts
	}
	if flags.UseCapacity > 0 {
		appCfg.Capacity = flags.UseCapacity
	}
}

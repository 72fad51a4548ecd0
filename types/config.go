package types

// AppConfig represents the application configuration loaded from config file
type AppConfig struct {
	ServerURL       string          `yaml:"serverURL"`     // e.g. https://fleet.example.org
	WebSocketPath   string          `yaml:"webSocketPath"` // default /ws
	RESTBasePath    string          `yaml:"restBasePath"`  // default /api
	Capacity        int             `yaml:"capacity"`      // in-memory notification cap
	Reconnect       ReconnectConfig `yaml:"reconnect"`
	PendingTimeout  int             `yaml:"pendingTimeout"`  // seconds a read may stay read-pending
	ConfirmRate     int             `yaml:"confirmRate"`     // REST confirmations per second, 0 = unlimited
	Port            int             `yaml:"port"`            // local gateway port
	AlertSocketPath string          `yaml:"alertSocketPath"` // empty disables the desktop helper
	InsecureTLS     bool            `yaml:"insecureTLS"`
	Token           string          `yaml:"token,omitempty"` // prefer FLEET_NOTIFY_TOKEN in .env
	CSRFToken       string          `yaml:"csrfToken,omitempty"`
}

// ReconnectConfig parameterises the supervisor backoff.
// Multiplier 1 and Jitter 0 give the fixed interval the web client always used.
type ReconnectConfig struct {
	Interval    int     `yaml:"interval"`    // milliseconds
	MaxInterval int     `yaml:"maxInterval"` // milliseconds
	Multiplier  float64 `yaml:"multiplier"`
	Jitter      float64 `yaml:"jitter"`
	MaxAttempts int     `yaml:"maxAttempts"`
}

// Config holds runtime overrides from CLI flags
type Config struct {
	Log            string
	UseConfigPath  string
	UseEnvPath     string
	UseServerURL   string
	UsePort        int
	UseAlertSocket string
	SkipAlert      bool // if true, pushed notifications are not forwarded to the desktop helper
	UseInsecureTLS bool
	UseExponential bool // if true, reconnect with exponential backoff and jitter
	UseMaxAttempts int
	UseCapacity    int
}

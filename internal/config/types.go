package config

// Config is the full runtime configuration.
//
// Precedence: Defaults() < config file (JSON or YAML) < environment.
// All durations are Go duration strings (e.g. "500ms", "10s", "14m").
type Config struct {
	// Debug mirrors FLASK_ENV=development / DEBUG=1: verbose logging and no keepalive.
	Debug bool `json:"debug"`

	Telegram  TelegramConfig  `json:"telegram"`
	Site      SiteConfig      `json:"site"`
	Server    ServerConfig    `json:"server"`
	Keepalive KeepaliveConfig `json:"keepalive"`
	Logging   LoggingConfig   `json:"logging"`
}

type TelegramConfig struct {
	Token   string `json:"token"`   // do not log
	ChatID  string `json:"chat_id"` // lead destination
	APIURL  string `json:"api_url,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

type SiteConfig struct {
	// Name is SITE_NAME: the self URL pinged by keepalive and the source label
	// in lead messages.
	Name string `json:"name"`
	// PublicURL is the canonical site used by robots.txt and sitemap.xml.
	PublicURL string `json:"public_url,omitempty"`
	// StaticDir serves /static/ from disk instead of the embedded assets.
	StaticDir string `json:"static_dir,omitempty"`
}

type ServerConfig struct {
	Port            string `json:"port"`
	ReadTimeout     string `json:"read_timeout,omitempty"`
	WriteTimeout    string `json:"write_timeout,omitempty"`
	IdleTimeout     string `json:"idle_timeout,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`
}

// KeepaliveConfig controls the self-ping loop.
//
// Enabled is a pointer so an omitted value can default to "on unless debug".
type KeepaliveConfig struct {
	Enabled      *bool  `json:"enabled,omitempty"`
	InitialDelay string `json:"initial_delay,omitempty"`
	// Interval accepts a duration ("14m"), HH:MM ("00:14") or a cron
	// expression ("*/14 * * * *", "@every 14m").
	Interval string `json:"interval,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
	// Watchdog sends sd_notify READY/WATCHDOG when running under systemd.
	Watchdog bool `json:"watchdog,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards warnings and errors to an operator chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     string `json:"chat_id"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

const DefaultPublicURL = "https://gazel-perevozki.ru"

func Defaults() Config {
	return Config{
		Telegram: TelegramConfig{Timeout: "10s"},
		Site:     SiteConfig{PublicURL: DefaultPublicURL},
		Server: ServerConfig{
			Port:            "5000",
			ReadTimeout:     "15s",
			WriteTimeout:    "30s",
			IdleTimeout:     "60s",
			ShutdownTimeout: "5s",
		},
		Keepalive: KeepaliveConfig{
			InitialDelay: "60s",
			Interval:     "840s",
			Timeout:      "30s",
		},
		Logging: LoggingConfig{
			Level:    "INFO",
			Console:  true,
			Telegram: LoggingTelegram{MinLevel: "WARN", RatePerSec: 1},
		},
	}
}

// KeepaliveEnabled reports whether the self-ping loop should run.
func (c *Config) KeepaliveEnabled() bool {
	if c.Debug {
		return false
	}
	if c.Keepalive.Enabled != nil {
		return *c.Keepalive.Enabled
	}
	return true
}

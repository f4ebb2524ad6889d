package config

import (
	"os"
	"strings"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables onto cfg. Unset or blank
// variables leave the current value alone.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	set("TELEGRAM_BOT_TOKEN", &cfg.Telegram.Token)
	set("TELEGRAM_CHAT_ID", &cfg.Telegram.ChatID)
	set("SITE_NAME", &cfg.Site.Name)
	set("PUBLIC_URL", &cfg.Site.PublicURL)
	set("STATIC_DIR", &cfg.Site.StaticDir)
	set("PORT", &cfg.Server.Port)
	set("LOG_LEVEL", &cfg.Logging.Level)

	if v, ok := lookup("FLASK_ENV"); ok && strings.EqualFold(strings.TrimSpace(v), "development") {
		cfg.Debug = true
	}
	if v, ok := lookup("DEBUG"); ok && truthy(v) {
		cfg.Debug = true
	}
	if cfg.Debug {
		if _, ok := lookup("LOG_LEVEL"); !ok {
			cfg.Logging.Level = "DEBUG"
		}
	}
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

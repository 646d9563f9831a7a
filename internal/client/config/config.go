package config

import "time"

// Config holds runtime settings for the fleetcheck client.
//
// Units: SyncInterval, RequestTimeout and OnlineCheckInterval are
// time.Duration values.
type Config struct {
	ServerURL           string
	DBPath              string
	SyncInterval        time.Duration
	RequestTimeout      time.Duration
	OnlineCheckInterval time.Duration
	PageSize            int
	UploadWorkers       int
	ConflictStrategy    string
	NatsURL             string
	LogLevel            string
	LogFormat           string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DBPath = "data/fleetcheck.db"
	c.SyncInterval = 6 * time.Hour
	c.RequestTimeout = 15 * time.Second
	c.OnlineCheckInterval = 30 * time.Second
	c.PageSize = 100
	c.UploadWorkers = 1
	c.ConflictStrategy = "remote_wins"
	c.NatsURL = ""
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

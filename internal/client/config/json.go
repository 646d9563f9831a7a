package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/fleetcheck/internal/flagx"
	"github.com/dmitrijs2005/fleetcheck/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// use timex.Duration so they can be written as "6h" or as nanoseconds.
type JsonConfig struct {
	ServerURL           string         `json:"server_url"`
	DBPath              string         `json:"db_path"`
	SyncInterval        timex.Duration `json:"sync_interval"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	PageSize            int            `json:"page_size"`
	UploadWorkers       int            `json:"upload_workers"`
	ConflictStrategy    string         `json:"conflict_strategy"`
	NatsURL             string         `json:"nats_url"`
	LogLevel            string         `json:"log_level"`
	LogFormat           string         `json:"log_format"`
}

// parseJson overlays Config with the non-zero values of the JSON file named
// by -c or -config. Without such a flag nothing happens. Read and decode
// errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.DBPath, jc.DBPath)
	if jc.SyncInterval.Duration > 0 {
		cfg.SyncInterval = jc.SyncInterval.Duration
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.PageSize > 0 {
		cfg.PageSize = jc.PageSize
	}
	if jc.UploadWorkers > 0 {
		cfg.UploadWorkers = jc.UploadWorkers
	}
	setString(&cfg.ConflictStrategy, jc.ConflictStrategy)
	setString(&cfg.NatsURL, jc.NatsURL)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

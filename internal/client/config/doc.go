// Package config loads runtime configuration for the fleetcheck client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string     base URL of the server
//	-d string     local database path
//	-i duration   periodic sync interval
//	-t duration   HTTP request timeout
//	-o duration   server reachability check interval
//	-p int        download page size
//	-w int        parallel uploads per collection
//	-s string     conflict strategy
//	-n string     NATS URL for change notifications
//	-l string     log level
//	-f string     log format (text, json)
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "db_path": "data/fleetcheck.db",
//	  "sync_interval": "6h",
//	  "request_timeout": "15s",
//	  "online_check_interval": "30s",
//	  "page_size": 100,
//	  "upload_workers": 1,
//	  "conflict_strategy": "remote_wins",
//	  "nats_url": "nats://127.0.0.1:4222",
//	  "log_level": "info",
//	  "log_format": "text"
//	}
package config

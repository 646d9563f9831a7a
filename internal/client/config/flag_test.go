package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"cmd", "-a", "http://srv:9090", "-d", "/tmp/x.db", "-i", "30m", "-t", "5s", "-o", "1m",
				"-p", "50", "-w", "3", "-s", "local_wins", "-n", "nats://n:4222", "-l", "debug", "-f", "json"},
			expected: &Config{
				ServerURL: "http://srv:9090", DBPath: "/tmp/x.db", SyncInterval: 30 * time.Minute,
				RequestTimeout: 5 * time.Second, OnlineCheckInterval: time.Minute, PageSize: 50, UploadWorkers: 3, ConflictStrategy: "local_wins",
				NatsURL: "nats://n:4222", LogLevel: "debug", LogFormat: "json",
			},
		},
		{
			name:     "foreign flags are ignored",
			args:     []string{"cmd", "-c", "conf.json", "-a", "http://srv:1"},
			expected: &Config{ServerURL: "http://srv:1"},
		},
		{name: "bad interval", args: []string{"cmd", "-i", "abc"}, expectPanic: true, expected: &Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}

package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(testContext *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseName != "appointmentsDB" || cfg.DatabaseVersion != 1 {
		testContext.Fatalf("unexpected database identity: %s v%d", cfg.DatabaseName, cfg.DatabaseVersion)
	}
	if cfg.DatabasePath != "register.db" {
		testContext.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.BulkMaxParallel != 4 {
		testContext.Fatalf("unexpected bulk parallelism %d", cfg.BulkMaxParallel)
	}
	if cfg.HeartbeatInterval != 15*time.Second {
		testContext.Fatalf("unexpected heartbeat %s", cfg.HeartbeatInterval)
	}
}

func TestLoadReadsEnvironment(testContext *testing.T) {
	testContext.Setenv("REGISTER_DATABASE_PATH", "/tmp/custom.db")
	testContext.Setenv("REGISTER_BULK_MAX_PARALLEL", "8")
	testContext.Setenv("REGISTER_LOG_LEVEL", "debug")

	cfg, err := Load(NewViper())
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabasePath != "/tmp/custom.db" {
		testContext.Fatalf("expected env database path, got %q", cfg.DatabasePath)
	}
	if cfg.BulkMaxParallel != 8 {
		testContext.Fatalf("expected env parallelism, got %d", cfg.BulkMaxParallel)
	}
	if cfg.LogLevel != "debug" {
		testContext.Fatalf("expected env log level, got %q", cfg.LogLevel)
	}
}

func TestLoadRejectsInvalidValues(testContext *testing.T) {
	testCases := []struct {
		name    string
		key     string
		value   any
		message string
	}{
		{name: "empty path", key: "database.path", value: " ", message: "database.path"},
		{name: "empty name", key: "database.name", value: "", message: "database.name"},
		{name: "zero version", key: "database.version", value: 0, message: "database.version"},
		{name: "zero parallelism", key: "bulk.max_parallel", value: 0, message: "bulk.max_parallel"},
		{name: "excess parallelism", key: "bulk.max_parallel", value: 1000, message: "bulk.max_parallel"},
		{name: "zero heartbeat", key: "stream.heartbeat_seconds", value: 0, message: "stream.heartbeat_seconds"},
	}

	for _, testCase := range testCases {
		testContext.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			configViper.Set(testCase.key, testCase.value)
			_, err := Load(configViper)
			if err == nil {
				t.Fatalf("expected error for %s", testCase.key)
			}
			if !strings.Contains(err.Error(), testCase.message) {
				t.Fatalf("expected error to mention %s, got %v", testCase.message, err)
			}
		})
	}
}

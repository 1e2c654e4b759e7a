package config

import (
	"fmt"
	"os"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// validLogLevels are the accepted log level values.
var validLogLevels = []string{"debug", "info", "warn", "error"}

// durationEnvKeys lists all Config fields that are parsed as time.Duration.
var durationEnvKeys = []string{
	"WEBHOOK_TIMEOUT",
	"READ_TIMEOUT",
	"WRITE_TIMEOUT",
	"IDLE_TIMEOUT",
	"SHUTDOWN_TIMEOUT",
}

// allEnvKeys is every config-related env var key.
var allEnvKeys = append([]string{
	"PORT", "LOG_LEVEL", "LEDGER_OWNER", "STORAGE", "SQLITE_PATH",
	"ESCROW_MARGIN_POLICY", "ESCROW_MARGIN_VALUE",
}, durationEnvKeys...)

func unsetAllConfigEnv() {
	for _, key := range allEnvKeys {
		os.Unsetenv(key)
	}
}

// genDurationString generates a valid positive Go duration string.
func genDurationString() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		unit := rapid.SampledFrom([]string{"ms", "s", "m"}).Draw(t, "unit")
		val := rapid.IntRange(1, 600).Draw(t, "val")
		return fmt.Sprintf("%d%s", val, unit)
	})
}

// Property: any combination of valid or absent values loads, and every
// field equals either its env value or its default.
func TestProperty_ValidConfigParsing(t *testing.T) {
	defaults := map[string]time.Duration{
		"WEBHOOK_TIMEOUT":  5 * time.Second,
		"READ_TIMEOUT":     5 * time.Second,
		"WRITE_TIMEOUT":    10 * time.Second,
		"IDLE_TIMEOUT":     60 * time.Second,
		"SHUTDOWN_TIMEOUT": 10 * time.Second,
	}

	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		port := rapid.IntRange(0, 65535).Draw(t, "port") // 0 means unset
		logLevel := rapid.OneOf(rapid.Just(""), rapid.SampledFrom(validLogLevels)).Draw(t, "logLevel")
		policy := rapid.SampledFrom([]string{"", "none", "bps"}).Draw(t, "policy")
		bps := rapid.IntRange(0, 10_000).Draw(t, "bps")

		if port != 0 {
			os.Setenv("PORT", fmt.Sprintf("%d", port))
		}
		if logLevel != "" {
			os.Setenv("LOG_LEVEL", logLevel)
		}
		if policy != "" {
			os.Setenv("ESCROW_MARGIN_POLICY", policy)
			os.Setenv("ESCROW_MARGIN_VALUE", fmt.Sprintf("%d", bps))
		}
		durations := make(map[string]string, len(durationEnvKeys))
		for _, key := range durationEnvKeys {
			durations[key] = rapid.OneOf(rapid.Just(""), genDurationString()).Draw(t, key)
			if durations[key] != "" {
				os.Setenv(key, durations[key])
			}
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned error for valid inputs: %v", err)
		}

		wantPort := 8080
		if port != 0 {
			wantPort = port
		}
		if cfg.Port != wantPort {
			t.Fatalf("Port = %d, want %d", cfg.Port, wantPort)
		}
		wantLevel := "info"
		if logLevel != "" {
			wantLevel = logLevel
		}
		if cfg.LogLevel != wantLevel {
			t.Fatalf("LogLevel = %q, want %q", cfg.LogLevel, wantLevel)
		}
		wantPolicy := "none"
		if policy == "bps" {
			wantPolicy = "bps"
		}
		if cfg.MarginPolicy.Name() != wantPolicy {
			t.Fatalf("MarginPolicy = %s, want %s", cfg.MarginPolicy.Name(), wantPolicy)
		}

		got := map[string]time.Duration{
			"WEBHOOK_TIMEOUT":  cfg.WebhookTimeout,
			"READ_TIMEOUT":     cfg.ReadTimeout,
			"WRITE_TIMEOUT":    cfg.WriteTimeout,
			"IDLE_TIMEOUT":     cfg.IdleTimeout,
			"SHUTDOWN_TIMEOUT": cfg.ShutdownTimeout,
		}
		for _, key := range durationEnvKeys {
			want := defaults[key]
			if durations[key] != "" {
				want, _ = time.ParseDuration(durations[key])
			}
			if got[key] != want {
				t.Fatalf("%s = %v, want %v (env=%q)", key, got[key], want, durations[key])
			}
		}
	})
}

func TestProperty_InvalidLogLevelReturnsError(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		invalidLevel := rapid.StringMatching(`[a-z]{1,20}`).Filter(func(s string) bool {
			for _, v := range validLogLevels {
				if s == v {
					return false
				}
			}
			return true
		}).Draw(t, "invalidLevel")

		os.Setenv("LOG_LEVEL", invalidLevel)

		if _, err := Load(); err == nil {
			t.Fatalf("Load() should return error for invalid LOG_LEVEL %q", invalidLevel)
		}
	})
}

func TestProperty_InvalidDurationReturnsError(t *testing.T) {
	for _, key := range durationEnvKeys {
		t.Run(key, func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				unsetAllConfigEnv()
				defer unsetAllConfigEnv()

				invalid := rapid.OneOf(
					rapid.StringMatching(`[a-zA-Z]{2,10}`),
					rapid.Just("5x"),
					rapid.Just("0s"),
					rapid.Just("-3m"),
				).Filter(func(s string) bool {
					d, err := time.ParseDuration(s)
					return err != nil || d <= 0
				}).Draw(t, "invalidDuration")

				os.Setenv(key, invalid)

				if _, err := Load(); err == nil {
					t.Fatalf("Load() should return error for invalid %s=%q", key, invalid)
				}
			})
		})
	}
}

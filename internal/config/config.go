package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/efreitasn/commandledger/internal/escrow"
)

// Storage backends for the command repository.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config holds all runtime configuration for the command ledger.
type Config struct {
	Port            int
	LogLevel        string
	WebhookTimeout  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// LedgerOwner, when set, initializes the ledger at startup.
	LedgerOwner string
	Storage     string
	SQLitePath  string

	MarginPolicyName  string
	MarginPolicyValue string
	MarginPolicy      escrow.MarginPolicy
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d out of range", port)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	cfg := &Config{Port: port, LogLevel: logLevel}
	for _, d := range []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"WEBHOOK_TIMEOUT", 5 * time.Second, &cfg.WebhookTimeout},
		{"READ_TIMEOUT", 5 * time.Second, &cfg.ReadTimeout},
		{"WRITE_TIMEOUT", 10 * time.Second, &cfg.WriteTimeout},
		{"IDLE_TIMEOUT", 60 * time.Second, &cfg.IdleTimeout},
		{"SHUTDOWN_TIMEOUT", 10 * time.Second, &cfg.ShutdownTimeout},
	} {
		v, err := getDuration(d.key, d.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	storage := getStr("STORAGE", StorageMemory)
	if storage != StorageMemory && storage != StorageSQLite {
		return nil, fmt.Errorf("invalid STORAGE: %q, must be one of: memory, sqlite", storage)
	}

	policyName := getStr("ESCROW_MARGIN_POLICY", "none")
	policyValue := os.Getenv("ESCROW_MARGIN_VALUE")
	policy, err := escrow.ParsePolicy(policyName, policyValue)
	if err != nil {
		return nil, fmt.Errorf("invalid ESCROW_MARGIN_POLICY: %w", err)
	}

	cfg.LedgerOwner = os.Getenv("LEDGER_OWNER")
	cfg.Storage = storage
	cfg.SQLitePath = getStr("SQLITE_PATH", "commandledger.db")
	cfg.MarginPolicyName = policyName
	cfg.MarginPolicyValue = policyValue
	cfg.MarginPolicy = policy
	return cfg, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", v)
	}
	return d, nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

package app

import (
	"os"
	"strconv"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/service"
)

type Config struct {
	DatabaseFile string // Path to the SQLite database file (default: ./obgate.db)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)

	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired-authorisation sweep interval (default: 1h)
	HousekeepingGrace    time.Duration // How long past the deadline the sweep waits (default: 1h)

	// ASPSP profile.
	ScaApproach         string        // Initial SCA approach (EMBEDDED, DECOUPLED, REDIRECT) (default: EMBEDDED)
	OneTimeScaRequired  bool          // Require full SCA even for one-off available-accounts consents (default: false)
	AuthorisationTTL    time.Duration // How long an authorisation accepts steps (default: 1h)
	RedirectURLTTL      time.Duration // How long a redirect link stays usable (default: 10m)
	ConfirmationWindow  time.Duration // How long a parent may wait for finalisation (default: 24h, 0 disables)
	RedirectBaseURL     string        // Public base URL for redirect links (default: http://localhost:8080)
	RedirectSigningKey  string        // HS256 key for redirect tokens (generated per process when unset)

	// Sandbox connector fixtures. Credentials here are for the bundled
	// reference connector only.
	SandboxAutoConfirm bool   // Decoupled confirmations succeed on first poll (default: true)
	SandboxPsuID       string // Optional fixture PSU id
	SandboxPsuPassword string // Fixture PSU password
	SandboxTotpSecret  string // Fixture PSU TOTP secret
}

func LoadConfig() Config {
	return Config{
		DatabaseFile: getEnvOrDefault("OBGATE_DATABASE_FILE", "obgate.db"),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("OBGATE_HOUSEKEEPING_INTERVAL", 1*time.Hour),
		HousekeepingGrace:    getEnvDurationOrDefault("OBGATE_HOUSEKEEPING_GRACE", 1*time.Hour),

		ScaApproach:        getEnvOrDefault("OBGATE_SCA_APPROACH", "EMBEDDED"),
		OneTimeScaRequired: getEnvBoolOrDefault("OBGATE_ONE_TIME_SCA_REQUIRED", false),
		AuthorisationTTL:   getEnvDurationOrDefault("OBGATE_AUTHORISATION_TTL", 1*time.Hour),
		RedirectURLTTL:     getEnvDurationOrDefault("OBGATE_REDIRECT_URL_TTL", 10*time.Minute),
		ConfirmationWindow: getEnvDurationOrDefault("OBGATE_CONFIRMATION_WINDOW", 24*time.Hour),
		RedirectBaseURL:    getEnvOrDefault("OBGATE_REDIRECT_BASE_URL", "http://localhost:8080"),
		RedirectSigningKey: os.Getenv("OBGATE_REDIRECT_SIGNING_KEY"),

		SandboxAutoConfirm: getEnvBoolOrDefault("OBGATE_SANDBOX_AUTOCONFIRM", true),
		SandboxPsuID:       os.Getenv("OBGATE_SANDBOX_PSU_ID"),
		SandboxPsuPassword: os.Getenv("OBGATE_SANDBOX_PSU_PASSWORD"),
		SandboxTotpSecret:  os.Getenv("OBGATE_SANDBOX_TOTP_SECRET"),
	}
}

// Profile materialises the ASPSP policy the services consult.
func (c Config) Profile() service.Profile {
	return service.Profile{
		ScaApproach:                         domain.ScaApproach(c.ScaApproach),
		OneTimeAvailableAccountsScaRequired: c.OneTimeScaRequired,
		AuthorisationTTL:                    c.AuthorisationTTL,
		RedirectURLTTL:                      c.RedirectURLTTL,
		ConfirmationWindow:                  c.ConfirmationWindow,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

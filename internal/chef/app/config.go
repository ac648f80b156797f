package app

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/aichef/pkg/httpx"
)

type Config struct {
	KeycloakURL           string   // Identity provider base URL (default: http://keycloak.ismit.ru)
	KeycloakRealm         string   // Realm name (default: AIChef)
	ClientID              string   // OAuth2 client id (default: ai-chef)
	ClientSecret          string   // Optional: only for confidential clients
	RedirectURL           string   // SSO callback on this service (default: http://localhost:<port>/v1/session/callback)
	PostLogoutRedirectURL string   // Where the provider sends the browser after logout (default: http://localhost:<port>/)
	Scopes                []string // SSO scopes (default: openid profile email)

	APIBaseURL   string        // Business API base URL; the proxy is off when empty
	APIPrefix    string        // Business namespace (default: /webhook)
	APITimeout   time.Duration // Outgoing request timeout (default: 60s)
	APIRateLimit float64       // Outgoing requests per second, 0 for unlimited

	HostInitDataEnv    string        // Env var carrying the host launch payload (default: HOST_INIT_DATA)
	UnverifiedFallback bool          // Start embedded sessions on a synthetic token if the exchange fails (default: true)
	RenewalInterval    time.Duration // Background renewal period (default: 5m)
	PendingLoginTTL    time.Duration // How long a started browser login stays completable (default: 10m)

	DatabaseFile         string        // SQLite file for pending logins (default: chef.db)
	MasterKeyPath        string        // Optional: key file sealing PKCE verifiers at rest
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired pending-login cleanup interval (default: 15m)

	// CallbackURL is set by the CLI when the process is launched straight
	// from a provider redirect.
	CallbackURL string

	// LogOutput defaults to stdout. One-shot commands log to stderr so
	// stdout stays machine readable.
	LogOutput io.Writer
}

func LoadConfig() Config {
	port := getEnvIntOrDefault("PORT", 8080)
	local := "http://localhost:" + strconv.Itoa(port)

	return Config{
		KeycloakURL:           getEnvOrDefault("KEYCLOAK_URL", "http://keycloak.ismit.ru"),
		KeycloakRealm:         getEnvOrDefault("KEYCLOAK_REALM", "AIChef"),
		ClientID:              getEnvOrDefault("KEYCLOAK_CLIENT_ID", "ai-chef"),
		ClientSecret:          os.Getenv("KEYCLOAK_CLIENT_SECRET"),
		RedirectURL:           getEnvOrDefault("SSO_REDIRECT_URL", local+"/v1/session/callback"),
		PostLogoutRedirectURL: getEnvOrDefault("SSO_POST_LOGOUT_REDIRECT_URL", local+"/"),
		Scopes:                httpx.ParseSpaceDelimitedFields(getEnvOrDefault("SSO_SCOPES", "openid profile email")),

		APIBaseURL:   strings.TrimSpace(os.Getenv("API_BASE_URL")),
		APIPrefix:    getEnvOrDefault("API_PREFIX", "/webhook"),
		APITimeout:   getEnvDurationOrDefault("API_TIMEOUT", 60*time.Second),
		APIRateLimit: getEnvFloatOrDefault("API_RATE_LIMIT_RPS", 0),

		HostInitDataEnv:    getEnvOrDefault("HOST_INIT_DATA_ENV", "HOST_INIT_DATA"),
		UnverifiedFallback: getEnvBoolOrDefault("EMBEDDED_UNVERIFIED_FALLBACK", true),
		RenewalInterval:    getEnvDurationOrDefault("RENEWAL_INTERVAL", 5*time.Minute),
		PendingLoginTTL:    getEnvDurationOrDefault("PENDING_LOGIN_TTL", 10*time.Minute),

		DatabaseFile:         getEnvOrDefault("DATABASE_FILE", "chef.db"),
		MasterKeyPath:        os.Getenv("MASTER_KEY_PATH"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 port,
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 15*time.Minute),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v >= 0 {
		return v
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

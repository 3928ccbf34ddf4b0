package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Telemetry    TelemetryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	PublicURL             string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level   string
	Service string
}

// Session store kinds.
const (
	SessionStoreJWT   = "jwt"
	SessionStoreRedis = "redis"
)

// AuthConfig defines identity and session parameters.
type AuthConfig struct {
	AllowedDomains         []string
	AdminUsernames         []string
	AssertionSecret        string
	AssertionPublicKeyFile string
	AssertionIssuer        string
	AssertionAudience      string
	SessionStore           string
	SessionSecret          string
	SessionTTLMinutes      int
}

// Notification transports.
const (
	TransportLog   = "log"
	TransportNoop  = "noop"
	TransportSMTP  = "smtp"
	TransportGraph = "graph"
)

// NotificationConfig selects and configures the mail transport.
type NotificationConfig struct {
	Transport  string
	EmailFrom  string
	AdminEmail string
	SMTP       SMTPConfig
	Graph      GraphConfig
}

// SMTPConfig holds SMTP relay credentials.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// GraphConfig holds Microsoft Graph client credentials.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Sender       string
}

// TelemetryConfig configures the OTLP trace exporter.
type TelemetryConfig struct {
	OTLPEndpoint string
	Insecure     bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "facility-requests"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			PublicURL:             strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Service: getEnv("APP_NAME", "facility-requests"),
		},
		Auth: AuthConfig{
			AllowedDomains:         getEnvAsList("AUTH_ALLOWED_DOMAINS"),
			AdminUsernames:         getEnvAsList("AUTH_ADMIN_USERNAMES"),
			AssertionSecret:        os.Getenv("AUTH_ASSERTION_SECRET"),
			AssertionPublicKeyFile: os.Getenv("AUTH_ASSERTION_PUBLIC_KEY_FILE"),
			AssertionIssuer:        os.Getenv("AUTH_ASSERTION_ISSUER"),
			AssertionAudience:      os.Getenv("AUTH_ASSERTION_AUDIENCE"),
			SessionStore:           strings.ToLower(getEnv("AUTH_SESSION_STORE", SessionStoreJWT)),
			SessionSecret:          os.Getenv("AUTH_SESSION_SECRET"),
			SessionTTLMinutes:      getEnvAsInt("AUTH_SESSION_TTL_MINUTES", 60*12),
		},
		Notification: NotificationConfig{
			Transport:  strings.ToLower(getEnv("NOTIFY_TRANSPORT", TransportLog)),
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			AdminEmail: os.Getenv("NOTIFY_ADMIN_EMAIL"),
			SMTP: SMTPConfig{
				Host:     os.Getenv("SMTP_HOST"),
				Port:     getEnvAsInt("SMTP_PORT", 587),
				Username: os.Getenv("SMTP_USERNAME"),
				Password: os.Getenv("SMTP_PASSWORD"),
			},
			Graph: GraphConfig{
				TenantID:     os.Getenv("GRAPH_TENANT_ID"),
				ClientID:     os.Getenv("GRAPH_CLIENT_ID"),
				ClientSecret: os.Getenv("GRAPH_CLIENT_SECRET"),
				Sender:       os.Getenv("GRAPH_SENDER"),
			},
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:     getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Auth.AllowedDomains) == 0 {
		errs = append(errs, errors.New("AUTH_ALLOWED_DOMAINS must list at least one domain"))
	}
	if c.Auth.AssertionSecret == "" && c.Auth.AssertionPublicKeyFile == "" {
		errs = append(errs, errors.New("one of AUTH_ASSERTION_SECRET or AUTH_ASSERTION_PUBLIC_KEY_FILE is required"))
	}
	switch c.Auth.SessionStore {
	case SessionStoreJWT:
		if c.Auth.SessionSecret == "" {
			errs = append(errs, errors.New("AUTH_SESSION_SECRET is required for the jwt session store"))
		}
	case SessionStoreRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_SESSION_STORE %q", c.Auth.SessionStore))
	}
	if strings.TrimSpace(c.Notification.AdminEmail) == "" {
		errs = append(errs, errors.New("NOTIFY_ADMIN_EMAIL is required"))
	}
	switch c.Notification.Transport {
	case TransportLog, TransportNoop:
	case TransportSMTP:
		if c.Notification.SMTP.Host == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for the smtp transport"))
		}
	case TransportGraph:
		g := c.Notification.Graph
		if g.TenantID == "" || g.ClientID == "" || g.ClientSecret == "" || g.Sender == "" {
			errs = append(errs, errors.New("GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET and GRAPH_SENDER are required for the graph transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFY_TRANSPORT %q", c.Notification.Transport))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SessionTTL returns the lifetime of issued sessions.
func (a AuthConfig) SessionTTL() time.Duration {
	if a.SessionTTLMinutes <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(a.SessionTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration. It is built once by Load and
// handed to the components that need it; nothing reads the environment later.
type Config struct {
	Server struct {
		Port            string
		Env             string
		ShutdownTimeout time.Duration
		GRPCPort        string
	}

	Database struct {
		URL            string
		Host           string
		Port           string
		User           string
		Password       string
		Name           string
		SSLMode        string
		MaxConns       int
		ConnectRetries int
		RetryDelay     time.Duration
		InMemory       bool
	}

	JWT struct {
		Secret string
		Expiry time.Duration
	}

	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		MaxBodySize    int64
	}

	Logging struct {
		Level  string
		Format string
	}

	// Seed creates a login user at startup when both fields are set
	Seed struct {
		Email    string
		Password string
	}

	// Routing.RouteToEmail switches the resolver to fixed routing
	Routing struct {
		RouteToEmail string
	}

	OpenAI struct {
		APIKey           string
		Model            string
		BaseURL          string
		Temperature      float32
		Timeout          time.Duration
		MaxAttempts      int
		BackoffBase      time.Duration
		BackoffJitter    time.Duration
		HistoryLimit     int
		Instructions     string
		InstructionsFile string
	}

	Meta struct {
		AccessToken   string
		PhoneNumberID string
		VerifyToken   string
		AppSecret     string
		GraphURL      string
		APIVersion    string
	}

	Twilio struct {
		AccountSID string
		AuthToken  string
		From       string
		WebhookURL string
	}

	Outbound struct {
		ProviderOrder    []string
		ChunkDelay       time.Duration
		Timeout          time.Duration
		FailureThreshold uint
		RetryTimeout     time.Duration
	}

	Redis struct {
		URL      string
		DedupTTL time.Duration
	}

	Vault struct {
		Enabled     bool
		Address     string
		Token       string
		Namespace   string
		Mount       string
		SecretsPath string
	}

	Observability struct {
		ServiceName    string
		TracingEnabled bool
	}

	OpenAPI struct {
		SchemaPath string
	}
}

// Load reads .env (if present) and the process environment into a new Config
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Server.Port = getEnvString("PORT", "8000")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.Server.GRPCPort = getEnvString("GRPC_PORT", "")

	cfg.Database.URL = getEnvString("DATABASE_URL", "")
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "wa_assistant")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.ConnectRetries = getEnvInt("DB_CONNECT_RETRIES", 5)
	cfg.Database.RetryDelay = getEnvDuration("DB_RETRY_DELAY", 5*time.Second)
	cfg.Database.InMemory = getEnvBool("DB_USE_IN_MEMORY", false)

	cfg.JWT.Secret = getEnvString("JWT_SECRET", "dev-jwt-secret-change-me")
	cfg.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20)

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	seedPassword := ""
	if cfg.IsDevelopment() {
		seedPassword = "123"
	}
	cfg.Seed.Email = getEnvString("SEED_USER_EMAIL", "dev@local.com")
	cfg.Seed.Password = getEnvString("SEED_USER_PASSWORD", seedPassword)

	cfg.Routing.RouteToEmail = strings.ToLower(strings.TrimSpace(getEnvString("WA_ROUTE_TO_EMAIL", "")))

	cfg.OpenAI.APIKey = getEnvString("OPENAI_API_KEY", "")
	cfg.OpenAI.Model = getEnvString("OPENAI_MODEL", "gpt-4o-mini")
	cfg.OpenAI.BaseURL = getEnvString("OPENAI_BASE_URL", "")
	cfg.OpenAI.Temperature = float32(getEnvFloat("OPENAI_TEMPERATURE", 0.7))
	cfg.OpenAI.Timeout = getEnvDuration("OPENAI_TIMEOUT", 30*time.Second)
	cfg.OpenAI.MaxAttempts = getEnvInt("OPENAI_MAX_ATTEMPTS", 3)
	cfg.OpenAI.BackoffBase = getEnvDuration("OPENAI_BACKOFF_BASE", 500*time.Millisecond)
	cfg.OpenAI.BackoffJitter = getEnvDuration("OPENAI_BACKOFF_JITTER", 250*time.Millisecond)
	cfg.OpenAI.HistoryLimit = getEnvInt("OPENAI_HISTORY_LIMIT", 20)
	cfg.OpenAI.Instructions = getEnvString("AGENT_INSTRUCTIONS", "")
	cfg.OpenAI.InstructionsFile = getEnvString("AGENT_INSTRUCTIONS_FILE", "agent_instructions.txt")

	cfg.Meta.AccessToken = getEnvString("META_ACCESS_TOKEN", "")
	cfg.Meta.PhoneNumberID = getEnvString("META_PHONE_NUMBER_ID", "")
	cfg.Meta.VerifyToken = getEnvString("META_VERIFY_TOKEN", "")
	cfg.Meta.AppSecret = getEnvString("META_APP_SECRET", "")
	cfg.Meta.GraphURL = getEnvString("META_GRAPH_URL", "https://graph.facebook.com")
	cfg.Meta.APIVersion = getEnvString("META_API_VERSION", "v20.0")

	cfg.Twilio.AccountSID = getEnvString("TWILIO_ACCOUNT_SID", "")
	cfg.Twilio.AuthToken = getEnvString("TWILIO_AUTH_TOKEN", "")
	cfg.Twilio.From = getEnvString("TWILIO_WHATSAPP_FROM", "whatsapp:+14155238886")
	cfg.Twilio.WebhookURL = getEnvString("TWILIO_WEBHOOK_URL", "")

	cfg.Outbound.ProviderOrder = getEnvStringSlice("OUTBOUND_PROVIDER_ORDER", []string{"twilio", "meta"})
	cfg.Outbound.ChunkDelay = getEnvDuration("OUTBOUND_CHUNK_DELAY", 500*time.Millisecond)
	cfg.Outbound.Timeout = getEnvDuration("OUTBOUND_TIMEOUT", 15*time.Second)
	cfg.Outbound.FailureThreshold = uint(getEnvInt("OUTBOUND_BREAKER_FAILURES", 5))
	cfg.Outbound.RetryTimeout = getEnvDuration("OUTBOUND_BREAKER_RETRY", 60*time.Second)

	cfg.Redis.URL = getEnvString("REDIS_URL", "")
	cfg.Redis.DedupTTL = getEnvDuration("WEBHOOK_DEDUP_TTL", 24*time.Hour)

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.Mount = getEnvString("VAULT_MOUNT", "secret")
	cfg.Vault.SecretsPath = getEnvString("VAULT_SECRETS_PATH", "wa-assistant")

	cfg.Observability.ServiceName = getEnvString("SERVICE_NAME", "wa-assistant")
	cfg.Observability.TracingEnabled = getEnvBool("TRACING_ENABLED", false)

	cfg.OpenAPI.SchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", "")

	return cfg
}

// IsDevelopment reports whether APP_ENV is development
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// SecretTargets maps secret names to the fields they populate. Only empty
// fields are filled, so explicit environment values win over the vault.
func (c *Config) SecretTargets() map[string]*string {
	return map[string]*string{
		"openai_api_key":     &c.OpenAI.APIKey,
		"meta_access_token":  &c.Meta.AccessToken,
		"meta_verify_token":  &c.Meta.VerifyToken,
		"meta_app_secret":    &c.Meta.AppSecret,
		"twilio_account_sid": &c.Twilio.AccountSID,
		"twilio_auth_token":  &c.Twilio.AuthToken,
		"jwt_secret":         &c.JWT.Secret,
		"db_password":        &c.Database.Password,
	}
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

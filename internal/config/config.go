package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"travelmate/internal/models"
	"travelmate/internal/queue"
	"travelmate/internal/settings"
	"travelmate/internal/storage"
	"travelmate/internal/widget"
)

// Config holds configuration for the chat service.
type Config struct {
	HTTPPort  string
	StaticDir string
	Storage   StorageConfig
	Redis     RedisConfig
	Security  SecurityConfig
	Provider  ProviderConfig
	Keywords  KeywordsConfig
	Widget    WidgetConfig
	Audit     AuditConfig
	Sessions  SessionConfig
}

// StorageConfig selects the durable key-value backend for settings
type StorageConfig struct {
	Backend         string // sqlite, postgres, redis or memory
	SQLitePath      string
	DatabaseURL     string
	KeyPrefix       string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SecurityConfig holds the secret used to seal stored credentials.
// Either a base64 AES key or a passphrase; empty stores credentials as is.
type SecurityConfig struct {
	EncryptionKey string
}

// ProviderConfig holds provider-related settings
type ProviderConfig struct {
	Enabled        bool                // AI answers on when nothing is stored yet
	Active         models.ProviderType // Active provider when nothing is stored yet
	RequestTimeout time.Duration       // Transport timeout for provider requests
	SystemPrompt   string
	OpenAI         ProviderSettings
	Anthropic      ProviderSettings
}

// ProviderSettings is the per-provider part of ProviderConfig
type ProviderSettings struct {
	Endpoint    string
	Model       string
	Temperature float64
	MaxTokens   int
	APIKey      string
}

// KeywordsConfig points at an optional keyword table override
type KeywordsConfig struct {
	File string
}

// WidgetConfig holds the hosted chat widget bootstrap settings
type WidgetConfig struct {
	ConfigURL      string
	ShareURL       string
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	ReloadInterval time.Duration
}

// AuditConfig holds configuration for the resolution audit pipeline
type AuditConfig struct {
	Enabled       bool          // Whether to record resolutions
	QueueBackend  string        // memory or redis
	QueueName     string        // Redis list key suffix
	BatchSize     int           // Ship after this many records
	FlushInterval time.Duration // Ship a partial batch after this duration
	MaxRetries    int
	RetryBackoff  time.Duration
	S3Bucket      string // Empty writes batches to the log instead
	S3Region      string
	S3Prefix      string
	S3Endpoint    string // MinIO or other S3 compatible endpoint
	S3PathStyle   bool
	PodName       string // Pod identifier for multi-pod deployments
}

// SessionConfig bounds the in-memory chat sessions
type SessionConfig struct {
	Capacity        int
	TTL             time.Duration
	CleanupInterval time.Duration
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvFloat(key string, defaultValue float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// LoadDotEnv loads environment variables from path. Missing files are ignored.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads configuration from environment variables, after loading an
// optional .env file (ENV_FILE, default ".env").
func Load() (*Config, error) {
	if err := LoadDotEnv(getEnvString("ENV_FILE", ".env")); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	builtin := settings.BuiltinDefaults()
	openai := builtin.Providers[models.ProviderTypeOpenAI]
	anthropic := builtin.Providers[models.ProviderTypeAnthropic]

	cfg := &Config{
		HTTPPort:  getEnvString("HTTP_PORT", "8080"),
		StaticDir: getEnvString("STATIC_DIR", ""),
		Storage: StorageConfig{
			Backend:         strings.ToLower(getEnvString("STORAGE_BACKEND", storage.BackendSQLite)),
			SQLitePath:      getEnvString("SQLITE_PATH", storage.DefaultDBConfig().DSN),
			DatabaseURL:     getEnvString("DATABASE_URL", ""),
			KeyPrefix:       getEnvString("STORAGE_KEY_PREFIX", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Security: SecurityConfig{
			EncryptionKey: getEnvString("CREDENTIAL_ENCRYPTION_KEY", ""),
		},
		Provider: ProviderConfig{
			Enabled:        getEnvBool("AI_ENABLED", builtin.Enabled),
			Active:         models.ProviderType(strings.ToLower(getEnvString("AI_PROVIDER", string(builtin.Provider)))),
			RequestTimeout: getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 60*time.Second),
			SystemPrompt:   getEnvString("AI_SYSTEM_PROMPT", builtin.SystemPrompt),
			OpenAI: ProviderSettings{
				Endpoint:    getEnvString("OPENAI_ENDPOINT", openai.Endpoint),
				Model:       getEnvString("OPENAI_MODEL", openai.Model),
				Temperature: getEnvFloat("OPENAI_TEMPERATURE", openai.Temperature),
				MaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", openai.MaxTokens),
				APIKey:      getEnvString("OPENAI_API_KEY", ""),
			},
			Anthropic: ProviderSettings{
				Endpoint:    getEnvString("ANTHROPIC_ENDPOINT", anthropic.Endpoint),
				Model:       getEnvString("ANTHROPIC_MODEL", anthropic.Model),
				Temperature: getEnvFloat("ANTHROPIC_TEMPERATURE", anthropic.Temperature),
				MaxTokens:   getEnvInt("ANTHROPIC_MAX_TOKENS", anthropic.MaxTokens),
				APIKey:      getEnvString("ANTHROPIC_API_KEY", ""),
			},
		},
		Keywords: KeywordsConfig{
			File: getEnvString("KEYWORDS_FILE", ""),
		},
		Widget: WidgetConfig{
			ConfigURL:      getEnvString("WIDGET_CONFIG_URL", ""),
			ShareURL:       getEnvString("WIDGET_SHARE_URL", ""),
			MaxAttempts:    getEnvInt("WIDGET_MAX_ATTEMPTS", 5),
			InitialBackoff: getEnvDuration("WIDGET_INITIAL_BACKOFF", 500*time.Millisecond),
			MaxBackoff:     getEnvDuration("WIDGET_MAX_BACKOFF", 10*time.Second),
			Multiplier:     getEnvFloat("WIDGET_BACKOFF_MULTIPLIER", 2),
			ReloadInterval: getEnvDuration("WIDGET_RELOAD_INTERVAL", time.Minute),
		},
		Audit: AuditConfig{
			Enabled:       getEnvBool("AUDIT_ENABLED", false),
			QueueBackend:  strings.ToLower(getEnvString("AUDIT_QUEUE_BACKEND", "memory")),
			QueueName:     getEnvString("AUDIT_QUEUE_NAME", "travelmate-audit"),
			BatchSize:     getEnvInt("AUDIT_BATCH_SIZE", 500),
			FlushInterval: getEnvDuration("AUDIT_FLUSH_INTERVAL", 30*time.Second),
			MaxRetries:    getEnvInt("AUDIT_MAX_RETRIES", 3),
			RetryBackoff:  getEnvDuration("AUDIT_RETRY_BACKOFF", time.Second),
			S3Bucket:      getEnvString("AUDIT_S3_BUCKET", ""),
			S3Region:      getEnvString("AUDIT_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("AUDIT_S3_PREFIX", "chat-audit/"),
			S3Endpoint:    getEnvString("AUDIT_S3_ENDPOINT", ""),
			S3PathStyle:   getEnvBool("AUDIT_S3_PATH_STYLE", false),
			PodName:       getEnvString("POD_NAME", "travelmate-0"),
		},
		Sessions: SessionConfig{
			Capacity:        getEnvInt("SESSION_CAPACITY", 10000),
			TTL:             getEnvDuration("SESSION_TTL", 2*time.Hour),
			CleanupInterval: getEnvDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and backend names
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case storage.BackendSQLite, storage.BackendPostgres, storage.BackendRedis, storage.BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND: unknown backend %q", c.Storage.Backend))
	}
	if c.Storage.Backend == storage.BackendPostgres && c.Storage.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required for the postgres backend"))
	}

	if !c.Provider.Active.Valid() {
		errs = append(errs, fmt.Errorf("AI_PROVIDER: unknown provider %q", c.Provider.Active))
	}
	for name, p := range map[string]ProviderSettings{"OPENAI": c.Provider.OpenAI, "ANTHROPIC": c.Provider.Anthropic} {
		if err := p.settings().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	switch c.Audit.QueueBackend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("AUDIT_QUEUE_BACKEND: unknown backend %q", c.Audit.QueueBackend))
	}
	if c.Audit.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_BATCH_SIZE must be positive"))
	}
	if c.Widget.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("WIDGET_MAX_ATTEMPTS must be positive"))
	}

	return errors.Join(errs...)
}

func (p ProviderSettings) settings() models.ProviderSettings {
	return models.ProviderSettings{
		Endpoint:    p.Endpoint,
		Credential:  p.APIKey,
		Model:       p.Model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
}

// SettingsDefaults builds the defaults applied before stored settings are read
func (c *Config) SettingsDefaults() settings.Defaults {
	return settings.Defaults{
		Enabled:      c.Provider.Enabled,
		Provider:     c.Provider.Active,
		SystemPrompt: c.Provider.SystemPrompt,
		Providers: map[models.ProviderType]models.ProviderSettings{
			models.ProviderTypeOpenAI:    c.Provider.OpenAI.settings(),
			models.ProviderTypeAnthropic: c.Provider.Anthropic.settings(),
		},
	}
}

// StoreConfig maps the storage and Redis sections onto storage.StoreConfig
func (c *Config) StoreConfig() storage.StoreConfig {
	db := storage.DefaultDBConfig()
	db.MaxOpenConns = c.Storage.MaxOpenConns
	db.MaxIdleConns = c.Storage.MaxIdleConns
	db.ConnMaxLifetime = c.Storage.ConnMaxLifetime
	db.ConnMaxIdleTime = c.Storage.ConnMaxIdleTime

	return storage.StoreConfig{
		Backend:     c.Storage.Backend,
		SQLitePath:  c.Storage.SQLitePath,
		DatabaseURL: c.Storage.DatabaseURL,
		DB:          db,
		Redis:       c.RedisClientConfig(),
		KeyPrefix:   c.Storage.KeyPrefix,
	}
}

// RedisClientConfig maps the Redis section onto storage.RedisConfig
func (c *Config) RedisClientConfig() storage.RedisConfig {
	r := storage.DefaultRedisConfig()
	r.Address = c.Redis.Address
	r.Password = c.Redis.Password
	r.DB = c.Redis.DB
	r.PoolSize = c.Redis.PoolSize
	r.MinIdleConns = c.Redis.MinIdleConns
	r.DialTimeout = c.Redis.DialTimeout
	r.ReadTimeout = c.Redis.ReadTimeout
	r.WriteTimeout = c.Redis.WriteTimeout
	return r
}

// QueueConfig maps the audit section onto queue.Config
func (c *Config) QueueConfig() *queue.Config {
	q := queue.DefaultConfig(c.Audit.QueueName)
	q.BatchSize = c.Audit.BatchSize
	q.BatchTimeout = c.Audit.FlushInterval
	q.MaxRetries = c.Audit.MaxRetries
	q.RetryBackoff = c.Audit.RetryBackoff
	q.UseRedis = c.Audit.QueueBackend == "redis"
	q.RedisAddr = c.Redis.Address
	q.RedisPassword = c.Redis.Password
	q.RedisDB = c.Redis.DB
	return q
}

// RetryPolicy maps the widget section onto widget.RetryPolicy
func (c *Config) RetryPolicy() widget.RetryPolicy {
	return widget.RetryPolicy{
		MaxAttempts:    c.Widget.MaxAttempts,
		InitialBackoff: c.Widget.InitialBackoff,
		MaxBackoff:     c.Widget.MaxBackoff,
		Multiplier:     c.Widget.Multiplier,
	}
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	APIVersion     string
	APIPrefix      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Kafka configuration
	Kafka KafkaConfig

	// Rate limiting
	RateLimit RateLimitConfig

	// Queue simulation
	Queue QueueConfig

	// Pass issuing and verification
	Pass PassConfig

	// Logging
	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string

	// TTL values for different operations
	BookingTTL time.Duration
	CacheTTL   time.Duration
}

// KafkaConfig holds lifecycle event streaming configuration
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	Topic           string
	ConsumerGroupID string
	NumWorkers      int
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool          `json:"enabled"`
	WindowDuration  time.Duration `json:"window_duration"`
	DefaultRequests int           `json:"default_requests"`
	PublicRequests  int           `json:"public_requests"`
	QueueRequests   int           `json:"queue_requests"`
	PaymentRequests int           `json:"payment_requests"`
	ScanRequests    int           `json:"scan_requests"`
	HealthRequests  int           `json:"health_requests"`
	WhitelistedIPs  []string      `json:"whitelisted_ips"`
}

// QueueConfig holds the payment and queue simulation knobs
type QueueConfig struct {
	PaymentLatency     time.Duration
	RefreshLatency     time.Duration
	PaymentSuccessRate float64
	TimezoneOffset     time.Duration
	TimezoneName       string

	// BookingGrace is how long after its slot a booking stays on the ledger
	BookingGrace         time.Duration
	SessionIdleTTL       time.Duration
	SessionSweepInterval time.Duration
}

// PassConfig holds pass signing and retention configuration
type PassConfig struct {
	SigningSecret      string
	VerifyBaseURL      string
	ValidFor           time.Duration
	UsedRetention      time.Duration
	CompactionInterval time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIVersion:     getEnv("API_VERSION", "v1"),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB
		TrustedProxies: getStringSliceEnv("TRUSTED_PROXIES", []string{"127.0.0.1", "::1"}),

		// Database configuration
		Database: DatabaseConfig{
			Enabled:  getBoolEnv("DB_ENABLED", true),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "templeq_db"),
			User:     getEnv("DB_USER", "templeq_user"),
			Password: getEnv("DB_PASSWORD", "templeq_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		// Redis configuration
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),

			BookingTTL: getDurationEnv("REDIS_BOOKING_TTL", 0),
			CacheTTL:   getDurationEnv("REDIS_CACHE_TTL", 1*time.Hour),
		},

		// Kafka configuration
		Kafka: KafkaConfig{
			Enabled:         getBoolEnv("KAFKA_ENABLED", false),
			Brokers:         getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:           getEnv("KAFKA_LIFECYCLE_TOPIC", "booking-lifecycle"),
			ConsumerGroupID: getEnv("KAFKA_CONSUMER_GROUP_ID", "templeq-refund-workers"),
			NumWorkers:      getIntEnv("KAFKA_NUM_WORKERS", 2),
		},

		// Rate limiting
		RateLimit: RateLimitConfig{
			Enabled:         getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:  getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests: getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			PublicRequests:  getIntEnv("RATE_LIMIT_PUBLIC_REQUESTS", 100),
			QueueRequests:   getIntEnv("RATE_LIMIT_QUEUE_REQUESTS", 60),
			PaymentRequests: getIntEnv("RATE_LIMIT_PAYMENT_REQUESTS", 10),
			ScanRequests:    getIntEnv("RATE_LIMIT_SCAN_REQUESTS", 30),
			HealthRequests:  getIntEnv("RATE_LIMIT_HEALTH_REQUESTS", 300),
			WhitelistedIPs:  getStringSliceEnv("RATE_LIMIT_WHITELISTED_IPS", []string{}),
		},

		// Queue simulation
		Queue: QueueConfig{
			PaymentLatency:     getDurationEnv("PAYMENT_LATENCY", 3*time.Second),
			RefreshLatency:     getDurationEnv("REFRESH_LATENCY", 1*time.Second),
			PaymentSuccessRate: getFloatEnv("PAYMENT_SUCCESS_RATE", 0.9),
			TimezoneOffset:     getDurationEnv("TIMEZONE_OFFSET", 5*time.Hour+30*time.Minute),
			TimezoneName:       getEnv("TIMEZONE_NAME", "IST"),

			BookingGrace:         getDurationEnv("BOOKING_GRACE", 2*time.Hour),
			SessionIdleTTL:       getDurationEnv("QUEUE_SESSION_IDLE_TTL", 30*time.Minute),
			SessionSweepInterval: getDurationEnv("QUEUE_SESSION_SWEEP_INTERVAL", 1*time.Minute),
		},

		// Pass configuration
		Pass: PassConfig{
			SigningSecret:      getEnv("PASS_SIGNING_SECRET", "change-me-pass-signing-secret"),
			VerifyBaseURL:      getEnv("PASS_VERIFY_BASE_URL", "https://temple-app.com/verify/"),
			ValidFor:           getDurationEnv("PASS_VALID_FOR", 24*time.Hour),
			UsedRetention:      getDurationEnv("PASS_USED_RETENTION", 72*time.Hour),
			CompactionInterval: getDurationEnv("PASS_COMPACTION_INTERVAL", 1*time.Hour),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	// A used pass must be remembered at least as long as its token verifies
	if cfg.Pass.UsedRetention < cfg.Pass.ValidFor {
		cfg.Pass.UsedRetention = cfg.Pass.ValidFor
	}

	return cfg
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getFloatEnv gets a float environment variable with a fallback value
func getFloatEnv(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// GetAPIBasePath returns the API base path
func (c *Config) GetAPIBasePath() string {
	return c.APIPrefix + "/" + c.APIVersion
}

// Location returns the fixed zone slot times are interpreted in
func (q QueueConfig) Location() *time.Location {
	return time.FixedZone(q.TimezoneName, int(q.TimezoneOffset.Seconds()))
}

package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig
	Log         LogConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	CORS        CORSConfig
	RateLimit   RateLimitConfig
	Redis       RedisConfig
	Messaging   MessagingConfig
	Inventory   InventoryConfig
	Eligibility EligibilityConfig
	Import      ImportConfig
	Report      ReportConfig
	Seed        SeedConfig
}

type AppConfig struct {
	Name  string
	Env   string
	Port  string
	Debug bool
}

type LogConfig struct {
	Level    string
	Encoding string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	Timezone     string
	MaxIdleConns int
	MaxOpenConns int
}

type JWTConfig struct {
	Secret      string
	ExpiryHours time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type RateLimitConfig struct {
	Requests int
	Duration int
	// Store is "memory" for a single instance or "redis" to share counters across instances
	Store string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MessagingConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type InventoryConfig struct {
	LowStockThreshold int64
}

type EligibilityConfig struct {
	// LoanCeiling selects the loan ceiling policy: "headroom" or "global_limit"
	LoanCeiling string
	// Lock is "none" for the point-in-time check or "redis" to serialize per member
	Lock    string
	LockTTL time.Duration
}

type ImportConfig struct {
	ChunkSize     int
	MaxUploadSize int64
}

type ReportConfig struct {
	// Source is "db" to aggregate directly or "http" to call the aggregation upstream
	Source         string
	UpstreamURL    string
	UpstreamAPIKey string
	Timeout        time.Duration
	Pacing         time.Duration
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	MaxAttempts    int
}

type SeedConfig struct {
	// Branches are "CODE:Name" pairs
	Branches    []string
	Departments []string
}

func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables: %v", err)
	}

	setDefaults()

	return &Config{
		App: AppConfig{
			Name:  viper.GetString("APP_NAME"),
			Env:   viper.GetString("APP_ENV"),
			Port:  viper.GetString("APP_PORT"),
			Debug: viper.GetBool("APP_DEBUG"),
		},
		Log: LogConfig{
			Level:    viper.GetString("LOG_LEVEL"),
			Encoding: viper.GetString("LOG_ENCODING"),
		},
		Database: DatabaseConfig{
			Host:         viper.GetString("DB_HOST"),
			Port:         viper.GetString("DB_PORT"),
			Name:         viper.GetString("DB_NAME"),
			User:         viper.GetString("DB_USER"),
			Password:     viper.GetString("DB_PASSWORD"),
			SSLMode:      viper.GetString("DB_SSL_MODE"),
			Timezone:     viper.GetString("DB_TIMEZONE"),
			MaxIdleConns: viper.GetInt("DB_MAX_IDLE_CONNS"),
			MaxOpenConns: viper.GetInt("DB_MAX_OPEN_CONNS"),
		},
		JWT: JWTConfig{
			Secret:      viper.GetString("JWT_SECRET"),
			ExpiryHours: time.Duration(viper.GetInt("JWT_EXPIRY_HOURS")) * time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
			AllowedMethods: splitList(viper.GetString("CORS_ALLOWED_METHODS")),
			AllowedHeaders: splitList(viper.GetString("CORS_ALLOWED_HEADERS")),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Duration: viper.GetInt("RATE_LIMIT_DURATION"),
			Store:    strings.ToLower(viper.GetString("RATE_LIMIT_STORE")),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Messaging: MessagingConfig{
			Enabled: viper.GetBool("MESSAGING_ENABLED"),
			Brokers: splitList(viper.GetString("KAFKA_BROKERS")),
			Topic:   viper.GetString("KAFKA_ORDER_TOPIC"),
		},
		Inventory: InventoryConfig{
			LowStockThreshold: viper.GetInt64("LOW_STOCK_THRESHOLD"),
		},
		Eligibility: EligibilityConfig{
			LoanCeiling: viper.GetString("ELIGIBILITY_LOAN_CEILING"),
			Lock:        strings.ToLower(viper.GetString("ELIGIBILITY_LOCK")),
			LockTTL:     viper.GetDuration("ELIGIBILITY_LOCK_TTL"),
		},
		Import: ImportConfig{
			ChunkSize:     viper.GetInt("IMPORT_CHUNK_SIZE"),
			MaxUploadSize: viper.GetInt64("IMPORT_MAX_UPLOAD_SIZE"),
		},
		Report: ReportConfig{
			Source:         strings.ToLower(viper.GetString("REPORT_SOURCE")),
			UpstreamURL:    viper.GetString("REPORT_UPSTREAM_URL"),
			UpstreamAPIKey: viper.GetString("REPORT_UPSTREAM_API_KEY"),
			Timeout:        viper.GetDuration("REPORT_TIMEOUT"),
			Pacing:         viper.GetDuration("REPORT_PACING"),
			BackoffBase:    viper.GetDuration("REPORT_BACKOFF_BASE"),
			BackoffMax:     viper.GetDuration("REPORT_BACKOFF_MAX"),
			MaxAttempts:    viper.GetInt("REPORT_MAX_ATTEMPTS"),
		},
		Seed: SeedConfig{
			Branches:    splitList(viper.GetString("SEED_BRANCHES")),
			Departments: splitList(viper.GetString("SEED_DEPARTMENTS")),
		},
	}
}

func setDefaults() {
	viper.SetDefault("APP_NAME", "coopmart-api")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("APP_DEBUG", true)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_ENCODING", "json")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_NAME", "coopmart")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("DB_TIMEZONE", "Africa/Lagos")
	viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 100)
	viper.SetDefault("JWT_SECRET", "change-this-secret-in-production")
	viper.SetDefault("JWT_EXPIRY_HOURS", 24)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_DURATION", 60)
	viper.SetDefault("RATE_LIMIT_STORE", "memory")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("MESSAGING_ENABLED", false)
	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("KAFKA_ORDER_TOPIC", "coopmart.orders")
	viper.SetDefault("LOW_STOCK_THRESHOLD", 20)
	viper.SetDefault("ELIGIBILITY_LOAN_CEILING", "headroom")
	viper.SetDefault("ELIGIBILITY_LOCK", "none")
	viper.SetDefault("ELIGIBILITY_LOCK_TTL", "10s")
	viper.SetDefault("IMPORT_CHUNK_SIZE", 500)
	viper.SetDefault("IMPORT_MAX_UPLOAD_SIZE", 10485760)
	viper.SetDefault("REPORT_SOURCE", "db")
	viper.SetDefault("REPORT_TIMEOUT", "8s")
	viper.SetDefault("REPORT_PACING", "350ms")
	viper.SetDefault("REPORT_BACKOFF_BASE", "900ms")
	viper.SetDefault("REPORT_BACKOFF_MAX", "15s")
	viper.SetDefault("REPORT_MAX_ATTEMPTS", 8)
}

func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.Timezone
}

// IsProduction reports whether the app runs with production settings
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

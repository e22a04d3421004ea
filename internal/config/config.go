package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Identity  IdentityConfig
	Assets    AssetConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
	MaxUploadMB    int64
}

type StoreConfig struct {
	Driver string // "postgres", "mongo" or "memory"
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type IdentityConfig struct {
	WebhookSecret    string
	WebhookTolerance time.Duration
	DedupeTTL        time.Duration
}

type AssetConfig struct {
	Driver        string // "local" or "s3"
	LocalRoot     string
	LocalURL      string
	S3Bucket      string
	S3Region      string
	S3Key         string
	S3Secret      string
	S3Endpoint    string
	S3URL         string
	UploadTimeout time.Duration
	Concurrency   int
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DSN returns the postgres connection string, preferring DATABASE_URL when set
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Schema)
}

// Addr returns the redis host:port, or "" when redis is not configured
func (c RedisConfig) Addr() string {
	if c.Host == "" {
		return ""
	}
	return c.Host + ":" + c.Port
}

// IsProduction reports whether the server runs with production settings
func (c ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

func Load() *Config {
	// Populate the process environment first so values from .env are visible
	// to libraries that read os.Getenv directly (the AWS SDK, for instance).
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env into environment: %v", err)
	}

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("MAX_UPLOAD_MB", 32)
	viper.SetDefault("STORE_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	viper.SetDefault("MONGO_DATABASE", "storefront")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("IDENTITY_WEBHOOK_TOLERANCE", "5m")
	viper.SetDefault("IDENTITY_DEDUPE_TTL", "24h")
	viper.SetDefault("ASSET_DRIVER", "local")
	viper.SetDefault("ASSET_LOCAL_ROOT", "uploads")
	viper.SetDefault("ASSET_LOCAL_URL", "http://localhost:8080/uploads")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("ASSET_UPLOAD_TIMEOUT", "30s")
	viper.SetDefault("ASSET_UPLOAD_CONCURRENCY", 4)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 60)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
			MaxUploadMB:    viper.GetInt64("MAX_UPLOAD_MB"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(viper.GetString("STORE_DRIVER")),
		},
		Database: DatabaseConfig{
			URL:      viper.GetString("DATABASE_URL"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Mongo: MongoConfig{
			URI:      viper.GetString("MONGO_URI"),
			Database: viper.GetString("MONGO_DATABASE"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		Identity: IdentityConfig{
			WebhookSecret:    viper.GetString("IDENTITY_WEBHOOK_SECRET"),
			WebhookTolerance: viper.GetDuration("IDENTITY_WEBHOOK_TOLERANCE"),
			DedupeTTL:        viper.GetDuration("IDENTITY_DEDUPE_TTL"),
		},
		Assets: AssetConfig{
			Driver:        strings.ToLower(viper.GetString("ASSET_DRIVER")),
			LocalRoot:     viper.GetString("ASSET_LOCAL_ROOT"),
			LocalURL:      viper.GetString("ASSET_LOCAL_URL"),
			S3Bucket:      viper.GetString("S3_BUCKET"),
			S3Region:      viper.GetString("S3_REGION"),
			S3Key:         viper.GetString("S3_KEY"),
			S3Secret:      viper.GetString("S3_SECRET"),
			S3Endpoint:    viper.GetString("S3_ENDPOINT"),
			S3URL:         viper.GetString("S3_URL"),
			UploadTimeout: viper.GetDuration("ASSET_UPLOAD_TIMEOUT"),
			Concurrency:   viper.GetInt("ASSET_UPLOAD_CONCURRENCY"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   viper.GetDuration("RATE_LIMIT_WINDOW"),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

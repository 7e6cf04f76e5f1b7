package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/fjod/bakery-storefront/internal/pricing"
)

type Config struct {
	HTTPPort        string
	GRPCPort        string
	Environment     string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	DefaultLanguage string

	Mongo    MongoConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Catalog  CatalogConfig
	Address  AddressConfig
	Orders   OrdersConfig
	Auth     AuthConfig
	Pricing  PricingConfig
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
}

type PostgresConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type KafkaConfig struct {
	Brokers []string
}

type CatalogConfig struct {
	APIURL     string
	SQLitePath string
}

type AddressConfig struct {
	APIURL   string
	CacheTTL time.Duration
}

type OrdersConfig struct {
	APIURL string
}

type AuthConfig struct {
	JWTSecret string
}

type PricingConfig struct {
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	Promos                pricing.PromoRegistry
}

func (p PricingConfig) Calculator() *pricing.Calculator {
	return pricing.NewCalculator(p.ShippingFee, p.FreeShippingThreshold, p.Promos)
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.SetConfigName(".env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("GRPC_PORT", "50060")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("DEFAULT_LANGUAGE", "vi")
	v.SetDefault("MONGO_DB_NAME", "storefront")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "storefront")
	v.SetDefault("POSTGRES_MIGRATIONS_DIR", "./internal/orders/migrations")
	v.SetDefault("CATALOG_SQLITE_PATH", "catalog.db")
	v.SetDefault("ADDRESS_API_URL", "https://provinces.open-api.vn/api")
	v.SetDefault("ADDRESS_CACHE_TTL", "24h")
	v.SetDefault("SHIPPING_FEE", "30000")
	v.SetDefault("FREE_SHIPPING_THRESHOLD", "500000")
	v.SetDefault("PROMO_CODES", "SAVE10:10,SAVE20:20")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTPPort:        v.GetString("HTTP_PORT"),
		GRPCPort:        v.GetString("GRPC_PORT"),
		Environment:     v.GetString("ENVIRONMENT"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		RequestTimeout:  v.GetDuration("REQUEST_TIMEOUT"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		DefaultLanguage: v.GetString("DEFAULT_LANGUAGE"),
		Mongo: MongoConfig{
			URI:      v.GetString("MONGO_URI"),
			Database: v.GetString("MONGO_DB_NAME"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		Postgres: PostgresConfig{
			Host:              v.GetString("POSTGRES_HOST"),
			Port:              v.GetInt("POSTGRES_PORT"),
			User:              v.GetString("POSTGRES_USER"),
			Password:          v.GetString("POSTGRES_PASSWORD"),
			DBName:            v.GetString("POSTGRES_DB"),
			MigrationsDirPath: v.GetString("POSTGRES_MIGRATIONS_DIR"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
		},
		Catalog: CatalogConfig{
			APIURL:     v.GetString("CATALOG_API_URL"),
			SQLitePath: v.GetString("CATALOG_SQLITE_PATH"),
		},
		Address: AddressConfig{
			APIURL:   v.GetString("ADDRESS_API_URL"),
			CacheTTL: v.GetDuration("ADDRESS_CACHE_TTL"),
		},
		Orders: OrdersConfig{
			APIURL: v.GetString("ORDERS_API_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnvOrViper(v, "JWT_SECRET", ""),
		},
	}

	var err error
	if cfg.Pricing.ShippingFee, err = decimal.NewFromString(v.GetString("SHIPPING_FEE")); err != nil {
		return nil, fmt.Errorf("SHIPPING_FEE: %w", err)
	}
	if cfg.Pricing.FreeShippingThreshold, err = decimal.NewFromString(v.GetString("FREE_SHIPPING_THRESHOLD")); err != nil {
		return nil, fmt.Errorf("FREE_SHIPPING_THRESHOLD: %w", err)
	}
	if cfg.Pricing.Promos, err = pricing.ParsePromos(v.GetString("PROMO_CODES")); err != nil {
		return nil, fmt.Errorf("PROMO_CODES: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Pricing.ShippingFee.IsNegative() {
		return fmt.Errorf("SHIPPING_FEE must not be negative")
	}
	if c.Pricing.FreeShippingThreshold.IsNegative() {
		return fmt.Errorf("FREE_SHIPPING_THRESHOLD must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.Environment == "production" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

func getEnvOrViper(v *viper.Viper, key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

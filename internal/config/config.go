package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cart      CartConfig
	Inventory InventoryConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	Schema      string
	LockTimeout time.Duration
}

// DSN returns a pgx connection string
func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Database +
		"?sslmode=disable&search_path=" + d.Schema
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type CartConfig struct {
	TTL        time.Duration
	CookieName string
}

type InventoryConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type RateLimitConfig struct {
	CheckoutRequests int
	CheckoutWindow   time.Duration
}

// IsDevelopment reports whether the server runs outside production
func (c *Config) IsDevelopment() bool {
	return c.Server.Env != "production"
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("DB_LOCK_TIMEOUT", "5s")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CART_TTL", "72h")
	viper.SetDefault("CART_COOKIE_NAME", "cart_session")
	viper.SetDefault("INVENTORY_API_BASE", "http://127.0.0.1:3001")
	viper.SetDefault("INVENTORY_API_KEY", "")
	viper.SetDefault("INVENTORY_TIMEOUT", "10s")
	viper.SetDefault("RATE_LIMIT_CHECKOUT_REQUESTS", 10)
	viper.SetDefault("RATE_LIMIT_CHECKOUT_WINDOW", "1m")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			LogLevel:       viper.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:        viper.GetString("DB_HOST"),
			Port:        viper.GetString("DB_PORT"),
			User:        viper.GetString("DB_USER"),
			Password:    viper.GetString("DB_PASSWORD"),
			Database:    viper.GetString("DB_DATABASE"),
			Schema:      viper.GetString("DB_SCHEMA"),
			LockTimeout: viper.GetDuration("DB_LOCK_TIMEOUT"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Cart: CartConfig{
			TTL:        viper.GetDuration("CART_TTL"),
			CookieName: viper.GetString("CART_COOKIE_NAME"),
		},
		Inventory: InventoryConfig{
			BaseURL: strings.TrimRight(viper.GetString("INVENTORY_API_BASE"), "/"),
			APIKey:  viper.GetString("INVENTORY_API_KEY"),
			Timeout: viper.GetDuration("INVENTORY_TIMEOUT"),
		},
		RateLimit: RateLimitConfig{
			CheckoutRequests: viper.GetInt("RATE_LIMIT_CHECKOUT_REQUESTS"),
			CheckoutWindow:   viper.GetDuration("RATE_LIMIT_CHECKOUT_WINDOW"),
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

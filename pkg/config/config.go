package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime setting of the API process.
type Config struct {
	AppName string
	Port    string

	DBDriver   string
	DBURL      string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBTimezone string

	JWTSecret string
	JWTTTL    time.Duration

	RedisURL string

	BlobURL           string
	BlobPublicBaseURL string

	LogLevel       string
	LogDevelopment bool

	CompletionBonus int

	AdminEmail    string
	AdminPassword string
}

// Load reads an optional .env file, then environment variables with defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, relying on system env")
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		AppName:           v.GetString("APP_NAME"),
		Port:              v.GetString("PORT"),
		DBDriver:          strings.ToLower(v.GetString("DB_DRIVER")),
		DBURL:             v.GetString("DATABASE_URL"),
		DBHost:            v.GetString("DB_HOST"),
		DBUser:            v.GetString("DB_USER"),
		DBPassword:        v.GetString("DB_PASSWORD"),
		DBName:            v.GetString("DB_NAME"),
		DBPort:            v.GetString("DB_PORT"),
		DBTimezone:        v.GetString("DB_TIMEZONE"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTTTL:            v.GetDuration("JWT_TTL"),
		RedisURL:          v.GetString("REDIS_URL"),
		BlobURL:           v.GetString("BLOB_URL"),
		BlobPublicBaseURL: v.GetString("BLOB_PUBLIC_BASE_URL"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogDevelopment:    v.GetBool("LOG_DEVELOPMENT"),
		CompletionBonus:   v.GetInt("REWARD_COMPLETION_BONUS"),
		AdminEmail:        v.GetString("ADMIN_EMAIL"),
		AdminPassword:     v.GetString("ADMIN_PASSWORD"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "Loyalty Store API v1.0")
	v.SetDefault("PORT", "3000")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("JWT_SECRET", "your-super-secret-key-change-in-production")
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("BLOB_URL", "mem://")
	v.SetDefault("BLOB_PUBLIC_BASE_URL", "/uploads")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REWARD_COMPLETION_BONUS", 15)
	v.SetDefault("ADMIN_EMAIL", "admin@example.com")
	v.SetDefault("ADMIN_PASSWORD", "admin123")
}

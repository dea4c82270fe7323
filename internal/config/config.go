package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Predictor PredictorConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	URL  string
	Host string
	Port int
	User string
	Pass string
	Name string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	Origins []string
}

type RateLimitConfig struct {
	Requests int
	Window   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// PredictorConfig holds the Consumption Cycle Predictor's own tuning knobs.
// None of these change the learning math; they govern when the engine
// runs and how long it waits, not what it computes.
type PredictorConfig struct {
	// ReconcileHourUTC is the fixed UTC hour the Weekly Anniversary
	// Reconciler sweeps at.
	ReconcileHourUTC int
	// EventDeadlineMS bounds a single submit-event call.
	EventDeadlineMS int
	// StaleWindowHours is the out-of-order tolerance window.
	StaleWindowHours int
	// IdempotencyTTLHours controls how long accepted idempotency keys are
	// remembered before the dedup table may forget them.
	IdempotencyTTLHours int
}

// Load initializes and loads configuration using Viper
func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./server")
	viper.AddConfigPath("../")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: .env file not found, using environment variables and defaults")
		} else {
			log.Printf("Error reading config file: %v", err)
		}
	} else {
		log.Printf("Using config file: %s", viper.ConfigFileUsed())
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("PORT"),
			Host: viper.GetString("HOST"),
		},
		Database: DatabaseConfig{
			URL:  viper.GetString("DATABASE_URL"),
			Host: viper.GetString("DB_HOST"),
			Port: viper.GetInt("DB_PORT"),
			User: viper.GetString("DB_USER"),
			Pass: viper.GetString("DB_PASSWORD"),
			Name: viper.GetString("DB_NAME"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetInt("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		CORS: CORSConfig{
			Origins: viper.GetStringSlice("CORS_ORIGINS"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   viper.GetString("RATE_LIMIT_WINDOW"),
		},
		Logging: LoggingConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
		Predictor: PredictorConfig{
			ReconcileHourUTC:    viper.GetInt("PREDICTOR_RECONCILE_HOUR_UTC"),
			EventDeadlineMS:     viper.GetInt("PREDICTOR_EVENT_DEADLINE_MS"),
			StaleWindowHours:    viper.GetInt("PREDICTOR_STALE_WINDOW_HOURS"),
			IdempotencyTTLHours: viper.GetInt("PREDICTOR_IDEMPOTENCY_TTL_HOURS"),
		},
	}
}

// setDefaults sets default values for all configuration options
func setDefaults() {
	// Server Configuration
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("HOST", "localhost")
	viper.SetDefault("GIN_MODE", "debug")

	// Database Configuration
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "pantry_user")
	viper.SetDefault("DB_PASSWORD", "pantry_password")
	viper.SetDefault("DB_NAME", "pantry_predictor")

	// Redis Configuration
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)

	// CORS Configuration
	viper.SetDefault("CORS_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"})

	// Rate Limiting
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")

	// Logging
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")

	// Predictor
	viper.SetDefault("PREDICTOR_RECONCILE_HOUR_UTC", 0)
	viper.SetDefault("PREDICTOR_EVENT_DEADLINE_MS", 2000)
	viper.SetDefault("PREDICTOR_STALE_WINDOW_HOURS", 24)
	viper.SetDefault("PREDICTOR_IDEMPOTENCY_TTL_HOURS", 72)
}

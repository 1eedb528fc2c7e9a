package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string
	LogToDB     bool

	DefaultTemplateCode string

	DirectoryDriver string // mongo, postgres or mysql
	DirectoryDSN    string

	RedisURL      string // empty keeps the grant snapshot cache in process
	GrantCacheTTL time.Duration

	SweepSchedule     string // override expiry sweep
	ReconcileSchedule string // ledger/projection reconciliation
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:                getEnv("PORT", "8080"),
		JWTSecret:           getEnv("JWT_SECRET", "secret"),
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		DBName:              getEnv("DB_NAME", "go-workflow"),
		SkipAuth:            getEnv("SKIP_AUTH", "false") == "true",
		Environment:         getEnv("ENVIRONMENT", "development"),
		AppId:               getEnv("APP_ID", "go-workflow"),
		LogToDB:             getEnv("LOG_TO_DB", "false") == "true",
		DefaultTemplateCode: getEnv("DEFAULT_TEMPLATE_CODE", "PROPERTY_ACQUISITION"),
		DirectoryDriver:     getEnv("DIRECTORY_DRIVER", "mongo"),
		DirectoryDSN:        getEnv("DIRECTORY_DSN", ""),
		RedisURL:            getEnv("REDIS_URL", ""),
		GrantCacheTTL:       getDuration("GRANT_CACHE_TTL", 30*time.Second),
		SweepSchedule:       getEnv("SWEEP_SCHEDULE", "@every 5m"),
		ReconcileSchedule:   getEnv("RECONCILE_SCHEDULE", "@hourly"),
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("Invalid duration for %s: %q, using %s", key, raw, fallback)
	return fallback
}

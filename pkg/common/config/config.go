package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	RateLimitRPS   int
	RateLimitBurst int

	// Prediction service
	PredictionServiceURL   string
	PredictionTimeout      time.Duration
	PredictionTokenURL     string
	PredictionClientID     string
	PredictionClientSecret string
	PredictionScopes       []string

	// Intake -> results handoff
	HandoffBackend string
	HandoffTTL     time.Duration
	VisitTTL       time.Duration
	LoadingGrace   time.Duration
	CookieSecure   bool

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers  []string
	EventsEnabled bool
	EventsTopic   string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	AuditLogEnabled  bool

	CatalogPath  string
	DLPRulesPath string

	// Local scoring service
	ScoringPort         string
	ScoringArtifactPath string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "3000"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 64*1024)),
		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 40),

		PredictionServiceURL:   getEnv("PREDICTION_SERVICE_URL", "http://localhost:5000"),
		PredictionTimeout:      getDuration("PREDICTION_TIMEOUT", 0),
		PredictionTokenURL:     getEnv("PREDICTION_TOKEN_URL", ""),
		PredictionClientID:     getEnv("PREDICTION_CLIENT_ID", ""),
		PredictionClientSecret: getEnv("PREDICTION_CLIENT_SECRET", ""),
		PredictionScopes:       getStringSliceEnv("PREDICTION_SCOPES", nil),

		HandoffBackend: getEnv("HANDOFF_BACKEND", "memory"),
		HandoffTTL:     getDuration("HANDOFF_TTL", 2*time.Minute),
		VisitTTL:       getDuration("VISIT_TTL", 10*time.Minute),
		LoadingGrace:   getDuration("LOADING_GRACE", 300*time.Millisecond),
		CookieSecure:   getBoolEnv("COOKIE_SECURE", false),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:  getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		EventsEnabled: getBoolEnv("EVENTS_ENABLED", false),
		EventsTopic:   getEnv("EVENTS_TOPIC", "prediction.outcomes"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "hrp"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "hrp"),
		PostgresDB:       getEnv("POSTGRES_DB", "hrp"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		AuditLogEnabled:  getBoolEnv("AUDIT_LOG_ENABLED", false),

		CatalogPath:  getEnv("CATALOG_PATH", ""),
		DLPRulesPath: getEnv("DLP_RULES_PATH", ""),

		ScoringPort:         getEnv("SCORING_PORT", "5000"),
		ScoringArtifactPath: getEnv("SCORING_ARTIFACT_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getStringSliceEnv splits a comma separated value, dropping empty entries.
func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

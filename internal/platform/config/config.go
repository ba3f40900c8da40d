package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSslMode   string
	DBConnStr   string
	AutoMigrate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NATSURL       string
	NATSNKeySeed  string
	EventsEnabled bool

	JudgeRequestQueue   string
	JudgeResultQueue    string
	JudgeLockPrefix     string
	JudgeLockTTLSeconds int
	JudgeWebhookSecret  string
	JudgeWebhookRPS     float64
	JudgeWebhookBurst   int
	JudgeMaxAttempts    int

	ScoringRulesFile string
	LogLevel         string
	MetricsEnabled   bool
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:     getEnv("API_PORT", "8080"),
		JWTKey:      []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:      time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "user"),
		DBPassword:  getEnv("DB_PASSWORD", "password"),
		DBName:      getEnv("DB_NAME", "tle_arena"),
		DBSslMode:   getEnv("DB_SSLMODE", "disable"),
		AutoMigrate: getEnvAsBool("AUTO_MIGRATE", true),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		NATSURL:       getEnv("NATS_URL", "nats://localhost:4222"),
		NATSNKeySeed:  getEnv("NATS_NKEY_SEED", ""),
		EventsEnabled: getEnvAsBool("EVENTS_ENABLED", true),

		JudgeRequestQueue:   getEnv("JUDGE_REQUEST_QUEUE", "judge_requests"),
		JudgeResultQueue:    getEnv("JUDGE_RESULT_QUEUE", "judge_results"),
		JudgeLockPrefix:     getEnv("JUDGE_LOCK_PREFIX", "lock:judge:"),
		JudgeLockTTLSeconds: getEnvAsInt("JUDGE_LOCK_TTL_SECONDS", 30),
		JudgeWebhookSecret:  getEnv("JUDGE_WEBHOOK_SECRET", ""),
		JudgeWebhookRPS:     getEnvAsFloat("JUDGE_WEBHOOK_RPS", 50),
		JudgeWebhookBurst:   getEnvAsInt("JUDGE_WEBHOOK_BURST", 100),
		JudgeMaxAttempts:    getEnvAsInt("JUDGE_RESULT_MAX_ATTEMPTS", 5),

		ScoringRulesFile: getEnv("SCORING_RULES_FILE", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MetricsEnabled:   getEnvAsBool("METRICS_ENABLED", true),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

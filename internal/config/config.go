package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Inbound processing
	UseMemoryQueue  bool
	WorkerCount     int
	InboundQueueURL string
	JobTimeout      time.Duration

	// Messaging channel (Graph-style cloud messaging API)
	MessagingAPIBaseURL  string
	MessagingAccessToken string
	MessagingPhoneID     string
	WebhookVerifyToken   string

	// AI oracle
	BedrockModelID string
	GeminiAPIKey   string
	GeminiModelID  string
	OracleTimeout  time.Duration

	// Calendar / slot allocation
	GoogleCalendarID   string
	BusinessTimezone   string
	BusinessHoursStart int
	BusinessHoursEnd   int
	SlotDurationMins   int
	SlotBufferMins     int
	SlotHorizonDays    int

	// Downstream automation webhook
	AutomationWebhookURL string
	AutomationTimeout    time.Duration

	// Background sweeps
	ReminderSweepInterval time.Duration
	CleanupInterval       time.Duration
	IdleCutoff            time.Duration
	AnalyticsInterval     time.Duration

	// Storage
	ConversationsTable string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool
	DedupeTTL          time.Duration

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	AdminJWTSecret string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		UseMemoryQueue:  getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 2),
		InboundQueueURL: getEnv("INBOUND_QUEUE_URL", ""),
		JobTimeout:      getEnvAsDuration("JOB_TIMEOUT", 45*time.Second),

		MessagingAPIBaseURL:  getEnv("MESSAGING_API_BASE_URL", "https://graph.facebook.com/v19.0"),
		MessagingAccessToken: getEnv("MESSAGING_ACCESS_TOKEN", ""),
		MessagingPhoneID:     getEnv("MESSAGING_PHONE_ID", ""),
		WebhookVerifyToken:   getEnv("WEBHOOK_VERIFY_TOKEN", ""),

		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-1.5-flash"),
		OracleTimeout:  getEnvAsDuration("ORACLE_TIMEOUT", 20*time.Second),

		GoogleCalendarID:   getEnv("GOOGLE_CALENDAR_ID", "primary"),
		BusinessTimezone:   getEnv("BUSINESS_TIMEZONE", "America/Sao_Paulo"),
		BusinessHoursStart: getEnvAsInt("BUSINESS_HOURS_START", 9),
		BusinessHoursEnd:   getEnvAsInt("BUSINESS_HOURS_END", 18),
		SlotDurationMins:   getEnvAsInt("SLOT_DURATION_MINS", 30),
		SlotBufferMins:     getEnvAsInt("SLOT_BUFFER_MINS", 15),
		SlotHorizonDays:    getEnvAsInt("SLOT_HORIZON_DAYS", 7),

		AutomationWebhookURL: getEnv("AUTOMATION_WEBHOOK_URL", ""),
		AutomationTimeout:    getEnvAsDuration("AUTOMATION_TIMEOUT", 10*time.Second),

		ReminderSweepInterval: getEnvAsDuration("REMINDER_SWEEP_INTERVAL", 10*time.Minute),
		CleanupInterval:       getEnvAsDuration("CLEANUP_INTERVAL", time.Hour),
		IdleCutoff:            getEnvAsDuration("IDLE_CUTOFF", 24*time.Hour),
		AnalyticsInterval:     getEnvAsDuration("ANALYTICS_INTERVAL", 15*time.Minute),

		ConversationsTable: getEnv("CONVERSATIONS_TABLE", "conversations"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		DedupeTTL:          getEnvAsDuration("DEDUPE_TTL", 24*time.Hour),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

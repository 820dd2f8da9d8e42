package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	LayoutFile            string
	AverageServiceMinutes int
	LabelFormat           string
	DisplayNextLimit      int

	JWTSecret         string
	AdminUsername     string
	AdminPasswordHash string
	AuthDisabled      bool
	SessionTTL        time.Duration

	RateLimitPerMinute      int
	RateLimitBurst          int
	KioskRateLimitPerMinute int
	KioskRateLimitBurst     int

	DatabaseURL       string
	RedisAddr         string
	RedisChannel      string
	NATSURL           string
	NATSSubjectPrefix string
	KafkaBrokers      string
	KafkaTopic        string
	EventBufferSize   int

	Announcer               string
	AnnouncerWebhookURL     string
	AnnouncerWebhookToken   string
	AnnouncerWordsPerMinute int
	AnnouncerQueueSize      int

	StatsSchedule string

	OTelEndpoint string
	OTelInsecure bool
}

// Load reads .env if present, then the process environment.
func Load() Config {
	_ = godotenv.Load(".env")

	return Config{
		Port:                  readString("PORT", "8080"),
		LayoutFile:            os.Getenv("LAYOUT_FILE"),
		AverageServiceMinutes: readInt("AVERAGE_SERVICE_MINUTES", 5),
		LabelFormat:           readString("LABEL_FORMAT", "{dept}-{number:03d}"),
		DisplayNextLimit:      readInt("DISPLAY_NEXT_LIMIT", 5),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AdminUsername:     readString("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		AuthDisabled:      readBool("AUTH_DISABLED", false),
		SessionTTL:        readDurationMinutes("SESSION_TTL_MINUTES", 480),

		RateLimitPerMinute:      readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:          readInt("RATE_LIMIT_BURST", 30),
		KioskRateLimitPerMinute: readInt("KIOSK_RATE_LIMIT_PER_MIN", 30),
		KioskRateLimitBurst:     readInt("KIOSK_RATE_LIMIT_BURST", 10),

		DatabaseURL:       os.Getenv("DB_DSN"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisChannel:      readString("REDIS_CHANNEL", "token-queue.events"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: readString("NATS_SUBJECT_PREFIX", "queue"),
		KafkaBrokers:      os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:        readString("KAFKA_TOPIC", "token-queue.events"),
		EventBufferSize:   readInt("EVENT_BUFFER_SIZE", 256),

		Announcer:               readString("ANNOUNCER", "log"),
		AnnouncerWebhookURL:     os.Getenv("ANNOUNCER_WEBHOOK_URL"),
		AnnouncerWebhookToken:   os.Getenv("ANNOUNCER_WEBHOOK_TOKEN"),
		AnnouncerWordsPerMinute: readInt("ANNOUNCER_WORDS_PER_MINUTE", 150),
		AnnouncerQueueSize:      readInt("ANNOUNCER_QUEUE_SIZE", 16),

		StatsSchedule: readString("STATS_SCHEDULE", "@every 1m"),

		OTelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelInsecure: readBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

func readString(key, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	return raw
}

func readDurationMinutes(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Minute
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

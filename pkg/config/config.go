package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	HTTP     HTTPConfig
	Tracker  TrackerConfig
	Alert    AlertConfig
	Ingest   IngestConfig
	Report   ReportConfig
	Line     LineConfig
	Weather  WeatherConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers       []string
	TopicSamples  string
	NumPartitions int
	BatchSize     int
	FlushInterval time.Duration
}

type HTTPConfig struct {
	Port int
}

type TrackerConfig struct {
	StaleAfter time.Duration
}

type AlertConfig struct {
	AdvisoryAt           int
	WarningAt            int
	CriticalAt           int
	NotifyDeescalation   bool
	NotifyMaxAttempts    int
	NotifyInitialBackoff time.Duration
}

type IngestConfig struct {
	SourceURL    string
	PollInterval time.Duration
	PollTimeout  time.Duration
	Synthetic    bool
	Capacity     int
}

type ReportConfig struct {
	DailyTime     string
	WarningTime   string
	WeekendOnly   bool
	RetentionDays int
}

type LineConfig struct {
	ChannelAccessToken string
	BroadcastURL       string
	Timeout            time.Duration
}

type WeatherConfig struct {
	APIKey  string
	Lat     float64
	Lon     float64
	Timeout time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "crowd_user"),
			Password: getEnv("DB_PASSWORD", "crowd_pass"),
			DBName:   getEnv("DB_NAME", "crowd_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicSamples:  getEnv("KAFKA_TOPIC_SAMPLES", "crowd.samples.raw"),
			NumPartitions: getEnvAsInt("KAFKA_NUM_PARTITIONS", 3),
			BatchSize:     getEnvAsInt("KAFKA_BATCH_SIZE", 100),
			FlushInterval: getEnvAsDuration("KAFKA_FLUSH_INTERVAL", 5*time.Second),
		},
		HTTP: HTTPConfig{
			Port: getEnvAsInt("HTTP_PORT", 8080),
		},
		Tracker: TrackerConfig{
			StaleAfter: getEnvAsDuration("TRACKER_STALE_AFTER", 10*time.Minute),
		},
		Alert: AlertConfig{
			AdvisoryAt:           getEnvAsInt("ALERT_ADVISORY_AT", 100),
			WarningAt:            getEnvAsInt("ALERT_WARNING_AT", 300),
			CriticalAt:           getEnvAsInt("ALERT_CRITICAL_AT", 600),
			NotifyDeescalation:   getEnvAsBool("ALERT_NOTIFY_DEESCALATION", false),
			NotifyMaxAttempts:    getEnvAsInt("ALERT_NOTIFY_MAX_ATTEMPTS", 3),
			NotifyInitialBackoff: getEnvAsDuration("ALERT_NOTIFY_BACKOFF", time.Second),
		},
		Ingest: IngestConfig{
			SourceURL:    getEnv("COUNT_SOURCE_URL", ""),
			PollInterval: getEnvAsDuration("COUNT_POLL_INTERVAL", time.Minute),
			PollTimeout:  getEnvAsDuration("COUNT_POLL_TIMEOUT", 10*time.Second),
			Synthetic:    getEnvAsBool("SYNTHETIC_SOURCE", false),
			Capacity:     getEnvAsInt("VENUE_CAPACITY", 1900),
		},
		Report: ReportConfig{
			DailyTime:     getEnv("REPORT_TIME", "23:00"),
			WarningTime:   getEnv("WARNING_TIME", "14:00"),
			WeekendOnly:   getEnvAsBool("REPORT_WEEKEND_ONLY", true),
			RetentionDays: getEnvAsInt("RETENTION_DAYS", 30),
		},
		Line: LineConfig{
			ChannelAccessToken: getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
			BroadcastURL:       getEnv("LINE_BROADCAST_URL", "https://api.line.me/v2/bot/message/broadcast"),
			Timeout:            getEnvAsDuration("LINE_TIMEOUT", 10*time.Second),
		},
		Weather: WeatherConfig{
			APIKey:  getEnv("OPENWEATHER_API_KEY", ""),
			Lat:     getEnvAsFloat("VENUE_LAT", 18.2773),
			Lon:     getEnvAsFloat("VENUE_LON", 99.5076),
			Timeout: getEnvAsDuration("WEATHER_TIMEOUT", 10*time.Second),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

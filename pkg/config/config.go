package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Arrangement ArrangementConfig
	LogStorage  LogStorageConfig
	Delivery    DeliveryConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level     string
	Format    string
	SentryDSN string
}

// ArrangementConfig tunes the arrangement screen and engine.
type ArrangementConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	MaxPoolSize  int
	BatchWorkers int
}

// LogStorageConfig controls where converted LOG files live and how download
// links are signed.
type LogStorageConfig struct {
	Dir             string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// DeliveryConfig selects the playout transport for converted LOGs.
type DeliveryConfig struct {
	Transport      string
	Workers        int
	Retries        int
	RetryDelay     time.Duration
	BackoffMaxTime time.Duration

	NATSURL           string
	NATSStream        string
	NATSSubjectPrefix string
	NATSMaxReconnects int
	NATSReconnectWait time.Duration

	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTTopicPrefix string
	MQTTQoS         int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:     v.GetString("LOG_LEVEL"),
		Format:    v.GetString("LOG_FORMAT"),
		SentryDSN: v.GetString("SENTRY_DSN"),
	}

	cfg.Arrangement = ArrangementConfig{
		CacheEnabled: v.GetBool("ARRANGEMENT_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("ARRANGEMENT_CACHE_TTL"), 2*time.Minute),
		MaxPoolSize:  v.GetInt("ARRANGEMENT_MAX_POOL_SIZE"),
		BatchWorkers: v.GetInt("ARRANGEMENT_BATCH_WORKERS"),
	}

	cfg.LogStorage = LogStorageConfig{
		Dir:             v.GetString("LOG_STORAGE_DIR"),
		SignedURLSecret: v.GetString("LOG_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("LOG_SIGNED_URL_TTL"), 24*time.Hour),
	}

	cfg.Delivery = DeliveryConfig{
		Transport:         strings.ToLower(v.GetString("LOG_DELIVERY_TRANSPORT")),
		Workers:           v.GetInt("LOG_DELIVERY_WORKERS"),
		Retries:           v.GetInt("LOG_DELIVERY_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("LOG_DELIVERY_RETRY_DELAY"), 30*time.Second),
		BackoffMaxTime:    parseDuration(v.GetString("LOG_DELIVERY_BACKOFF_MAX"), 2*time.Minute),
		NATSURL:           v.GetString("NATS_URL"),
		NATSStream:        v.GetString("NATS_STREAM"),
		NATSSubjectPrefix: v.GetString("NATS_SUBJECT_PREFIX"),
		NATSMaxReconnects: v.GetInt("NATS_MAX_RECONNECTS"),
		NATSReconnectWait: parseDuration(v.GetString("NATS_RECONNECT_WAIT"), 2*time.Second),
		MQTTBrokerURL:     v.GetString("MQTT_BROKER_URL"),
		MQTTClientID:      v.GetString("MQTT_CLIENT_ID"),
		MQTTTopicPrefix:   v.GetString("MQTT_TOPIC_PREFIX"),
		MQTTQoS:           v.GetInt("MQTT_QOS"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ad_scheduler")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "ad-scheduler")
	v.SetDefault("JWT_EXPIRATION", "12h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SENTRY_DSN", "")

	v.SetDefault("ARRANGEMENT_CACHE_ENABLED", true)
	v.SetDefault("ARRANGEMENT_CACHE_TTL", "2m")
	v.SetDefault("ARRANGEMENT_MAX_POOL_SIZE", 2000)
	v.SetDefault("ARRANGEMENT_BATCH_WORKERS", 4)

	v.SetDefault("LOG_STORAGE_DIR", "./logs")
	v.SetDefault("LOG_SIGNED_URL_SECRET", "dev_log_secret")
	v.SetDefault("LOG_SIGNED_URL_TTL", "24h")

	v.SetDefault("LOG_DELIVERY_TRANSPORT", "none")
	v.SetDefault("LOG_DELIVERY_WORKERS", 2)
	v.SetDefault("LOG_DELIVERY_RETRIES", 3)
	v.SetDefault("LOG_DELIVERY_RETRY_DELAY", "30s")
	v.SetDefault("LOG_DELIVERY_BACKOFF_MAX", "2m")
	v.SetDefault("NATS_URL", "nats://localhost:4222")
	v.SetDefault("NATS_STREAM", "BROADCAST_LOGS")
	v.SetDefault("NATS_SUBJECT_PREFIX", "broadcast.logs")
	v.SetDefault("NATS_MAX_RECONNECTS", 10)
	v.SetDefault("NATS_RECONNECT_WAIT", "2s")
	v.SetDefault("MQTT_BROKER_URL", "tcp://localhost:1883")
	v.SetDefault("MQTT_CLIENT_ID", "ad-scheduler")
	v.SetDefault("MQTT_TOPIC_PREFIX", "broadcast/logs")
	v.SetDefault("MQTT_QOS", 1)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

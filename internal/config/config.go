package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Shortener ShortenerConfig
	Security  SecurityConfig
	OTel      OTelConfig
}

type AppConfig struct {
	Name     string
	Version  string
	Env      string
	LogLevel string
}

type ServerConfig struct {
	Port string
	Host string
}

type StorageConfig struct {
	// Backend selects the links repository: "postgres" or "mongo".
	Backend     string
	PostgresDSN string
	MongoURI    string
	MongoDB     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	// OutboxEnabled turns on click fan-out through the Postgres outbox.
	OutboxEnabled bool
}

type ShortenerConfig struct {
	BaseURL        string
	CodeLength     int
	RedirectStatus int // 301 or 302
}

type SecurityConfig struct {
	APIKeys             []string
	CreateRatePerMinute int
}

type OTelConfig struct {
	Enabled  bool
	Endpoint string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	cfg := &Config{
		App: AppConfig{
			Name:     GetEnv("APP_NAME", "tinylink"),
			Version:  GetEnv("APP_VERSION", "0.1.0"),
			Env:      GetEnv("APP_ENV", "development"),
			LogLevel: GetEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port: GetEnv("APP_PORT", "8080"),
			Host: GetEnv("APP_HOST", "localhost"),
		},
		Storage: StorageConfig{
			Backend:     GetEnv("DB_BACKEND", BackendPostgres),
			PostgresDSN: GetEnv("POSTGRES_DSN", DefaultPostgresDSN()),
			MongoURI:    GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
			MongoDB:     GetEnv("MONGODB_DATABASE", "tinylink"),
		},
		Redis: RedisConfig{
			Addr:     GetEnv("REDIS_ADDR", "localhost:6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:       SplitCSV(GetEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:         GetEnv("KAFKA_CLICKS_TOPIC", "tinylink.clicks"),
			OutboxEnabled: GetEnvBool("CLICK_OUTBOX_ENABLED", false),
		},
		Shortener: ShortenerConfig{
			BaseURL:        GetEnv("SHORTENER_BASE_URL", "http://localhost:8080"),
			CodeLength:     GetEnvInt("CODE_LENGTH", 6),
			RedirectStatus: GetEnvInt("REDIRECT_STATUS", 302),
		},
		Security: SecurityConfig{
			APIKeys:             SplitCSV(GetEnv("API_KEYS", "")),
			CreateRatePerMinute: GetEnvInt("CREATE_RATE_PER_MINUTE", 60),
		},
		OTel: OTelConfig{
			Enabled:  GetEnvBool("OTEL_ENABLED", false),
			Endpoint: GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		},
	}

	if cfg.Storage.Backend != BackendPostgres && cfg.Storage.Backend != BackendMongo {
		return nil, fmt.Errorf("DB_BACKEND must be %q or %q (got %q)", BackendPostgres, BackendMongo, cfg.Storage.Backend)
	}
	if cfg.Shortener.RedirectStatus != 301 && cfg.Shortener.RedirectStatus != 302 {
		return nil, fmt.Errorf("REDIRECT_STATUS must be 301 or 302 (got %d)", cfg.Shortener.RedirectStatus)
	}
	if cfg.Shortener.CodeLength < 4 || cfg.Shortener.CodeLength > 32 {
		return nil, fmt.Errorf("CODE_LENGTH must be between 4 and 32 (got %d)", cfg.Shortener.CodeLength)
	}
	if cfg.Kafka.OutboxEnabled && cfg.Storage.Backend != BackendPostgres {
		return nil, fmt.Errorf("CLICK_OUTBOX_ENABLED requires the postgres backend")
	}

	return cfg, nil
}

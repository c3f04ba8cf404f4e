package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

var AppEnv Config

type Config struct {
	Port              string        `envconfig:"PORT" default:"8080"`
	MongoURI          string        `envconfig:"MONGO_URI" required:"true"`
	DBName            string        `envconfig:"DB_NAME" default:"b2bmarket"`
	MongoTransactions bool          `envconfig:"MONGO_TRANSACTIONS" default:"true"`
	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenTTL    time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"20m"`
	RefreshTokenTTL   time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	CORSOrigins   []string `envconfig:"CORS_ORIGINS" default:"*"`
	UploadDir     string   `envconfig:"UPLOAD_DIR" default:"./public/uploads"`
	PublicBaseURL string   `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:3000"`

	RedisURL         string        `envconfig:"REDIS_URL"`
	CategoryCacheTTL time.Duration `envconfig:"CATEGORY_CACHE_TTL" default:"10m"`

	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic     string   `envconfig:"KAFKA_TOPIC" default:"marketplace.events"`
	KafkaGroup     string   `envconfig:"KAFKA_GROUP" default:"marketplace-notifier"`
	OutboxSchedule string   `envconfig:"OUTBOX_SCHEDULE" default:"@every 5s"`
	OutboxBatch    int64    `envconfig:"OUTBOX_BATCH" default:"50"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	MailFrom     string `envconfig:"MAIL_FROM" default:"no-reply@b2bmarket.local"`
	AdminEmail   string `envconfig:"ADMIN_EMAIL"`

	PaymentGatewaySecret string `envconfig:"PAYMENT_GATEWAY_SECRET"`

	GSTAPIURL                string `envconfig:"GST_API_URL"`
	GSTAPIKey                string `envconfig:"GST_API_KEY"`
	GSTRatePerMinute         int    `envconfig:"GST_RATE_PER_MINUTE" default:"30"`
	RequirementRatePerMinute int    `envconfig:"REQUIREMENT_RATE_PER_MINUTE" default:"10"`
}

// Load reads .env (when present) and decodes the environment into AppEnv.
func Load() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg(".env not loaded")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	AppEnv = cfg
	return nil
}

func (c *Config) validate() error {
	c.MongoURI = strings.TrimSpace(c.MongoURI)
	c.JWTSecret = strings.TrimSpace(c.JWTSecret)
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token ttl values must be positive")
	}
	if c.OutboxBatch <= 0 {
		c.OutboxBatch = 50
	}
	c.KafkaBrokers = compact(c.KafkaBrokers)
	c.CORSOrigins = compact(c.CORSOrigins)
	return nil
}

// KafkaEnabled reports whether events leave the process through Kafka.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// MailEnabled reports whether an SMTP relay is configured.
func (c Config) MailEnabled() bool {
	return strings.TrimSpace(c.SMTPHost) != ""
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Gateway  GatewayConfig
	Email    EmailConfig
	Verify   VerifyConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	LeadRegistered      string
	PaymentSucceeded    string
	PaymentFailed       string
	SeatsExceeded       string
	CertificateEligible string
}

type GatewayConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	QueryTimeout  time.Duration
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromAddress  string
	Enabled      bool
}

// VerifyConfig bounds the pull path: how long a gateway status query may
// take, how the client is told to poll, and the retry envelope for transient
// store errors.
type VerifyConfig struct {
	PollDelay       time.Duration
	MaxPollAttempts int
	RetryBase       time.Duration
	RetryAttempts   int
}

type AdminConfig struct {
	OIDCIssuer string
	Port       string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8086"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "leadflow_user"),
			Password:     getEnv("DB_PASSWORD", "leadflow_pass"),
			Database:     getEnv("DB_NAME", "leadflow"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				LeadRegistered:      getEnv("KAFKA_TOPIC_LEAD_REGISTERED", "leadflow.lead.registered"),
				PaymentSucceeded:    getEnv("KAFKA_TOPIC_PAYMENT_SUCCEEDED", "leadflow.payment.succeeded"),
				PaymentFailed:       getEnv("KAFKA_TOPIC_PAYMENT_FAILED", "leadflow.payment.failed"),
				SeatsExceeded:       getEnv("KAFKA_TOPIC_SEATS_EXCEEDED", "leadflow.seats.exceeded"),
				CertificateEligible: getEnv("KAFKA_TOPIC_CERTIFICATE", "leadflow.certificate.eligible"),
			},
		},
		Gateway: GatewayConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:    getEnv("CHECKOUT_SUCCESS_URL", "https://leadflow.example.com/payment/return"),
			CancelURL:     getEnv("CHECKOUT_CANCEL_URL", "https://leadflow.example.com/payment/cancelled"),
			QueryTimeout:  time.Duration(getEnvInt("GATEWAY_QUERY_TIMEOUT_SECONDS", 8)) * time.Second,
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromAddress:  getEnv("SMTP_FROM", "no-reply@leadflow.example.com"),
			Enabled:      getEnvBool("SMTP_ENABLED", false),
		},
		Verify: VerifyConfig{
			PollDelay:       time.Duration(getEnvInt("VERIFY_POLL_DELAY_MS", 2000)) * time.Millisecond,
			MaxPollAttempts: getEnvInt("VERIFY_MAX_POLL_ATTEMPTS", 10),
			RetryBase:       time.Duration(getEnvInt("RETRY_BASE_MS", 500)) * time.Millisecond,
			RetryAttempts:   getEnvInt("RETRY_ATTEMPTS", 5),
		},
		Admin: AdminConfig{
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
			Port:       getEnv("ADMIN_PORT", ":8087"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

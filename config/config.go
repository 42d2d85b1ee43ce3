package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	MailTransportLog   = "log"
	MailTransportSMTP  = "smtp"
	MailTransportKafka = "kafka"
)

type Config struct {
	Env       string    `yaml:"env"`
	Port      string    `yaml:"port"`
	LogLevel  string    `yaml:"logLevel"`
	LogFormat string    `yaml:"logFormat"`
	LogSource bool      `yaml:"logSource"`
	SiteURL   string    `yaml:"siteURL"`
	Database  string    `yaml:"databaseURL"`
	JWT       JWTConfig `yaml:"jwt"`

	SessionTTL           time.Duration `yaml:"sessionTTL"`
	VerificationTokenTTL time.Duration `yaml:"verificationTokenTTL"`
	PurgeInterval        time.Duration `yaml:"purgeInterval"`

	// AdminEmails are operator addresses treated as admins regardless of the
	// role on their user record.
	AdminEmails []string `yaml:"adminEmails"`

	Moderation ModerationConfig `yaml:"moderation"`
	Mail       MailConfig       `yaml:"mail"`
	Redis      RedisConfig      `yaml:"redis"`
}

type ModerationConfig struct {
	AlertRecipients      []string `yaml:"alertRecipients"`
	NotifyOnRejection    bool     `yaml:"notifyOnRejection"`
	SubmitLimitPerMinute int      `yaml:"submitLimitPerMinute"`
	AutoApproveVerified  bool     `yaml:"autoApproveVerified"`
}

type MailConfig struct {
	Transport   string        `yaml:"transport"`
	From        string        `yaml:"from"`
	FromName    string        `yaml:"fromName"`
	SMTPHost    string        `yaml:"smtpHost"`
	SMTPPort    int           `yaml:"smtpPort"`
	SMTPUser    string        `yaml:"smtpUser"`
	SMTPPass    string        `yaml:"smtpPassword"`
	KafkaBroker string        `yaml:"kafkaBroker"`
	KafkaTopic  string        `yaml:"kafkaTopic"`
	KafkaUser   string        `yaml:"kafkaUsername"`
	KafkaPass   string        `yaml:"kafkaPassword"`
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queueSize"`
	MaxAttempts int           `yaml:"maxAttempts"`
	RetryEvery  time.Duration `yaml:"retryEvery"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// IsProduction reports whether Env names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// Defaults returns a development configuration.
func Defaults() Config {
	return Config{
		Env:                  "dev",
		Port:                 "8080",
		LogLevel:             "info",
		LogFormat:            "json",
		SiteURL:              "http://localhost:3000",
		JWT:                  defaultJWT(),
		SessionTTL:           30 * 24 * time.Hour,
		VerificationTokenTTL: 24 * time.Hour,
		PurgeInterval:        time.Hour,
		Moderation: ModerationConfig{
			SubmitLimitPerMinute: 5,
		},
		Mail: MailConfig{
			Transport:   MailTransportLog,
			From:        "no-reply@localhost",
			FromName:    "Consultancy CMS",
			SMTPPort:    587,
			Workers:     2,
			QueueSize:   256,
			MaxAttempts: 5,
			RetryEvery:  30 * time.Second,
		},
		Redis: RedisConfig{
			Prefix: "cms",
		},
	}
}

// Load applies defaults, then the YAML file at path if it exists, then the
// environment.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Env, "APP_ENV")
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	setBool(&cfg.LogSource, "LOG_SOURCE")
	setString(&cfg.SiteURL, "SITE_URL")
	setString(&cfg.Database, "DATABASE_URL")
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setDuration(&cfg.JWT.Expiration, "JWT_EXPIRATION")
	setDuration(&cfg.SessionTTL, "SESSION_TTL")
	setDuration(&cfg.VerificationTokenTTL, "VERIFICATION_TOKEN_TTL")
	setDuration(&cfg.PurgeInterval, "PURGE_INTERVAL")
	setList(&cfg.AdminEmails, "ADMIN_EMAILS")

	setList(&cfg.Moderation.AlertRecipients, "MODERATION_ALERT_RECIPIENTS")
	setBool(&cfg.Moderation.NotifyOnRejection, "MODERATION_NOTIFY_ON_REJECTION")
	setBool(&cfg.Moderation.AutoApproveVerified, "MODERATION_AUTO_APPROVE_VERIFIED")
	setInt(&cfg.Moderation.SubmitLimitPerMinute, "COMMENT_SUBMIT_LIMIT_PER_MINUTE")

	setString(&cfg.Mail.Transport, "MAIL_TRANSPORT")
	setString(&cfg.Mail.From, "MAIL_FROM")
	setString(&cfg.Mail.FromName, "MAIL_FROM_NAME")
	setString(&cfg.Mail.SMTPHost, "SMTP_HOST")
	setInt(&cfg.Mail.SMTPPort, "SMTP_PORT")
	setString(&cfg.Mail.SMTPUser, "SMTP_USER")
	setString(&cfg.Mail.SMTPPass, "SMTP_PASSWORD")
	setString(&cfg.Mail.KafkaBroker, "KAFKA_BROKER")
	setString(&cfg.Mail.KafkaTopic, "KAFKA_TOPIC")
	setString(&cfg.Mail.KafkaUser, "KAFKA_USERNAME")
	setString(&cfg.Mail.KafkaPass, "KAFKA_PASSWORD")
	setInt(&cfg.Mail.MaxAttempts, "MAIL_MAX_ATTEMPTS")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Redis.Prefix, "REDIS_PREFIX")
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return errors.New("config: DATABASE_URL is required")
	}
	if c.IsProduction() && (c.JWT.Secret == "" || c.JWT.Secret == devJWTSecret) {
		return errors.New("config: JWT_SECRET must be set in production")
	}
	switch c.Mail.Transport {
	case MailTransportLog:
	case MailTransportSMTP:
		if c.Mail.SMTPHost == "" {
			return errors.New("config: SMTP_HOST is required for the smtp transport")
		}
	case MailTransportKafka:
		if c.Mail.KafkaBroker == "" || c.Mail.KafkaTopic == "" {
			return errors.New("config: KAFKA_BROKER and KAFKA_TOPIC are required for the kafka transport")
		}
	default:
		return fmt.Errorf("config: unknown mail transport %q", c.Mail.Transport)
	}
	if c.SessionTTL <= 0 || c.VerificationTokenTTL <= 0 {
		return errors.New("config: session and verification token TTLs must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	*dst = out
}

// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
// Token issuing lives in the external identity service; this backend only
// validates access tokens.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// EmailConfig provides settings for SMTP email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// SMSConfig provides settings for the SMS gateway.
type SMSConfig interface {
	GetSMSGatewayURL() string
	GetSMSGatewayAPIKey() string
	GetSMSOriginator() string
	IsSMSEnabled() bool
}

// WhatsAppConfig provides settings for the WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppAPIURL() string
	GetWhatsAppAPIUsername() string
	GetWhatsAppAPIPassword() string
	IsWhatsAppEnabled() bool
}

// AIConfig provides settings for the LLM-backed composer and classifiers.
type AIConfig interface {
	GetMoonshotAPIKey() string
	GetAITimeout() time.Duration
	IsAIEnabled() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// SweepConfig provides settings for the nurture sweeper loop.
type SweepConfig interface {
	GetSweepInterval() time.Duration
	GetSweepBatchLimit() int
	GetSweepWorkers() int
}

// NurtureConfig provides the nurture policy knobs.
type NurtureConfig interface {
	IsQuietHoursEnabled() bool
	GetQuietHoursStart() int
	GetQuietHoursEnd() int
	GetLocation() *time.Location
	IsDormancyEnabled() bool
	GetDormancyAfter() time.Duration
	GetLeaseTTL() time.Duration
	GetPlaybookPath() string
}

// NotificationConfig provides settings for operator notifications.
type NotificationConfig interface {
	GetOpsAlertEmail() string
	GetAppBaseURL() string
}

// WebhookConfig provides settings for inbound webhook authentication.
type WebhookConfig interface {
	GetWebhookAPIKeyHash() string
}

// IMAPConfig provides settings for the inbound email poller.
type IMAPConfig interface {
	GetIMAPHost() string
	GetIMAPPort() int
	GetIMAPUsername() string
	GetIMAPPassword() string
	GetIMAPPollInterval() time.Duration
	IsIMAPEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env               string
	HTTPAddr          string
	DatabaseURL       string
	JWTAccessSecret   string
	CORSAllowAll      bool
	CORSOrigins       []string
	CORSAllowCreds    bool
	AppBaseURL        string
	EmailEnabled      bool
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	EmailFromName     string
	EmailFromAddress  string
	SMSGatewayURL     string
	SMSGatewayAPIKey  string
	SMSOriginator     string
	WhatsAppAPIURL    string
	WhatsAppUsername  string
	WhatsAppPassword  string
	MoonshotAPIKey    string
	AITimeout         time.Duration
	RedisURL          string
	RedisTLSInsecure  bool
	AsynqQueueName    string
	AsynqConcurrency  int
	SweepInterval     time.Duration
	SweepBatchLimit   int
	SweepWorkers      int
	QuietHoursEnabled bool
	QuietHoursStart   int
	QuietHoursEnd     int
	Location          *time.Location
	DormancyEnabled   bool
	DormancyAfter     time.Duration
	LeaseTTL          time.Duration
	PlaybookPath      string
	OpsAlertEmail     string
	WebhookAPIKeyHash string
	IMAPHost          string
	IMAPPort          int
	IMAPUsername      string
	IMAPPassword      string
	IMAPPollInterval  time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// SMSConfig implementation
func (c *Config) GetSMSGatewayURL() string    { return c.SMSGatewayURL }
func (c *Config) GetSMSGatewayAPIKey() string { return c.SMSGatewayAPIKey }
func (c *Config) GetSMSOriginator() string    { return c.SMSOriginator }
func (c *Config) IsSMSEnabled() bool          { return c.SMSGatewayURL != "" }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppAPIURL() string      { return c.WhatsAppAPIURL }
func (c *Config) GetWhatsAppAPIUsername() string { return c.WhatsAppUsername }
func (c *Config) GetWhatsAppAPIPassword() string { return c.WhatsAppPassword }
func (c *Config) IsWhatsAppEnabled() bool        { return c.WhatsAppAPIURL != "" }

// AIConfig implementation
func (c *Config) GetMoonshotAPIKey() string   { return c.MoonshotAPIKey }
func (c *Config) GetAITimeout() time.Duration { return c.AITimeout }
func (c *Config) IsAIEnabled() bool           { return c.MoonshotAPIKey != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// SweepConfig implementation
func (c *Config) GetSweepInterval() time.Duration { return c.SweepInterval }
func (c *Config) GetSweepBatchLimit() int         { return c.SweepBatchLimit }
func (c *Config) GetSweepWorkers() int            { return c.SweepWorkers }

// NurtureConfig implementation
func (c *Config) IsQuietHoursEnabled() bool       { return c.QuietHoursEnabled }
func (c *Config) GetQuietHoursStart() int         { return c.QuietHoursStart }
func (c *Config) GetQuietHoursEnd() int           { return c.QuietHoursEnd }
func (c *Config) GetLocation() *time.Location     { return c.Location }
func (c *Config) IsDormancyEnabled() bool         { return c.DormancyEnabled }
func (c *Config) GetDormancyAfter() time.Duration { return c.DormancyAfter }
func (c *Config) GetLeaseTTL() time.Duration      { return c.LeaseTTL }
func (c *Config) GetPlaybookPath() string         { return c.PlaybookPath }

// NotificationConfig implementation
func (c *Config) GetOpsAlertEmail() string { return c.OpsAlertEmail }
func (c *Config) GetAppBaseURL() string    { return c.AppBaseURL }

// WebhookConfig implementation
func (c *Config) GetWebhookAPIKeyHash() string { return c.WebhookAPIKeyHash }

// IMAPConfig implementation
func (c *Config) GetIMAPHost() string                { return c.IMAPHost }
func (c *Config) GetIMAPPort() int                   { return c.IMAPPort }
func (c *Config) GetIMAPUsername() string            { return c.IMAPUsername }
func (c *Config) GetIMAPPassword() string            { return c.IMAPPassword }
func (c *Config) GetIMAPPollInterval() time.Duration { return c.IMAPPollInterval }
func (c *Config) IsIMAPEnabled() bool                { return c.IMAPHost != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	location, err := time.LoadLocation(getEnv("NURTURE_TIMEZONE", "Europe/Amsterdam"))
	if err != nil {
		return nil, fmt.Errorf("invalid NURTURE_TIMEZONE: %w", err)
	}

	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTAccessSecret:   getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:      corsAllowAll,
		CORSOrigins:       corsOrigins,
		CORSAllowCreds:    strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:        getEnv("APP_BASE_URL", "http://localhost:4200"),
		EmailEnabled:      emailEnabled && smtpHost != "",
		SMTPHost:          smtpHost,
		SMTPPort:          mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		EmailFromName:     getEnv("EMAIL_FROM_NAME", "Woningportaal"),
		EmailFromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
		SMSGatewayURL:     getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayAPIKey:  getEnv("SMS_GATEWAY_API_KEY", ""),
		SMSOriginator:     getEnv("SMS_ORIGINATOR", "Woningprtl"),
		WhatsAppAPIURL:    getEnv("WHATSAPP_API_URL", ""),
		WhatsAppUsername:  getEnv("WHATSAPP_API_USERNAME", ""),
		WhatsAppPassword:  getEnv("WHATSAPP_API_PASSWORD", ""),
		MoonshotAPIKey:    getEnv("MOONSHOT_API_KEY", ""),
		AITimeout:         mustDuration(getEnv("AI_TIMEOUT", "20s")),
		RedisURL:          getEnv("REDIS_URL", ""),
		RedisTLSInsecure:  strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:    getEnv("ASYNQ_QUEUE_NAME", "nurture"),
		AsynqConcurrency:  mustInt(getEnv("ASYNQ_CONCURRENCY", "5")),
		SweepInterval:     mustDuration(getEnv("SWEEP_INTERVAL", "60s")),
		SweepBatchLimit:   mustInt(getEnv("SWEEP_BATCH_LIMIT", "50")),
		SweepWorkers:      mustInt(getEnv("SWEEP_WORKERS", "8")),
		QuietHoursEnabled: strings.EqualFold(getEnv("QUIET_HOURS_ENABLED", "true"), "true"),
		QuietHoursStart:   mustInt(getEnv("QUIET_HOURS_START", "21")),
		QuietHoursEnd:     mustInt(getEnv("QUIET_HOURS_END", "9")),
		Location:          location,
		DormancyEnabled:   strings.EqualFold(getEnv("DORMANCY_ENABLED", "true"), "true"),
		DormancyAfter:     mustDuration(getEnv("DORMANCY_AFTER", "2160h")),
		LeaseTTL:          mustDuration(getEnv("NURTURE_LEASE_TTL", "90s")),
		PlaybookPath:      getEnv("PLAYBOOK_PATH", ""),
		OpsAlertEmail:     getEnv("OPS_ALERT_EMAIL", ""),
		WebhookAPIKeyHash: getEnv("WEBHOOK_API_KEY_HASH", ""),
		IMAPHost:          getEnv("IMAP_HOST", ""),
		IMAPPort:          mustInt(getEnv("IMAP_PORT", "993")),
		IMAPUsername:      getEnv("IMAP_USERNAME", ""),
		IMAPPassword:      getEnv("IMAP_PASSWORD", ""),
		IMAPPollInterval:  mustDuration(getEnv("IMAP_POLL_INTERVAL", "2m")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if emailEnabled && smtpHost != "" && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.QuietHoursStart < 0 || cfg.QuietHoursStart > 23 || cfg.QuietHoursEnd < 0 || cfg.QuietHoursEnd > 23 {
		return nil, fmt.Errorf("QUIET_HOURS_START and QUIET_HOURS_END must be hours in 0..23")
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL must be a positive duration")
	}
	if cfg.SweepWorkers <= 0 {
		return nil, fmt.Errorf("SWEEP_WORKERS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"leadrelay/internal/validation"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env string // "development", "production", etc.

	// Server
	ServerAddr     string
	BaseURL        string
	TrustedProxies []string // env: TRUSTED_PROXIES, comma-separated IPs/CIDRs allowed to set X-Forwarded-For
	RateLimitMax   int      // Requests per minute per IP

	// Storage
	DatabaseURL string
	RedisURL    string // Optional; enables shared rate limits, sessions, dedupe and feed cache

	// Session
	SessionSecret string // Used for signing cookies (min 32 chars)

	// CORS
	CORSOrigins string // Comma-separated allowed origins, e.g. "https://agency.example,https://www.agency.example"

	// OIDC (staff dashboard)
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	// Staff access
	AdminEmails      []string
	AdminEmailDomain string

	// Bot check
	CaptchaSecret    string // Empty disables CAPTCHA verification
	CaptchaVerifyURL string
	HoneypotField    string // snake_cased to match normalized payload keys

	// Quote relay
	DuplicateWindow time.Duration // 0 disables the duplicate guard
	PhoneRegion     string        // Default region for phone number parsing

	// RSS proxy
	RSSFeedURL     string
	RSSAllowedHost string
	RSSCacheTTL    time.Duration

	// SMTP notifications
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	NotifyEmails []string

	// Retention
	RetentionInterval     time.Duration
	MetadataRetentionDays int
	AuditRetentionDays    int

	// Site Branding
	SiteTitle string // env: SITE_TITLE, default: "Agency Leads"
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is read first if present; real
// environment variables take precedence over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:            getEnv("ENV", "development"),
		ServerAddr:     getEnv("SERVER_ADDR", ":3000"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:3000"),
		TrustedProxies: splitCSV(getEnv("TRUSTED_PROXIES", "")),
		RateLimitMax:   getEnvInt("RATE_LIMIT_MAX", 60),

		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/leadrelay?sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", ""),

		SessionSecret: getEnv("SESSION_SECRET", "change-me-in-production-min-32-chars"),
		CORSOrigins:   getEnv("CORS_ORIGINS", ""),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:  getEnv("OIDC_REDIRECT_URL", "http://localhost:3000/auth/callback"),

		AdminEmails:      lowerAll(splitCSV(getEnv("ADMIN_EMAILS", ""))),
		AdminEmailDomain: strings.ToLower(getEnv("ADMIN_EMAIL_DOMAIN", "")),

		CaptchaSecret:    getEnv("CAPTCHA_SECRET", ""),
		CaptchaVerifyURL: getEnv("CAPTCHA_VERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),
		HoneypotField:    validation.ToSnakeCase(getEnv("HONEYPOT_FIELD", "website")),

		DuplicateWindow: getEnvDuration("DUPLICATE_WINDOW", 60*time.Second),
		PhoneRegion:     strings.ToUpper(getEnv("PHONE_REGION", "US")),

		RSSFeedURL:     getEnv("RSS_FEED_URL", ""),
		RSSAllowedHost: strings.ToLower(getEnv("RSS_ALLOWED_HOST", "")),
		RSSCacheTTL:    getEnvDuration("RSS_CACHE_TTL", 5*time.Minute),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Agency Leads"),
		NotifyEmails: splitCSV(getEnv("NOTIFY_EMAILS", "")),

		RetentionInterval:     getEnvDuration("RETENTION_INTERVAL", 24*time.Hour),
		MetadataRetentionDays: getEnvInt("METADATA_RETENTION_DAYS", 90),
		AuditRetentionDays:    getEnvInt("AUDIT_RETENTION_DAYS", 365),

		SiteTitle: getEnv("SITE_TITLE", "Agency Leads"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lowerAll(values []string) []string {
	for i := range values {
		values[i] = strings.ToLower(values[i])
	}
	return values
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// IsOIDCEnabled returns true if staff login is configured.
func (c *Config) IsOIDCEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != ""
}

// IsCaptchaEnabled returns true if CAPTCHA tokens must be verified.
func (c *Config) IsCaptchaEnabled() bool {
	return c.CaptchaSecret != ""
}

// IsEmailEnabled returns true if SMTP is configured and there is someone to notify.
func (c *Config) IsEmailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != "" && len(c.NotifyEmails) > 0
}

// IsStaffEmail reports whether an authenticated email may use the staff dashboard.
func (c *Config) IsStaffEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	if c.AdminEmailDomain != "" {
		if at := strings.LastIndex(email, "@"); at >= 0 && email[at+1:] == c.AdminEmailDomain {
			return true
		}
	}
	return false
}

package config

import (
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	defaultJWTSecret    = "change-me"
	defaultTicketSecret = "change-me-too"
)

type Config struct {
	Env      string
	Port     string
	LogLevel string

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret    []byte
	TokenTTL     time.Duration
	TicketSecret []byte

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	PayPalBaseURL  string
	PayPalClientID string
	PayPalSecret   string
	Currency       string

	// PublicBaseURL is the single origin used to build links sent to users.
	PublicBaseURL string
	CORSOrigins   []string
	UploadDir     string
	Location      *time.Location

	RateLimitPerMinute int
	RateLimitBurst     int
}

// Load reads .env (when present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found; using system environment")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ENV", "production")
	v.SetDefault("PORT", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB", "trattoria")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("TOKEN_TTL_HOURS", 12)
	v.SetDefault("TICKET_SECRET", defaultTicketSecret)
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com")
	v.SetDefault("CURRENCY", "USD")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:3000")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("UPLOAD_DIR", "static/uploads")
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("RATE_LIMIT_BURST", 10)

	port := v.GetString("PORT")
	if port != "" && port[0] != ':' {
		port = ":" + port
	}

	cfg := &Config{
		Env:            v.GetString("ENV"),
		Port:           port,
		LogLevel:       v.GetString("LOG_LEVEL"),
		MongoURI:       v.GetString("MONGO_URI"),
		MongoDB:        v.GetString("MONGO_DB"),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		RedisDB:        v.GetInt("REDIS_DB"),
		JWTSecret:      []byte(v.GetString("JWT_SECRET")),
		TokenTTL:       time.Duration(v.GetInt("TOKEN_TTL_HOURS")) * time.Hour,
		TicketSecret:   []byte(v.GetString("TICKET_SECRET")),
		SMTPHost:       v.GetString("SMTP_HOST"),
		SMTPPort:       v.GetString("SMTP_PORT"),
		SMTPUser:       v.GetString("SMTP_USER"),
		SMTPPass:       v.GetString("SMTP_PASS"),
		SMTPFrom:       v.GetString("SMTP_FROM"),
		PayPalBaseURL:  strings.TrimRight(v.GetString("PAYPAL_BASE_URL"), "/"),
		PayPalClientID: v.GetString("PAYPAL_CLIENT_ID"),
		PayPalSecret:   v.GetString("PAYPAL_SECRET"),
		Currency:       v.GetString("CURRENCY"),
		PublicBaseURL:  strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
		UploadDir:      v.GetString("UPLOAD_DIR"),

		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),
	}
	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		log.Warn().Err(err).Str("tz", v.GetString("TIMEZONE")).Msg("unknown timezone, using UTC")
		loc = time.UTC
	}
	cfg.Location = loc
	return cfg
}

// Insecure lists settings that are only acceptable in development.
func (c *Config) Insecure() []string {
	var out []string
	if len(c.JWTSecret) == 0 || string(c.JWTSecret) == defaultJWTSecret {
		out = append(out, "JWT_SECRET is unset or the default")
	}
	if len(c.TicketSecret) == 0 || string(c.TicketSecret) == defaultTicketSecret {
		out = append(out, "TICKET_SECRET is unset or the default")
	}
	if slices.Contains(c.CORSOrigins, "*") {
		out = append(out, "CORS_ORIGINS allows any origin with credentials")
	}
	return out
}

func (c *Config) Development() bool {
	return c.Env == "development"
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

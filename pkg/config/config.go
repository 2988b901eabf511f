package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ServiceName string
	LogLevel    string

	ServerPort   int
	PublicURL    string
	CookieSecure bool
	CORSOrigins  []string

	ShopName    string
	ShopAddress string

	DatabaseURL string

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string

	JWTAccessSecret  []byte
	JWTRefreshSecret []byte

	AdminEmail     string
	AdminPassword  string
	AdminLoginPath string

	StripeSecretKey      string
	StripePublishableKey string
	StripeWebhookSecret  string
	Currency             string

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	RevalidateToken string
	AnalyticsID     string
}

// RequiredKeys is the fixed set of env keys a deployment must provide.
var RequiredKeys = []string{
	"DATABASE_URL",
	"MONGO_URI",
	"JWT_SECRET",
	"JWT_REFRESH_SECRET",
	"STRIPE_SECRET_KEY",
	"STRIPE_PUBLISHABLE_KEY",
	"STRIPE_WEBHOOK_SECRET",
	"SMTP_HOST",
	"MAIL_FROM",
	"REVALIDATE_TOKEN",
	"GA_MEASUREMENT_ID",
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "storefront"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		ServerPort:   EnvIntDefault("SERVER_PORT", 8080),
		PublicURL:    strings.TrimRight(EnvDefault("PUBLIC_URL", "http://localhost:8080"), "/"),
		CookieSecure: EnvDefault("COOKIE_SECURE", "true") != "false",
		CORSOrigins:  CSV(os.Getenv("CORS_ORIGINS")),

		ShopName:    EnvDefault("SHOP_NAME", "Storefront"),
		ShopAddress: os.Getenv("SHOP_ADDRESS"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		MongoURI: os.Getenv("MONGO_URI"),
		MongoDB:  EnvDefault("MONGO_DB", "storefront"),

		RedisAddr:     EnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTAccessSecret:  []byte(os.Getenv("JWT_SECRET")),
		JWTRefreshSecret: []byte(os.Getenv("JWT_REFRESH_SECRET")),

		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		AdminLoginPath: EnvDefault("ADMIN_LOGIN_PATH", "/fr/admin/login"),

		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripePublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		StripeWebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Currency:             strings.ToLower(EnvDefault("CURRENCY", "eur")),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "products"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     EnvIntDefault("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     os.Getenv("MAIL_FROM"),

		RevalidateToken: os.Getenv("REVALIDATE_TOKEN"),
		AnalyticsID:     os.Getenv("GA_MEASUREMENT_ID"),
	}
}

// Missing returns the keys from the list that are unset or blank.
func Missing(keys []string) []string {
	var out []string
	for _, k := range keys {
		if strings.TrimSpace(os.Getenv(k)) == "" {
			out = append(out, k)
		}
	}
	return out
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

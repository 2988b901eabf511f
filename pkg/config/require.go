package config

import "log"

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}

// MustLoad loads the config and stops the process when a key the server
// cannot start without is absent.
func MustLoad() Config {
	cfg := Load()

	MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	MustNonEmpty(cfg.MongoURI, "MONGO_URI")
	MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	MustNonEmptyBytes(cfg.JWTRefreshSecret, "JWT_REFRESH_SECRET")
	MustNonEmpty(cfg.StripeSecretKey, "STRIPE_SECRET_KEY")
	MustNonEmpty(cfg.StripeWebhookSecret, "STRIPE_WEBHOOK_SECRET")

	return cfg
}

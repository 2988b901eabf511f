package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCSV(t *testing.T) {
	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, CSV(" a:9092, ,b:9092 "))
}

func TestEnvIntDefault(t *testing.T) {
	t.Setenv("SF_TEST_INT", "42")
	assert.Equal(t, 42, EnvIntDefault("SF_TEST_INT", 1))

	t.Setenv("SF_TEST_INT", "nope")
	assert.Equal(t, 1, EnvIntDefault("SF_TEST_INT", 1))

	assert.Equal(t, 7, EnvIntDefault("SF_TEST_UNSET_INT", 7))
}

func TestMissing(t *testing.T) {
	t.Setenv("SF_TEST_SET", "value")
	t.Setenv("SF_TEST_BLANK", "   ")

	missing := Missing([]string{"SF_TEST_SET", "SF_TEST_BLANK", "SF_TEST_ABSENT"})
	assert.Equal(t, []string{"SF_TEST_BLANK", "SF_TEST_ABSENT"}, missing)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PUBLIC_URL", "https://shop.example/")
	t.Setenv("CURRENCY", "EUR")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := Load()
	assert.Equal(t, "https://shop.example", cfg.PublicURL)
	assert.Equal(t, "eur", cfg.Currency)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "/fr/admin/login", cfg.AdminLoginPath)
}

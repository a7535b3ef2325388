package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("HTTP_PORT", "9001")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9001", cfg.HTTPPort)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestValidate(t *testing.T) {
	t.Run("production requires jwt key", func(t *testing.T) {
		cfg := &Config{AppEnv: "production"}
		cfg.DB.Host = "db"
		cfg.DB.Database = "portal"
		cfg.DB.Password = "secret"
		assert.Error(t, cfg.Validate())

		cfg.Auth.JWTSecret = "s3cr3t"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("database required", func(t *testing.T) {
		cfg := &Config{AppEnv: "development"}
		assert.Error(t, cfg.Validate())
	})
}

func TestDatabaseURL_EscapesPassword(t *testing.T) {
	cfg := &Config{}
	cfg.DB.User = "u"
	cfg.DB.Password = "p@ss word"
	cfg.DB.Host = "h"
	cfg.DB.Port = "5432"
	cfg.DB.Database = "d"
	cfg.DB.SSLMode = "disable"
	assert.Equal(t, "postgres://u:p%40ss+word@h:5432/d?sslmode=disable", cfg.DatabaseURL())
}

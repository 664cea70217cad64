package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Env:                 "development",
		Port:                "8000",
		JWTSecret:           "secure-secret-at-least-32-chars-long",
		JWTAccessTTLMinutes: 60,
		JWTRefreshTTLHours:  24,
		DBDriver:            DriverPostgres,
		DBPassword:          "secure-password",
		DBSSLMode:           "require",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid development config", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"zero access ttl", func(c *Config) { c.JWTAccessTTLMinutes = 0 }, true},
		{"negative refresh ttl", func(c *Config) { c.JWTRefreshTTLHours = -1 }, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"sqlite in development", func(c *Config) { c.DBDriver = DriverSQLite }, false},
		{"production ok", func(c *Config) { c.Env = "production" }, false},
		{"production default secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = defaultJWTSecret
		}, true},
		{"production short secret", func(c *Config) {
			c.Env = "prod"
			c.JWTSecret = "short"
		}, true},
		{"production sqlite", func(c *Config) {
			c.Env = "production"
			c.DBDriver = DriverSQLite
		}, true},
		{"production default db password", func(c *Config) {
			c.Env = "production"
			c.DBPassword = "password"
		}, true},
		{"production dev superuser", func(c *Config) {
			c.Env = "production"
			c.DevSuperuserEmail = "admin@example.com"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_ACCESS_TTL_MINUTES", "15")

	c, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, DriverSQLite, c.DBDriver)
	assert.Equal(t, 15, c.JWTAccessTTLMinutes)
	assert.Equal(t, 24, c.JWTRefreshTTLHours)
	assert.Equal(t, "/media", c.MediaURL)
}

func TestIsProduction(t *testing.T) {
	assert.True(t, (&Config{Env: " Production "}).IsProduction())
	assert.True(t, (&Config{Env: "prod"}).IsProduction())
	assert.False(t, (&Config{Env: "development"}).IsProduction())
}

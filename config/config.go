// Package config loads daemon configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the authzd daemon.
type Config struct {
	Server   ServerConfig
	Token    TokenConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Log      LogConfig
	Services []ServiceCredential
}

// ServerConfig stores the web server settings.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// TokenConfig stores service token signing settings.
type TokenConfig struct {
	Algorithm  string
	SecretKey  string
	PrivateKey string
	PublicKey  string
	Issuer     string
	Audience   string
	TTL        time.Duration
	ClockSkew  time.Duration
}

// RedisConfig stores the revocation denylist connection settings. An
// empty Addr disables the redis denylist.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PostgresConfig stores the policy source connection settings. An
// empty DSN starts the daemon with an empty policy snapshot.
type PostgresConfig struct {
	DSN string
}

// LogConfig stores logging settings.
type LogConfig struct {
	Level string
}

// ServiceCredential registers one calling service and its secret.
type ServiceCredential struct {
	ID     string
	Secret string
}

// Load reads configuration from ./config/authzd.yaml (if present) and
// environment variables prefixed AUTHZD_.
func Load() (*Config, error) {
	v := viper.New()
	v.AddConfigPath("config")
	v.SetConfigName("authzd")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("authzd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default configurations
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdownTimeout", "10s")
	v.SetDefault("token.algorithm", "HS256")
	v.SetDefault("token.issuer", "authcore")
	v.SetDefault("token.audience", "platform-services")
	v.SetDefault("token.ttl", "10m")
	v.SetDefault("token.clockSkew", "30s")
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file: defaults and environment variables apply.
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Token: TokenConfig{
			Algorithm:  v.GetString("token.algorithm"),
			SecretKey:  v.GetString("token.secretKey"),
			PrivateKey: v.GetString("token.privateKey"),
			PublicKey:  v.GetString("token.publicKey"),
			Issuer:     v.GetString("token.issuer"),
			Audience:   v.GetString("token.audience"),
			TTL:        v.GetDuration("token.ttl"),
			ClockSkew:  v.GetDuration("token.clockSkew"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Postgres: PostgresConfig{
			DSN: v.GetString("postgres.dsn"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
	}

	var services []ServiceCredential
	if err := v.UnmarshalKey("services", &services); err != nil {
		return nil, fmt.Errorf("parsing service credentials: %w", err)
	}
	cfg.Services = services

	return cfg, nil
}

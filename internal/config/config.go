// Package config loads process settings from the environment, an optional
// YAML file and a .env file.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageRedis    = "redis"
)

// Config configures the todo backend. Environment variables use the TODO_
// prefix, e.g. TODO_STORAGE or TODO_DATABASE_URL.
type Config struct {
	LogLevel        string        `mapstructure:"log_level" validate:"required"`
	Addr            string        `mapstructure:"addr" validate:"required"`
	Storage         string        `mapstructure:"storage" validate:"oneof=memory postgres sqlite redis"`
	DatabaseURL     string        `mapstructure:"database_url" validate:"required_if=Storage postgres,required_if=Storage sqlite"`
	MigrationsDir   string        `mapstructure:"migrations_dir" validate:"required_if=Storage postgres,required_if=Storage sqlite"`
	RedisURL        string        `mapstructure:"redis_url" validate:"required_if=Storage redis"`
	IDFormat        string        `mapstructure:"id_format" validate:"oneof=xid uuidv7"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// GatewayConfig configures the REST gateway. Environment variables use the
// API_ prefix.
type GatewayConfig struct {
	LogLevel        string        `mapstructure:"log_level" validate:"required"`
	Addr            string        `mapstructure:"addr" validate:"required"`
	TodoAddr        string        `mapstructure:"todo_addr" validate:"required"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

var validate = newValidator()

// newValidator reports fields by their config key rather than the Go name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("mapstructure")
	})
	return v
}

func Load() (Config, error) {
	v := newViper("TODO", map[string]any{
		"log_level":        "info",
		"addr":             ":50051",
		"storage":          StorageMemory,
		"database_url":     "",
		"migrations_dir":   "",
		"redis_url":        "redis://localhost:6379/0",
		"id_format":        "xid",
		"shutdown_timeout": 10 * time.Second,
	})
	if err := readConfigFile(v); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	cfg.IDFormat = strings.ToLower(strings.TrimSpace(cfg.IDFormat))
	if cfg.MigrationsDir == "" && (cfg.Storage == StoragePostgres || cfg.Storage == StorageSQLite) {
		cfg.MigrationsDir = "./db/migrations/" + cfg.Storage
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	return validateStruct(c)
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func LoadGateway() (GatewayConfig, error) {
	v := newViper("API", map[string]any{
		"log_level":        "info",
		"addr":             ":8080",
		"todo_addr":        "localhost:50051",
		"cors_origin":      "*",
		"shutdown_timeout": 10 * time.Second,
	})
	if err := readConfigFile(v); err != nil {
		return GatewayConfig{}, err
	}

	var cfg GatewayConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return GatewayConfig{}, fmt.Errorf("parse gateway config: %w", err)
	}
	if err := validateStruct(cfg); err != nil {
		return GatewayConfig{}, err
	}
	return cfg, nil
}

func newViper(prefix string, defaults map[string]any) *viper.Viper {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	_ = v.BindEnv("config")
	return v
}

// readConfigFile merges the YAML file named by <PREFIX>_CONFIG, if any.
func readConfigFile(v *viper.Viper) error {
	path := strings.TrimSpace(v.GetString("config"))
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

package config

import (
	"fmt"

	"github.com/lotware/prodimport/internal/db"
	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// ImportConfig holds the pipeline policy knobs.
type ImportConfig struct {
	// FailOnZeroValid makes committing a job with zero valid rows a hard
	// failure instead of a successful no-op commit.
	FailOnZeroValid bool
	// Synchronous runs parse and validation inline with job creation instead
	// of on a background goroutine. Intended for tests and one-shot tooling.
	Synchronous bool
}

// Config is the full application configuration.
type Config struct {
	DB     db.Config
	Server ServerConfig
	Import ImportConfig
}

// Default returns the built-in configuration used when no config file or
// environment overrides are present.
func Default() Config {
	return Config{
		DB: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Import: ImportConfig{
			FailOnZeroValid: false,
			Synchronous:     false,
		},
	}
}

// Load reads config.yaml from the given path, falling back to defaults and
// allowing environment overrides like APP_DATABASE_HOST.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("APP")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("import.fail_on_zero_valid")
	v.BindEnv("import.synchronous")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.DB.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.DB.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.DB.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.DB.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DB.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.DB.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("import.fail_on_zero_valid") {
		cfg.Import.FailOnZeroValid = v.GetBool("import.fail_on_zero_valid")
	}
	if v.IsSet("import.synchronous") {
		cfg.Import.Synchronous = v.GetBool("import.synchronous")
	}

	return cfg, nil
}

// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the process configuration.
type Config struct {
	// MongoURI selects the storage driver: mongodb://, mongodb+srv:// or file://
	MongoURI        string        `env:"MONGODB_URI,required,notEmpty"`
	Database        string        `env:"GO_USERS_DATABASE"         envDefault:"myDB"`
	Addr            string        `env:"GO_USERS_ADDR"             envDefault:"127.0.0.1:3000"`
	RequestTimeout  time.Duration `env:"GO_USERS_REQUEST_TIMEOUT"  envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"GO_USERS_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	LogLevel        string        `env:"GO_USERS_LOG_LEVEL"        envDefault:"debug"`
	LogFormat       string        `env:"GO_USERS_LOG_FORMAT"       envDefault:"console"`
	ServerHeader    string        `env:"GO_USERS_SERVER_HEADER"    envDefault:"go-users"`
	CORSOrigins     []string      `env:"GO_USERS_CORS_ORIGINS"     envDefault:"*" envSeparator:","`
	OTelEndpoint    string        `env:"GO_USERS_OTEL_ENDPOINT"`
}

// Load reads the given .env files (missing files are skipped; variables already
// set in the process win) and parses the environment into a Config.
func Load(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if file == "" {
			continue
		}
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.RequestTimeout <= 0 {
		return Config{}, fmt.Errorf("parse env: GO_USERS_REQUEST_TIMEOUT must be positive, got %s", cfg.RequestTimeout)
	}
	return cfg, nil
}

package consumer

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/alovak/purseflow/internal/cardgen"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is a configuration for the consumer application
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" env-default:"localhost:9090"`
	ISO8583Addr string `env:"ISO8583_ADDR" env-default:"localhost:8583"`
	// RepoBackend is "pg" or "mem"; mem also requires AllowMemBackend.
	RepoBackend     string `env:"REPO_BACKEND" env-default:"pg"`
	AllowMemBackend bool   `env:"ALLOW_MEM_BACKEND" env-default:"false"`
	DatabaseDSN     string `env:"DB_DSN"`
	// Migrate applies the embedded schema on start.
	Migrate bool `env:"DB_MIGRATE" env-default:"false"`
	// CardBIN prefixes generated purse card numbers (6/8/9 digits).
	CardBIN          string `env:"CARD_BIN" env-default:"605678"`
	CardNumberLength int    `env:"CARD_NUMBER_LENGTH" env-default:"16"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:         "localhost:9090",
		ISO8583Addr:      "localhost:8583",
		RepoBackend:      "pg",
		CardBIN:          cardgen.DefaultBIN,
		CardNumberLength: cardgen.DefaultLength,
	}
}

// LoadConfig reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	cfg := DefaultConfig()
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("couldn't read environment variables: %w", err)
	}

	return cfg, nil
}

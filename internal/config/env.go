package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envPrefix = "GOPHPASS_"

// dotenvFile is loaded into the process environment when present.
var dotenvFile = ".env"

// parseEnv overlays GOPHPASS_* variables. A nil environ reads the process
// environment after loading dotenvFile.
func parseEnv(cfg *Config, environ map[string]string) error {
	if environ == nil {
		if err := godotenv.Load(dotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", dotenvFile, err)
		}
	}

	opts := env.Options{Prefix: envPrefix, Environment: environ}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

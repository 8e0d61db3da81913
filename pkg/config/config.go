// Package config provides YAML-based configuration loading with environment variable
// expansion and `env` tag overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Load reads a YAML file into target, expanding ${VAR} references, then applies
// `env:"..."` overrides and finally validates.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expandedData := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expandedData), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	return finish(target)
}

// LoadOptional behaves like Load but keeps target's defaults when filename does not exist.
// Environment overrides and validation still apply.
func LoadOptional[T any](filename string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return finish(target)
	}
	return Load(filename, target)
}

func finish[T any](target *T) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

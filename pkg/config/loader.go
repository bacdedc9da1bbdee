package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envRef matches ${VAR} references in configuration files. Unbraced dollar
// signs pass through untouched.
var envRef = regexp.MustCompile(`\$\{(\w+)\}`)

// Load reads a pool configuration from a YAML file, substituting ${VAR}
// references with environment variable values before parsing. Unset
// variables substitute to the empty string, which Validate then refuses for
// secret-bearing fields.
func Load(path string, cfg interface{}) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is controlled by the caller
	if err != nil {
		return fmt.Errorf("read pool configuration %s: %w", path, err)
	}

	expanded := envRef.ReplaceAllStringFunc(string(data), func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse pool configuration %s: %w", path, err)
	}

	return nil
}

// Save writes a pool configuration as YAML. Scaffolds should carry ${VAR}
// references in secret fields so raw secrets never land on disk; Save writes
// field values as-is.
func Save(path string, cfg interface{}) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode pool configuration: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write pool configuration %s: %w", path, err)
	}

	return nil
}

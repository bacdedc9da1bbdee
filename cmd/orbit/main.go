package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/orbit/pkg/config"
	"github.com/ajitpratap0/orbit/pkg/logger"
	"github.com/ajitpratap0/orbit/pkg/pool"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	root := &cobra.Command{
		Use:   "orbit",
		Short: "Orbit - credential rotation and rate-limit admission control",
		Long: `Orbit schedules outgoing API requests over a pool of interchangeable,
individually rate-limited credentials. This CLI validates pool configurations;
the library itself is embedded by connector processes.`,
	}

	// Version command
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Orbit v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	// Check command: load, validate and dry-construct a pool
	var logLevel string
	checkCmd := &cobra.Command{
		Use:   "check <config.yaml>",
		Short: "Validate a pool configuration",
		Long: `Load a pool configuration from a YAML file (with ${ENV} substitution),
validate it, construct the pool, and tear it down again.

Example:
  orbit check pool.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkConfig(args[0], logLevel)
		},
	}
	checkCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.AddCommand(checkCmd)

	// Init command: write a configuration scaffold
	root.AddCommand(&cobra.Command{
		Use:   "init <config.yaml>",
		Short: "Write a pool configuration scaffold",
		Long: `Write a starter pool configuration with production defaults and a single
bearer credential referencing ${API_TOKEN}, so the secret itself stays in the
environment.

Example:
  orbit init pool.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeScaffold(args[0])
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// writeScaffold writes a starter pool configuration. Refuses to overwrite an
// existing file.
func writeScaffold(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	cfg := config.NewPoolConfig("my-pool")
	cfg.ThrottlePrefix = "/api/"
	cfg.Credentials = []config.CredentialConfig{
		{ID: "primary", Kind: config.CredentialKindBearer, Token: "${API_TOKEN}"},
	}

	if err := config.Save(path, cfg); err != nil {
		return err
	}

	fmt.Printf("wrote %s (set API_TOKEN before running 'orbit check %s')\n", path, path)
	return nil
}

// checkConfig loads and validates a pool configuration, then dry-constructs
// the pool to surface credential build errors.
func checkConfig(configFile, logLevel string) error {
	if err := logger.Init(logger.Config{Level: logLevel, Encoding: "console", Development: true}); err != nil {
		return err
	}

	var cfg config.PoolConfig
	if err := config.Load(configFile, &cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	log := logger.With(zap.String("pool", cfg.Name))

	p, err := pool.New(&cfg, logger.Get())
	if err != nil {
		return fmt.Errorf("pool construction failed: %w", err)
	}
	p.Shutdown(5 * time.Second)

	log.Info("configuration is valid",
		zap.Int("credentials", len(cfg.Credentials)),
		zap.Int("limit", cfg.RateLimit.Limit),
		zap.Float64("window_seconds", cfg.RateLimit.WindowSeconds),
		zap.String("throttle_prefix", cfg.ThrottlePrefix))

	fmt.Printf("%s: ok (%d credentials, %d requests per %gs window)\n",
		configFile, len(cfg.Credentials), cfg.RateLimit.Limit, cfg.RateLimit.WindowSeconds)

	return nil
}

// Command autoreplyd runs the auto-reply core: it owns the document store,
// sweeps lapsed remote-control sessions and serves the read-only admin API.
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-autoreply-backend/internal/config"
	"github.com/tbourn/go-autoreply-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	envFile     string
	driverFlag  string
	dsnFlag     string
	serviceName = "autoreplyd"
)

var rootCmd = &cobra.Command{
	Use:           "autoreplyd",
	Short:         "Keyword auto-reply and remote-control core",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate, start the TTL sweeper and serve the admin API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update tables and indexes, then exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runMigrate(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "database driver override (sqlite|postgres)")
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "database DSN override")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// loadConfig reads the dotenv file (a missing file is fine), the
// environment and the flag overrides, then sets up logging.
func loadConfig() (config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	cfg.Database.Driver = sysutil.FirstNonEmpty(driverFlag, cfg.Database.Driver)
	cfg.Database.DSN = sysutil.FirstNonEmpty(dsnFlag, cfg.Database.DSN)
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, serviceName)
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("autoreplyd failed")
		os.Exit(1)
	}
}

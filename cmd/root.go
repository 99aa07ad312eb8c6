package cmd

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hurou927/schemashift/internal/config"
	"github.com/hurou927/schemashift/internal/db"
	"github.com/hurou927/schemashift/internal/evolve"
	"github.com/hurou927/schemashift/internal/schema"
)

var (
	cfgPath   string
	cfg       *config.Config
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "schemashift",
	Short: "Rebuild tables into a new column shape with copy, verify and swap",
	Long: `schemashift restructures one table at a time on engines that cannot drop or
retype columns in place. It copies the table into a shadow table with the
target shape, verifies the row count and swaps the shadow into place.
It also reports the live schema that the rebuild depends on.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgPath == "" {
			return fmt.Errorf("--config is required")
		}
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		return setupLogging(cmd.Flags(), &cfg.Log)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (required)")
	rootCmd.PersistentFlags().AddFlagSet(logFlags())
}

func logFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("log", pflag.ContinueOnError)
	fs.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	fs.StringVar(&logFormat, "log-format", "", "log format: text or json (overrides config)")
	return fs
}

// setupLogging applies the config log section, with explicit flags taking precedence.
func setupLogging(flags *pflag.FlagSet, lc *config.Log) error {
	if flags.Changed("log-level") {
		lc.Level = logLevel
	}
	if flags.Changed("log-format") {
		lc.Format = logFormat
	}

	level, err := log.ParseLevel(lc.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	switch lc.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format: %s (supported: text, json)", lc.Format)
	}
	return nil
}

// connect opens the configured database and resolves its dialect.
func connect(ctx context.Context) (*db.Conn, schema.Dialect, error) {
	dialect, err := schema.ForDriver(cfg.Database.Driver, cfg.Database.Schema)
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	log.WithField("driver", conn.Driver).Debug("connected")
	return conn, dialect, nil
}

// Execute runs the root command and exits with the command's exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(evolve.ExitCode(err))
	}
}

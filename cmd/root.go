// Package cmd provides the command-line interface for the event store:
// loading EVE files, dumping and querying a database, and managing the
// full-text index layer.
package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"eveconsole/config"
	"eveconsole/storage"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

// Global flags.
var (
	databasePath string
	noColor      bool
)

// InitLogger initializes the zap logger with colored console output.
func InitLogger() *zap.SugaredLogger {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		zapcore.InfoLevel,
	)

	return zap.New(core, zap.AddCaller()).Sugar()
}

// loadConfig resolves the configuration, letting the --database flag
// override the configured path.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if databasePath != "" {
		cfg.DataPaths.DatabasePath = databasePath
	}
	return cfg, nil
}

// openDatabase opens the configured SQLite database. The caller owns the
// returned handle and must Close it.
func openDatabase(logger *zap.SugaredLogger) (*storage.SQLite, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.NewSQLite(cfg.DataPaths.DatabasePath, cfg.Database.MaxReadConns, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, cfg, nil
}

// NewRootCmd builds the CLI command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "eveconsole",
		Short:        "EVE event store and alert aggregation console",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	root.PersistentFlags().StringVar(&databasePath, "database", "",
		"path to the SQLite event database (overrides config)")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"disable colored output")

	root.AddCommand(newLoadCmd())
	root.AddCommand(newDumpCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newFtsCmd())

	return root
}

// Execute runs the CLI, exiting non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		errorColor.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printSuccess(format string, args ...interface{}) {
	successColor.Printf(format+"\n", args...)
}

func printInfo(format string, args ...interface{}) {
	infoColor.Printf(format+"\n", args...)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dvloznov/fraud-scoring/internal/app"
	"github.com/dvloznov/fraud-scoring/internal/config"
	"github.com/dvloznov/fraud-scoring/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var Version = "dev"

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	jsonOutput bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "fraudctl",
		Short:         "fraudctl - operate the transaction fraud scorer",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("FRAUD_CONFIG"), "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")
	rootCmd.PersistentFlags().BoolVarP(&opts.jsonOutput, "json", "j", false, "print results as JSON")

	// Add subcommands
	rootCmd.AddCommand(scoreCmd(opts))
	rootCmd.AddCommand(featuresCmd(opts))
	rootCmd.AddCommand(ingestCmd(opts))
	rootCmd.AddCommand(modelCmd(opts))
	rootCmd.AddCommand(migrateCmd(opts))
	rootCmd.AddCommand(historyCmd(opts))
	rootCmd.AddCommand(categoriesCmd(opts))

	return rootCmd
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *rootOptions) logger(cmd *cobra.Command) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}
	return logger.NewWithWriter(out).Level(logger.ParseLevel(o.logLevel))
}

// services loads the config and builds the scoring services. The caller
// closes them.
func (o *rootOptions) services(ctx context.Context, cmd *cobra.Command) (*app.Services, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, o.logger(cmd))
}

// print writes v as indented JSON when --json is set, and calls text
// otherwise.
func (o *rootOptions) print(w io.Writer, v any, text func(w io.Writer)) error {
	if o.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

// Package cmd implements the snapshot command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/snapshot-service/internal/config"
	"github.com/JakeFAU/snapshot-service/internal/logging"
	"github.com/JakeFAU/snapshot-service/internal/server"
)

type envKey struct{}

// env is what PersistentPreRunE hands to subcommands.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

// build is the application factory. Tests swap it out.
var build = server.Build

func envFrom(ctx context.Context) (env, error) {
	e, ok := ctx.Value(envKey{}).(env)
	if !ok {
		return env{}, fmt.Errorf("command environment not initialized")
	}
	return e, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:           "snapshot",
		Short:         "Render HTML and web pages to PDF.",
		Long:          "snapshot serves an HTTP API that turns HTML content or live URLs into PDFs and ZIP bundles using headless Chrome.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, env{cfg: cfg, logger: logger}))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRenderCmd())
	return cmd
}

// Execute runs the root command.
func Execute(version string) {
	server.Version = version
	root := newRootCmd()
	root.Version = version
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "snapshot: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xraph/taskq/client"
	"github.com/xraph/taskq/internal/config"
)

type rootOptions struct {
	configPath string
	server     string
	token      string
	format     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "taskq",
		Short:         "Asynchronous arithmetic job queue",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "taskq.yaml", "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.server, "server", "ws://localhost:8080/dwp", "dwp endpoint for client commands")
	cmd.PersistentFlags().StringVar(&opts.token, "token", "", "API key for client commands")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "json", "wire format for client commands (json, msgpack)")

	cmd.AddCommand(
		newServeCmd(opts),
		newWorkerCmd(opts),
		newSubmitCmd(opts),
		newStatusCmd(opts),
		newSimulateCmd(opts),
	)
	return cmd
}

// loadConfig loads and validates the config file.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// dial connects a client to the configured server.
func (o *rootOptions) dial(ctx context.Context, cmd *cobra.Command) (*client.Client, error) {
	cfg := config.Default()
	if err := cfg.ApplyEnv(envLookup); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	cfg.Logging.Level = "warn"

	return client.DialContext(ctx, o.server,
		client.WithToken(o.token),
		client.WithFormat(o.format),
		client.WithLogger(cfg.Logger(cmd.ErrOrStderr())),
	)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

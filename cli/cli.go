// Package cli is the command line entry point shared by plugin binaries.
//
//	func main() {
//		cli.Execute(plugin.WithName("echo"), plugin.WithKernels(...))
//	}
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mnehpets/oneplugin/config"
	"github.com/mnehpets/oneplugin/logging"
	"github.com/mnehpets/oneplugin/metrics"
	"github.com/mnehpets/oneplugin/plugin"
)

// NewRootCommand builds the command tree for a plugin assembled from opts.
func NewRootCommand(opts ...plugin.Option) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "plugin",
		Short:         "Run a kernel and assistant plugin",
		Long:          `Serves JSON-RPC calls from a host over stdio or loopback HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Use, _ = plugin.Identity(opts...)

	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newManifestCommand(opts))
	rootCmd.AddCommand(newVersionCommand(opts))
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute(opts ...plugin.Option) {
	if err := NewRootCommand(opts...).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCommand(opts []plugin.Option) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve JSON-RPC until the host disconnects",
		Long: `Serves JSON-RPC over the transport named by --transport or STENCILA_TRANSPORT.
The http transport listens on 127.0.0.1 and requires a bearer token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			level, err := logging.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			log := logging.New(cmd.ErrOrStderr(), level)

			all := append([]plugin.Option{}, opts...)
			all = append(all,
				plugin.WithLogger(log),
				plugin.WithMetrics(metrics.New()),
				plugin.WithStdio(cmd.InOrStdin(), cmd.OutOrStdout()),
			)
			p, err := plugin.New(all...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("plugin starting", "transport", cfg.Transport, "methods", len(p.Methods()))
			if err := p.Run(ctx, cfg); err != nil {
				log.Error("plugin stopped", "error", err)
				return err
			}
			log.Info("plugin stopped")
			return nil
		},
	}
	cmd.Flags().String("transport", "", "Transport to serve: stdio or http")
	cmd.Flags().IntP("port", "p", 0, "Port for the http transport (0 picks a free port)")
	cmd.Flags().String("token", "", "Bearer token for the http transport")
	cmd.Flags().String("env-file", "", "Load configuration from this .env file")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn or error")
	return cmd
}

// loadConfig layers flags over the environment and the optional .env file.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("transport") {
		cfg.Transport, _ = flags.GetString("transport")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("token") {
		cfg.Token, _ = flags.GetString("token")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	return cfg, cfg.Validate()
}

func newManifestCommand(opts []plugin.Option) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest",
		Short: "Print the plugin manifest as YAML",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			p, err := plugin.New(opts...)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, p.Close(context.Background()))
			}()

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(p.Manifest()); err != nil {
				return fmt.Errorf("encode manifest: %w", err)
			}
			return enc.Close()
		},
	}
}

func newVersionCommand(opts []plugin.Option) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the plugin version",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, version := plugin.Identity(opts...)
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", name, version)
			return nil
		},
	}
}

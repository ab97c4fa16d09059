// Package main provides the oracle-mcp server binary.
//
// The binary speaks MCP over stdio: protocol frames on stdout, every
// diagnostic on stderr. Exit codes are stable for supervisors: 0 on
// clean shutdown, 1 for configuration errors, 2 for Oracle
// connectivity failures, 3 for protocol failures.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orahub/oracle-mcp/internal/config"
	"github.com/orahub/oracle-mcp/internal/logging"
	"github.com/orahub/oracle-mcp/internal/server"
	"github.com/orahub/oracle-mcp/pkg/version"
)

const (
	exitOK           = 0
	exitConfig       = 1
	exitConnectivity = 2
	exitProtocol     = 3
)

// errConfig marks a configuration failure so main can map it to its
// exit code.
var errConfig = errors.New("configuration error")

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "oracle-mcp",
		Short:         "MCP server exposing an Oracle database as a tool catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		switch {
		case errors.Is(err, errConfig):
			return exitConfig
		case errors.Is(err, server.ErrConnectivity):
			return exitConnectivity
		default:
			return exitProtocol
		}
	}
	return exitOK
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A second signal during drain kills the process via the default
	// handler, so a stuck shutdown stays interruptible.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		signal.Stop(sigChan)
		cancel()
	}()

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s version %s\n", server.Name, version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

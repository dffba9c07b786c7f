package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/xdrprobe/cmd/gen"
	"github.com/luma/xdrprobe/internal/env"
)

var (
	// logLevel overrides XDRPROBE_LOG_LEVEL when set
	logLevel string
)

var RootCmd = &cobra.Command{
	Use:   "xdrprobe",
	Short: "Drive a replicator server over its binary protocol",
	Long: `Drive a replicator server over its binary protocol

xdrprobe speaks the replicator's XDR encoded, request id framed protocol.
It can send commands to a running server and print the responses, or stand
in for the server itself.

Configuration is read from XDRPROBE_* environment variables and .env.local,
flags take precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	RootCmd.AddCommand(LogonCmd)
	RootCmd.AddCommand(StubCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger every command needs.
func setup(ctx context.Context) (*env.Config, *zap.Logger, error) {
	conf, err := env.LoadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	if logLevel != "" {
		conf.LogLevel = logLevel
	}

	log, err := env.MakeLogger(conf.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	return conf, log, nil
}

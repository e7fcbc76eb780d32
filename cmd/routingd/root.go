package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagHome     = "home"
	flagLogLevel = "log-level"

	envPrefix = "ROUTINGD"
)

// DefaultNodeHome is the default home directory of the daemon.
var DefaultNodeHome = defaultHome()

func defaultHome() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".routingd"
	}
	return filepath.Join(dir, ".routingd")
}

func NewRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "routingd",
		Short:         "Cross-chain transfer route tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(flagHome, DefaultNodeHome, "directory for config and data")
	rootCmd.PersistentFlags().Int(flagLogLevel, -1, "override the configured log level (0 = debug ... 5 = panic)")

	// ROUTINGD_HOME and ROUTINGD_LOG_LEVEL work as well as the flags.
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlag(flagHome, rootCmd.PersistentFlags().Lookup(flagHome))
	_ = v.BindPFlag(flagLogLevel, rootCmd.PersistentFlags().Lookup(flagLogLevel))

	InitRootCmd(rootCmd, v)

	return rootCmd
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:     "aegis",
	Short:   "Aegis - least-privilege policy gateway for agent tool calls",
	Long:    `Aegis sits between software agents and the tools they invoke, enforcing a declarative least-privilege policy on every call.`,
	Version: Version,
}

// exitCoder lets a command's returned error pick its own process exit
// code: 0 clean shutdown, 1 fatal init error, 2 port bind failure. An
// error that does not implement it exits 1.
type exitCoder interface {
	ExitCode() int
}

// Execute runs the root command, mapping a returned error to its process
// exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var ec exitCoder
		if errors.As(err, &ec) {
			os.Exit(ec.ExitCode())
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (currently informational; configuration is environment-driven)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

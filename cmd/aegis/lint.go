package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"aegis-hq/aegis/pkg/policy/loader"
)

var lintFlags struct {
	dir string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate policy files without publishing them",
	Long: `Load and validate every policy file in a directory the same way the
running gateway would, without ever swapping them into the live index.

Examples:
  aegis lint --dir ./policies`,
	RunE: runLint,
}

func init() {
	rootCmd.AddCommand(lintCmd)
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "./policies", "directory of policy files")
}

func runLint(cmd *cobra.Command, args []string) error {
	set, warnings, err := loader.Load(lintFlags.dir)
	if err != nil {
		return fmt.Errorf("lint: %w", err)
	}

	for _, w := range warnings {
		fmt.Printf("warning: %s: %s\n", w.SourcePath, w.Message)
	}

	fmt.Printf("\n%d agent(s) across %d source file(s)\n", len(set.Agents), len(set.Sources))
	fmt.Printf("fingerprint: %s\n", set.VersionFingerprint)

	if len(warnings) == 0 {
		fmt.Println("OK")
	}
	return nil
}

// Package cmd implements the easemlschema command-line surface: schema
// validation and matching, and dataset validation, matching and generation.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/easeml/easemlschema/dataset"
	"github.com/easeml/easemlschema/schema"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "easemlschema",
	Short:         "Operations with ease.ml schemas and datasets",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and returns the first command error.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("easemlschema %s (commit %s, built %s)\n", Version, Commit, Date)
	},
}

// printDiag renders a schema or dataset error as the two-line Path/Message
// diagnostic and returns a terse error for the non-zero exit.
func printDiag(header string, err error) error {
	fmt.Println(header + ":")
	switch e := err.(type) {
	case *schema.Error:
		fmt.Println("  Path:      ", e.Path)
		fmt.Println("  Message:   ", e.Message)
	case *dataset.Error:
		fmt.Println("  Path:      ", e.Path)
		fmt.Println("  Message:   ", e.Message)
	default:
		fmt.Println("  Message:   ", err.Error())
	}
	return fmt.Errorf("%s", header)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/easeml/easemlschema/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Operations with ease.ml schemas",
}

var schemaValidateCmd = &cobra.Command{
	Use:   "validate [src]",
	Short: "Check if the given schema is valid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadSchemaFile(args[0], "Source schema validation error"); err != nil {
			return err
		}
		return nil
	},
}

var schemaMatchCmd = &cobra.Command{
	Use:   "match [src] [dst]",
	Short: "Check if a source schema can be accepted by a destination schema",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := loadSchemaFile(args[0], "Source schema validation error")
		if err != nil {
			return err
		}
		dst, err := loadSchemaFile(args[1], "Destination schema validation error")
		if err != nil {
			return err
		}

		match, ok := dst.MatchBuild(src)
		if !ok {
			fmt.Println("Schema match failed.")
			return fmt.Errorf("schema match failed")
		}
		fmt.Println(string(match.ToJSON()))
		return nil
	},
}

func loadSchemaFile(path, header string) (*schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, printDiag(header, err)
	}
	s, err := schema.FromJSON(data)
	if err != nil {
		return nil, printDiag(header, err)
	}
	return s, nil
}

func init() {
	schemaCmd.AddCommand(schemaValidateCmd)
	schemaCmd.AddCommand(schemaMatchCmd)
	rootCmd.AddCommand(schemaCmd)
}

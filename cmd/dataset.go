package cmd

import (
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/easeml/easemlschema/dataset"
	"github.com/easeml/easemlschema/schema"
)

var generateConfigPath string

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Operations with ease.ml datasets",
}

var datasetValidateCmd = &cobra.Command{
	Use:   "validate [root]",
	Short: "Check if the given dataset is valid and print its inferred schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inferred, err := inferDataset(args[0])
		if err != nil {
			return err
		}
		fmt.Println(string(inferred.ToJSON()))
		return nil
	},
}

var datasetMatchCmd = &cobra.Command{
	Use:   "match [root] [schema]",
	Short: "Check if a dataset matches a given schema",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inferred, err := inferDataset(args[0])
		if err != nil {
			return err
		}
		dst, err := loadSchemaFile(args[1], "Destination schema validation error")
		if err != nil {
			return err
		}

		match, ok := dst.MatchBuild(inferred)
		if !ok {
			fmt.Println("Schema match failed.")
			return fmt.Errorf("schema match failed")
		}
		fmt.Println(string(match.ToJSON()))
		return nil
	},
}

var datasetGenerateCmd = &cobra.Command{
	Use:   "generate [root] [schema]",
	Short: "Generate a random dataset from a given schema",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSchemaFile(args[1], "Schema validation error")
		if err != nil {
			return err
		}

		cfg, err := loadGenerateConfig(generateConfigPath)
		if err != nil {
			return err
		}

		ds, err := dataset.Generate(s, cfg)
		if err != nil {
			return printDiag("Dataset generation error", err)
		}

		op := dataset.NewFS(osfs.New(args[0]))
		if err := ds.Dump(op, ""); err != nil {
			return printDiag("Dataset generation error", err)
		}
		return nil
	},
}

// generateFileConfig mirrors the [generate] table of the optional TOML
// configuration file.
type generateFileConfig struct {
	Generate struct {
		Samples   int   `toml:"samples"`
		Instances int   `toml:"instances"`
		Seed      int64 `toml:"seed"`
	} `toml:"generate"`
}

func loadGenerateConfig(path string) (dataset.GenerateConfig, error) {
	cfg := dataset.DefaultGenerateConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, printDiag("Dataset generation error", err)
	}
	var file generateFileConfig
	if err := toml.Unmarshal(data, &file); err != nil {
		return cfg, printDiag("Dataset generation error", err)
	}
	if file.Generate.Samples > 0 {
		cfg.Samples = file.Generate.Samples
	}
	if file.Generate.Instances > 0 {
		cfg.Instances = file.Generate.Instances
	}
	cfg.Seed = file.Generate.Seed
	return cfg, nil
}

func inferDataset(root string) (*schema.Schema, error) {
	op := dataset.NewFS(osfs.New(root))
	ds, err := dataset.Load(op, "", true)
	if err != nil {
		return nil, printDiag("Dataset loading error", err)
	}
	inferred, err := ds.InferSchema()
	if err != nil {
		return nil, printDiag("Dataset schema inference error", err)
	}
	return inferred, nil
}

func init() {
	datasetGenerateCmd.Flags().StringVar(&generateConfigPath, "config", "",
		"Path to a TOML file with generation settings")

	datasetCmd.AddCommand(datasetValidateCmd)
	datasetCmd.AddCommand(datasetMatchCmd)
	datasetCmd.AddCommand(datasetGenerateCmd)
	rootCmd.AddCommand(datasetCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phanatic/phanatic/internal/config"
)

var validateConfigCommand = &cobra.Command{
	Use:   "validate-config [config-file]",
	Short: "Validate a config file against the schema and value rules",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidateConfig,
}

var validateForRun bool

func init() {
	validateConfigCommand.Flags().BoolVar(&validateForRun, "run", false, "Also check the input and output directories a run needs")

	rootCmd.AddCommand(validateConfigCommand)
}

func runValidateConfig(_ *cobra.Command, args []string) error {
	path := configPath
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("a config file is required (argument or --config)")
	}

	cfg, err := config.LoadConfig(path)
	if err == nil {
		if validateForRun {
			err = cfg.ValidateForRun()
		} else {
			err = cfg.Validate()
		}
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stdout, "Validation failed: %v\n", err)
		return err
	}

	_, _ = fmt.Fprintf(os.Stdout, "Validation passed: %s\n", path)
	return nil
}

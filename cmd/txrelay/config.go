// cmd/txrelay/config.go
package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/txrelay/internal/config"
	"github.com/altuslabsxyz/txrelay/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage txrelay configuration",
		Long:  `Commands for managing the txrelay.toml configuration file.`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  `Displays the effective configuration after merging defaults, file, environment variables and flags.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if flagJSON {
				return output.DefaultLogger.JSON(config.ToFile(cfg))
			}

			data, err := toml.Marshal(config.ToFile(cfg))
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			output.Cyan("# Effective txrelay configuration")
			output.Println("%s", output.CyanSeparator())
			output.Print("%s", data)
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir := config.DefaultDataDir()
			if flagDataDir != "" {
				dataDir = flagDataDir
			}
			path := config.NewLoader(dataDir, flagConfigPath).Path()

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
			}

			cfg := config.DefaultConfig()
			cfg.Client.DataDir = dataDir
			applyFlagOverrides(cmd, cfg)
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Write(path, cfg); err != nil {
				return err
			}
			output.Success("Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

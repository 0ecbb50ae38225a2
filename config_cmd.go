// ABOUTME: Config subcommand
// ABOUTME: Opens the config file in EDITOR, creating it with defaults first
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sendspin/varispeed-go/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Edit the varispeed config file",
	Long:    paragraph(fmt.Sprintf("\n%s the varispeed config file. We'll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("varispeed config\nvarispeed config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	// a missing or broken file is fine here
	PersistentPreRunE: func(*cobra.Command, []string) error {
		if path, _ := config.Init(viper.GetViper(), envConfig, configFile); path != "" {
			configFile = path
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.EnsureFile(configFile); err != nil {
			return err
		}

		c, err := editor.Cmd("Varispeed", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Wrote config file to:", configFile)
		return nil
	},
}

// ABOUTME: Entry point for the varispeed player
// ABOUTME: Builds the command tree and loads configuration before any command runs
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sendspin/varispeed-go/internal/config"
	"github.com/Sendspin/varispeed-go/internal/version"
)

var (
	configFile string
	envConfig  config.Env
	settings   = config.DefaultConfig()

	rootCmd = &cobra.Command{
		Use:   "varispeed",
		Short: "Play and render audio at any speed and pitch",
		Long: paragraph(
			fmt.Sprintf("\nChange playback %s independently, live or offline.", keyword("speed and pitch")),
		),
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

// loadConfig reads the config file, environment and bound flags into settings
func loadConfig(*cobra.Command, []string) error {
	path, err := config.Init(viper.GetViper(), envConfig, configFile)
	if err != nil {
		return err
	}
	configFile = path

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	settings = cfg
	return nil
}

func main() {
	e, err := config.ParseEnv()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	envConfig = e

	closer, err := setupLog(envConfig)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		log.Error("Command failed", "err", err)
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	rootCmd.Version = version.Version

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is searched in the user config directory)")
	rootCmd.PersistentFlags().Float64("speed", 1, "playback speed, tempo only")
	rootCmd.PersistentFlags().Float64("pitch", 1, "pitch factor, tempo unchanged")
	rootCmd.PersistentFlags().Float64("rate", 1, "rate, changes tempo and pitch together")

	_ = viper.BindPFlag("speed", rootCmd.PersistentFlags().Lookup("speed"))
	_ = viper.BindPFlag("pitch", rootCmd.PersistentFlags().Lookup("pitch"))
	_ = viper.BindPFlag("rate", rootCmd.PersistentFlags().Lookup("rate"))

	rootCmd.AddCommand(playCmd, renderCmd, analyzeCmd, configCmd, manCmd)
}

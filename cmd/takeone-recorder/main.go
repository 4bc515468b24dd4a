package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/takeonehq/recorder/internal/config"
)

var (
	version = "0.1.0"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "takeone-recorder",
	Short: "TakeOne screen recorder",
	Long:  `TakeOne - composited screen and canvas recorder with dual-format output`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("TakeOne Recorder v%s\n", version)
	},
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List available recording profiles",
	Run: func(cmd *cobra.Command, args []string) {
		listProfiles()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the user config dir)")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(ctlCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func listProfiles() {
	names, err := config.ListProfiles()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list profiles: %v\n", err)
		os.Exit(1)
	}
	if len(names) == 0 {
		fmt.Printf("No profiles found in %s\n", config.ProfilesDir())
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

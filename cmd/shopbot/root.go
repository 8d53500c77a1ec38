package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "shopbot",
	Short:         "Telegram storefront bot",
	Long:          `shopbot lets customers browse a catalog through inline menus, fill a cart and send the order to the shop operators.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configPath string

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $CONFIG_PATH or configs/config.yaml)")
}

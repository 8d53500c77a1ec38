package main

import (
	"github.com/spf13/cobra"

	"github.com/m3rciful/shopbot/shop/app"
)

var checkCatalogCmd = &cobra.Command{
	Use:   "check-catalog [path]",
	Short: "Validate a catalog file without starting the bot",
	Long:  `Loads the catalog, reports every structural problem with its line and prints a summary when the file is valid.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "configs/catalog.yaml"
		if len(args) > 0 {
			path = args[0]
		} else if configPath != "" {
			cfg, err := app.LoadConfig(configPath)
			if err != nil {
				return err
			}
			path = cfg.Shop.CatalogPath
		}
		_, err := app.CheckCatalog(path, cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCmd.AddCommand(checkCatalogCmd)
}

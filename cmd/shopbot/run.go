package main

import (
	"context"

	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/shopbot/core/cmd"
	"github.com/m3rciful/shopbot/shop/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return corecmd.Run(corecmd.Options{
			ConfigPath:        configPath,
			ConfigEnvVar:      "CONFIG_PATH",
			DefaultConfigPath: "configs/config.yaml",
			Context:           cmd.Context(),
			LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
				return app.LoadConfig(path)
			},
			Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
				return app.Bootstrap(ctx, cfg.(*app.Config), app.Options{})
			},
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

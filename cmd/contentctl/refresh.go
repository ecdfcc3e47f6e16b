package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [kind...]",
	Short: "Rebuild mirror files from the store (all kinds by default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := parseKinds(args)
		if err != nil {
			return err
		}
		if err := content.Refresh(cmd.Context(), kinds...); err != nil {
			return err
		}
		log.Info().Str("root", files.Root()).Msg("mirror refreshed")
		return nil
	},
}

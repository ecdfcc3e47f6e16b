package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [kind...]",
	Short: "Seed the store from an existing mirror tree",
	Long: `Reads the mirror tree under the data root and upserts every document into
the store, keyed by locale (home, contact) or locale and slug (collections).
Running it twice merges instead of duplicating. Users are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := parseKinds(args)
		if err != nil {
			return err
		}
		n, err := content.Import(cmd.Context(), files, kinds...)
		if err != nil {
			return err
		}
		log.Info().Int("documents", n).Str("root", files.Root()).Msg("import finished")
		return nil
	},
}

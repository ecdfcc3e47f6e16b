package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"realty_content/internal/adapters/observability"
	"realty_content/internal/app"
	"realty_content/internal/domain"
	"realty_content/internal/locale"
	"realty_content/internal/mirror"
	"realty_content/internal/shared"
	"realty_content/internal/storage"
)

var (
	cfg      shared.Config
	store    domain.DocumentStore
	files    *mirror.Writer
	content  *app.ContentService
	users    *app.UserService
	dataRoot string
)

var rootCmd = &cobra.Command{
	Use:   "contentctl",
	Short: "Maintain the content store and its per-locale JSON mirror",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := shared.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		if dataRoot != "" {
			cfg.DataRoot = dataRoot
		}
		log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

		ctx := cmd.Context()
		s, err := storage.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate store: %w", err)
		}
		store = s

		resolver := locale.NewResolver(cfg.Locales)
		files = mirror.New(afero.NewOsFs(), cfg.DataRoot)
		syncer := app.NewSyncer(store, files, resolver.Supported(), cfg.Workers)
		validator := app.NewValidator(resolver)
		content = app.NewContentService(store, files, syncer, validator, nil)
		users = app.NewUserService(store, syncer, validator)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close(context.Background())
		}
	},
	SilenceUsage: true,
}

func parseKinds(args []string) ([]domain.Kind, error) {
	var kinds []domain.Kind
	for _, a := range args {
		k, err := domain.ParseKind(a)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataRoot, "data-root", "", "Mirror root directory (overrides DATA_ROOT)")
	rootCmd.AddCommand(refreshCmd, importCmd, usersCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if domain.IsValidation(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	server "realty_content/internal/adapters/http_server"
	"realty_content/internal/adapters/observability"
	redisad "realty_content/internal/adapters/redis"
	"realty_content/internal/app"
	"realty_content/internal/domain"
	"realty_content/internal/locale"
	"realty_content/internal/mirror"
	"realty_content/internal/shared"
	"realty_content/internal/storage"
)

func main() {
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, observability.MetricsHandler(reg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// store
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("store open failed")
	}
	defer store.Close(context.Background())
	if err := store.Migrate(ctx); err != nil {
		// public reads keep working from the mirror
		log.Warn().Err(err).Str("driver", cfg.StoreDriver).Msg("store migration failed; starting degraded")
	} else {
		log.Info().Str("driver", cfg.StoreDriver).Msg("document store ready")
	}

	// deps
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		cache = rc
	}
	resolver := locale.NewResolver(cfg.Locales)
	files := mirror.New(afero.NewOsFs(), cfg.DataRoot)
	syncer := app.NewSyncer(store, files, resolver.Supported(), cfg.Workers)
	validator := app.NewValidator(resolver)

	content := app.NewContentService(store, files, syncer, validator, cache)
	users := app.NewUserService(store, syncer, validator)
	queries := app.NewQueryService(store, files, resolver, cache, cfg.CacheTTL)

	var auth server.Authenticator
	if cfg.AdminAuth {
		auth = users
	}

	// http
	srv := server.New(server.Options{CORSOrigins: cfg.CORSOrigins})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Q:         queries,
		C:         content,
		U:         users,
		Store:     store,
		Auth:      auth,
		AdminRate: cfg.AdminRate,
		Refresh:   rate.NewLimiter(rate.Every(cfg.RefreshInterval), 1),
	})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("data_root", files.Root()).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}

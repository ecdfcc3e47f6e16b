// Package storage selects the configured document store backend.
package storage

import (
	"context"

	"github.com/rotisserie/eris"

	"realty_content/internal/domain"
	"realty_content/internal/shared"
	"realty_content/internal/storage/mongo"
	"realty_content/internal/storage/sqldoc"
)

// Open builds the process-wide store handle for cfg.StoreDriver. No backend
// requires the server to be reachable at this point.
func Open(ctx context.Context, cfg shared.Config) (domain.DocumentStore, error) {
	var (
		store domain.DocumentStore
		err   error
	)
	switch cfg.StoreDriver {
	case "mongo":
		var s *mongo.Store
		if s, err = mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDB); err == nil {
			store = s
		}
	case "mysql", "sqlite":
		dsn := cfg.MySQLDSN
		if cfg.StoreDriver == "sqlite" {
			dsn = cfg.SQLitePath
		}
		var s *sqldoc.Store
		if s, err = sqldoc.Open(sqldoc.Dialect(cfg.StoreDriver), dsn); err == nil {
			store = s
		}
	default:
		err = eris.Errorf("storage: unknown driver %q", cfg.StoreDriver)
	}
	return store, err
}

package domain

import "context"

// Query filters a collection. Zero-valued fields do not constrain.
type Query struct {
	// Locale matches the kind's locale field exactly.
	Locale string
	// IncludeUntagged also matches legacy documents that have no locale field.
	IncludeUntagged bool
	Slug            string
	Status          string
	GroupID         string
	Email           string
}

// DocumentStore is the single source of truth for content.
type DocumentStore interface {
	// Write paths
	Insert(ctx context.Context, k Kind, fields map[string]any) (ID, error)
	// Update merges fields over the stored document (shallow $set semantics).
	Update(ctx context.Context, k Kind, id ID, fields map[string]any) error
	// Upsert merge-replaces the first document matching q, or inserts fields.
	Upsert(ctx context.Context, k Kind, q Query, fields map[string]any) (ID, error)
	Increment(ctx context.Context, k Kind, id ID, field string, delta int64) error
	Delete(ctx context.Context, k Kind, id ID) error

	// Read paths
	FindByID(ctx context.Context, k Kind, id ID) (Document, error)
	Find(ctx context.Context, k Kind, q Query) ([]Document, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close(ctx context.Context) error
}

// Mirror keeps the per-locale JSON export in sync with the store.
type Mirror interface {
	Mirror(k Kind, locale string, docs []Document) error
	Remove(k Kind, locale, slug string) error
	ReadSingleton(k Kind, locale string) (Document, error)
	ReadEntry(k Kind, locale, slug string) (Document, error)
	ReadIndex(k Kind, locale string) ([]Document, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
}

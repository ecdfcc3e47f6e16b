package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"realty_content/internal/app"
	"realty_content/internal/domain"
	"realty_content/internal/locale"
	"realty_content/internal/mirror"
	"realty_content/internal/storage/sqldoc"
)

type harness struct {
	store   *sqldoc.Store
	fs      afero.Fs
	mirror  *mirror.Writer
	content *app.ContentService
	queries *app.QueryService
	users   *app.UserService
}

func newHarness(t *testing.T, fs afero.Fs, cache domain.Cache) *harness {
	t.Helper()
	store, err := sqldoc.Open(sqldoc.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	require.NoError(t, store.Migrate(context.Background()))

	if fs == nil {
		fs = afero.NewMemMapFs()
	}
	w := mirror.New(fs, "/data")
	syncer := app.NewSyncer(store, w, locale.DefaultSupported, 2)
	v := app.NewValidator(locale.NewResolver(nil))
	return &harness{
		store:   store,
		fs:      fs,
		mirror:  w,
		content: app.NewContentService(store, w, syncer, v, cache),
		queries: app.NewQueryService(store, w, locale.NewResolver(nil), cache, time.Minute),
		users:   app.NewUserService(store, syncer, v),
	}
}

// downStore answers every call as if the database were unreachable.
type downStore struct{ domain.DocumentStore }

func (downStore) Insert(context.Context, domain.Kind, map[string]any) (domain.ID, error) {
	return "", domain.ErrStoreUnavailable
}

func (downStore) Update(context.Context, domain.Kind, domain.ID, map[string]any) error {
	return domain.ErrStoreUnavailable
}

func (downStore) Upsert(context.Context, domain.Kind, domain.Query, map[string]any) (domain.ID, error) {
	return "", domain.ErrStoreUnavailable
}

func (downStore) Delete(context.Context, domain.Kind, domain.ID) error {
	return domain.ErrStoreUnavailable
}

func (downStore) Find(context.Context, domain.Kind, domain.Query) ([]domain.Document, error) {
	return nil, domain.ErrStoreUnavailable
}

func (downStore) FindByID(context.Context, domain.Kind, domain.ID) (domain.Document, error) {
	return domain.Document{}, domain.ErrStoreUnavailable
}

func cityPayload(slug string) map[string]any {
	return map[string]any{
		"slug":             slug,
		"name":             "La Jolla",
		"state":            "CA",
		"population":       42000.0,
		"avgHomePrice":     "$2,100,000",
		"shortDescription": "Coastal village",
		"tags":             []any{"beach", "luxury"},
		"neighborhoods": []any{
			map[string]any{"name": "Bird Rock", "slug": "bird-rock", "county": "San Diego"},
		},
		"highlights": []any{map[string]any{"title": "Cove", "description": "Sea lions"}},
		"faqs":       []any{map[string]any{"question": "Is it walkable?", "answer": "Yes"}},
		"seo":        map[string]any{"metaTitle": "La Jolla homes"},
	}
}

func blogPayload(slug, lang, status string) map[string]any {
	return map[string]any{
		"slug":     slug,
		"title":    "Buying in " + slug,
		"category": "Guides",
		"author": map[string]any{
			"name": "Ana", "title": "Agent", "avatar": "/a.jpg", "bio": "Local agent",
		},
		"date":          "2025-03-01",
		"readTime":      "5 min",
		"heroImage":     "/hero.jpg",
		"heroImageAlt":  "Coastline",
		"canonicalUrl":  "https://example.com/blog/" + slug,
		"language":      lang,
		"city":          "La Jolla",
		"topic":         "buying",
		"keyword":       "la jolla homes",
		"group_id":      "buying-guide",
		"seo":           map[string]any{"metaTitle": "Buying", "metaDescription": "How to buy"},
		"hreflang_tags": []any{"en", "es"},
		"wordcount":     1200.0,
		"ctaSection":    map[string]any{"title": "Talk to us", "ctaText": "Contact", "ctaLink": "/contact"},
		"content": map[string]any{
			"lead":     "Start here.",
			"sections": []any{map[string]any{"title": "Step one", "body": "Get pre-approved."}},
		},
		"status": status,
	}
}

func slugs(docs []domain.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Slug())
	}
	return out
}

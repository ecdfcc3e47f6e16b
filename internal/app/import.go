package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"realty_content/internal/domain"
)

// MirrorSource is a mirror tree that can enumerate its locales.
type MirrorSource interface {
	domain.Mirror
	Locales(k domain.Kind) ([]string, error)
}

// Import seeds the store from an existing mirror tree, keyed by locale for
// singletons and by (locale, slug) for collections. Existing documents are
// merged, not duplicated. Validation is skipped: mirrored data predates it.
// Users are never imported because their files carry no password hash.
func (s *ContentService) Import(ctx context.Context, src MirrorSource, kinds ...domain.Kind) (int, error) {
	if len(kinds) == 0 {
		kinds = domain.ContentKinds
	}
	n := 0
	for _, k := range kinds {
		if k == domain.KindUsers {
			continue
		}
		locales, err := src.Locales(k)
		if err != nil {
			return n, fmt.Errorf("list %s locales: %w", k, err)
		}
		for _, l := range locales {
			docs, err := s.readForImport(src, k, l)
			if err != nil {
				return n, err
			}
			for _, d := range docs {
				fields := d.Clone().Fields
				fields[k.LocaleField()] = l
				q := domain.Query{Locale: l}
				if !k.Singleton() {
					if d.Slug() == "" {
						continue
					}
					q.Slug = d.Slug()
				}
				if _, err := s.store.Upsert(ctx, k, q, fields); err != nil {
					return n, fmt.Errorf("import %s/%s: %w", k, l, err)
				}
				n++
			}
			log.Info().Str("kind", string(k)).Str("locale", l).Int("documents", len(docs)).Msg("imported mirror")
		}
	}
	bumpGeneration(ctx, s.cache, kinds...)
	return n, nil
}

func (s *ContentService) readForImport(src MirrorSource, k domain.Kind, l string) ([]domain.Document, error) {
	if k.Singleton() {
		d, err := src.ReadSingleton(k, l)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", k, l, err)
		}
		return []domain.Document{d}, nil
	}
	docs, err := src.ReadIndex(k, l)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s index: %w", k, l, err)
	}
	return docs, nil
}

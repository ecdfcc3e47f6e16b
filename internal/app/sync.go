package app

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"realty_content/internal/domain"
	"realty_content/internal/locale"
)

// Syncer regenerates mirror files from the store. Every call re-reads the
// full current set for a (kind, locale) instead of patching files.
type Syncer struct {
	store   domain.DocumentStore
	mirror  domain.Mirror
	locales []string
	workers int64
}

func NewSyncer(store domain.DocumentStore, mirror domain.Mirror, locales []string, workers int) *Syncer {
	if workers <= 0 {
		workers = 4
	}
	return &Syncer{store: store, mirror: mirror, locales: locales, workers: int64(workers)}
}

// docLocale maps legacy untagged documents to English.
func docLocale(k domain.Kind, d domain.Document) string {
	if l := d.Locale(k); l != "" {
		return l
	}
	return locale.English
}

// SyncLocale rewrites the mirror for kind k in locale l. Users ignore l.
func (s *Syncer) SyncLocale(ctx context.Context, k domain.Kind, l string) error {
	if k == domain.KindUsers {
		docs, err := s.store.Find(ctx, k, domain.Query{})
		if err != nil {
			return &domain.MirrorError{Kind: k, Err: err}
		}
		if err := s.mirror.Mirror(k, "", docs); err != nil {
			return &domain.MirrorError{Kind: k, Err: err}
		}
		return nil
	}

	docs, err := s.store.Find(ctx, k, domain.Query{Locale: l, IncludeUntagged: l == locale.English})
	if err != nil {
		return &domain.MirrorError{Kind: k, Locale: l, Err: err}
	}
	if k.Singleton() {
		if len(docs) == 0 {
			return nil // nothing stored yet; readers fall through to defaults
		}
		docs = docs[:1]
	}
	if err := s.mirror.Mirror(k, l, docs); err != nil {
		return &domain.MirrorError{Kind: k, Locale: l, Err: err}
	}
	return nil
}

// SyncAll rebuilds every (kind, locale) pair: the configured locales plus any
// locale found on stored documents. Pairs run concurrently, bounded by the
// worker count; all failures are returned joined.
func (s *Syncer) SyncAll(ctx context.Context, kinds []domain.Kind) error {
	type job struct {
		kind   domain.Kind
		locale string
	}
	var jobs []job
	for _, k := range kinds {
		if k == domain.KindUsers {
			jobs = append(jobs, job{kind: k})
			continue
		}
		ls, err := s.localesOf(ctx, k)
		if err != nil {
			return &domain.MirrorError{Kind: k, Err: err}
		}
		for _, l := range ls {
			jobs = append(jobs, job{kind: k, locale: l})
		}
	}

	sem := semaphore.NewWeighted(s.workers)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, j := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			defer sem.Release(1)

			if err := s.SyncLocale(ctx, j.kind, j.locale); err != nil {
				log.Warn().Err(err).Str("kind", string(j.kind)).Str("locale", j.locale).Msg("mirror refresh failed")
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			log.Debug().Str("kind", string(j.kind)).Str("locale", j.locale).Msg("mirror refreshed")
		}(j)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (s *Syncer) localesOf(ctx context.Context, k domain.Kind) ([]string, error) {
	set := map[string]bool{}
	for _, l := range s.locales {
		set[l] = true
	}
	docs, err := s.store.Find(ctx, k, domain.Query{})
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		set[docLocale(k, d)] = true
	}
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out, nil
}

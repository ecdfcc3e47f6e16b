package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"realty_content/internal/domain"
	"realty_content/internal/locale"
)

// Result is the outcome of a public read: what was served and where it came
// from. Fallback is set when the served locale differs from the requested one.
type Result struct {
	Kind      domain.Kind       `json:"kind"`
	Requested string            `json:"requested"`
	Locale    string            `json:"locale"`
	Source    locale.Source     `json:"source"`
	Fallback  bool              `json:"fallback"`
	Document  *domain.Document  `json:"document,omitempty"`
	Documents []domain.Document `json:"documents,omitempty"`
}

// Translation points at the same blog post in another locale.
type Translation struct {
	Locale string `json:"locale"`
	Slug   string `json:"slug"`
	Title  string `json:"title"`
}

// QueryService is the read path. Public reads walk the resolver's plan and
// never fail on store or file errors; they fall through to the next step.
type QueryService struct {
	store    domain.DocumentStore
	mirror   domain.Mirror
	resolver *locale.Resolver
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(store domain.DocumentStore, mirror domain.Mirror, r *locale.Resolver, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{store: store, mirror: mirror, resolver: r, cache: c, cacheTTL: ttl}
}

func (s *QueryService) Resolver() *locale.Resolver { return s.resolver }

// GetSingleton serves home or contact. The embedded default is the last
// step, so this only errors if that default cannot be decoded.
func (s *QueryService) GetSingleton(ctx context.Context, k domain.Kind, l string) (Result, error) {
	if !k.Singleton() {
		return Result{}, fmt.Errorf("%s is not a singleton kind", k)
	}
	for _, step := range s.resolver.Plan(k, l, false) {
		res := Result{Kind: k, Requested: l, Locale: step.Locale, Source: step.Source, Fallback: step.Fallback}
		switch step.Source {
		case locale.FromStore:
			docs, ok := s.storeFind(ctx, k, step, domain.Query{})
			if !ok || len(docs) == 0 {
				continue
			}
			res.Document = &docs[0]
			return res, nil
		case locale.FromFile:
			d, err := s.mirror.ReadSingleton(k, step.Locale)
			if err != nil {
				s.fileMiss(k, step, err)
				continue
			}
			res.Document = &d
			return res, nil
		case locale.FromDefault:
			d, err := DefaultDocument(k)
			if err != nil {
				return Result{}, err
			}
			res.Document = &d
			return res, nil
		}
	}
	return Result{}, domain.ErrNotFound
}

// List serves a collection for locale l. Exhausting the plan is a valid
// empty listing, reported with Source NotFound.
func (s *QueryService) List(ctx context.Context, k domain.Kind, l string) (Result, error) {
	if k.Singleton() || !k.Localized() {
		return Result{}, fmt.Errorf("%s is not a public collection", k)
	}
	for _, step := range s.resolver.Plan(k, l, false) {
		res := Result{Kind: k, Requested: l, Locale: step.Locale, Source: step.Source, Fallback: step.Fallback}
		switch step.Source {
		case locale.FromStore:
			docs, ok := s.storeFind(ctx, k, step, domain.Query{})
			if !ok {
				continue
			}
			if len(docs) == 0 && !step.StopOnEmpty {
				continue
			}
			res.Documents = docs
			return res, nil
		case locale.FromFile:
			docs, err := s.mirror.ReadIndex(k, step.Locale)
			if err == nil && len(docs) == 0 {
				err = domain.ErrNotFound
			}
			if err != nil {
				s.fileMiss(k, step, err)
				continue
			}
			res.Documents = docs
			return res, nil
		case locale.NotFound:
			res.Documents = []domain.Document{}
			return res, nil
		}
	}
	return Result{Kind: k, Requested: l, Locale: l, Source: locale.NotFound, Documents: []domain.Document{}}, nil
}

// Get serves one collection entry by slug. Exhausting the plan returns
// domain.ErrNotFound.
func (s *QueryService) Get(ctx context.Context, k domain.Kind, l, slug string) (Result, error) {
	if k.Singleton() || !k.Localized() {
		return Result{}, fmt.Errorf("%s is not a public collection", k)
	}
	for _, step := range s.resolver.Plan(k, l, true) {
		res := Result{Kind: k, Requested: l, Locale: step.Locale, Source: step.Source, Fallback: step.Fallback}
		switch step.Source {
		case locale.FromStore:
			docs, ok := s.storeFind(ctx, k, step, domain.Query{Slug: slug})
			if !ok || len(docs) == 0 {
				continue
			}
			res.Document = &docs[0]
			return res, nil
		case locale.FromFile:
			d, err := s.mirror.ReadEntry(k, step.Locale, slug)
			if err != nil {
				s.fileMiss(k, step, err)
				continue
			}
			res.Document = &d
			return res, nil
		case locale.NotFound:
			return res, domain.ErrNotFound
		}
	}
	return Result{Kind: k, Requested: l, Source: locale.NotFound}, domain.ErrNotFound
}

// Translations lists the published variants of a blog post sharing groupID,
// one per locale. Mirrored indexes answer when the store cannot.
func (s *QueryService) Translations(ctx context.Context, groupID string) ([]Translation, error) {
	docs, err := s.store.Find(ctx, domain.KindBlogs, domain.Query{GroupID: groupID, Status: domain.StatusPublished})
	if err != nil {
		log.Debug().Err(err).Str("group_id", groupID).Msg("store unavailable for translations; reading mirror")
		docs = nil
		for _, l := range s.resolver.Supported() {
			idx, err := s.mirror.ReadIndex(domain.KindBlogs, l)
			if err != nil {
				continue
			}
			for _, d := range idx {
				if d.String("group_id") == groupID {
					docs = append(docs, d)
				}
			}
		}
	}

	seen := map[string]bool{}
	out := make([]Translation, 0, len(docs))
	for _, d := range docs {
		l := docLocale(domain.KindBlogs, d)
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, Translation{Locale: l, Slug: d.Slug(), Title: d.String("title")})
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Locale < out[j].Locale })
	return out, nil
}

// ListAll is the admin listing: store only, drafts included. An empty
// locale lists every locale; "en" includes legacy untagged documents.
func (s *QueryService) ListAll(ctx context.Context, k domain.Kind, l string) ([]domain.Document, error) {
	q := domain.Query{}
	if l != "" && k.Localized() {
		q.Locale = l
		q.IncludeUntagged = l == locale.English
	}
	docs, err := s.store.Find(ctx, k, q)
	if err != nil {
		return nil, err
	}
	if k == domain.KindUsers {
		for i := range docs {
			docs[i] = docs[i].Without("password")
		}
	}
	return docs, nil
}

// GetByID is the admin read by identifier, in either representation.
func (s *QueryService) GetByID(ctx context.Context, k domain.Kind, id domain.ID) (domain.Document, error) {
	d, err := s.store.FindByID(ctx, k, id)
	if err != nil {
		return domain.Document{}, err
	}
	if k == domain.KindUsers {
		d = d.Without("password")
	}
	return d, nil
}

// storeFind runs one store step through the cache. ok is false when the
// store could not answer; the caller then moves to the next step.
func (s *QueryService) storeFind(ctx context.Context, k domain.Kind, step locale.Step, q domain.Query) ([]domain.Document, bool) {
	q.Locale = step.Locale
	q.IncludeUntagged = step.IncludeUntagged
	if k == domain.KindBlogs {
		q.Status = domain.StatusPublished
	}

	key := contentKey(k, generation(ctx, s.cache, k), step.Locale, fmt.Sprint(step.IncludeUntagged), q.Slug)
	if s.cache != nil {
		var cached []domain.Document
		ok, err := s.cache.Get(ctx, key, &cached)
		switch {
		case ok && err == nil:
			return cached, true
		case ok:
			// present but undecodable
			log.Warn().Err(err).Str("key", key).Msg("dropping unreadable cache entry")
			_ = s.cache.Del(ctx, key)
		}
	}

	docs, err := s.store.Find(ctx, k, q)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(k)).Str("locale", step.Locale).Msg("store read failed; falling through")
		return nil, false
	}
	if s.cache != nil && len(docs) > 0 {
		_ = s.cache.Set(ctx, key, docs, int(s.cacheTTL.Seconds()))
	}
	return docs, true
}

func (s *QueryService) fileMiss(k domain.Kind, step locale.Step, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	log.Warn().Err(err).Str("kind", string(k)).Str("locale", step.Locale).Msg("mirror read failed; falling through")
}

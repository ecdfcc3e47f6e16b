package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"realty_content/internal/domain"
	"realty_content/internal/locale"
)

// ContentService is the write path: validate, mutate the store, then mirror.
// A committed mutation is never rolled back because its mirror failed; the
// failure is logged and the next mutation or refresh reconciles the files.
type ContentService struct {
	store    domain.DocumentStore
	sync     *Syncer
	mirror   domain.Mirror
	validate *Validator
	cache    domain.Cache
	now      func() time.Time
}

func NewContentService(store domain.DocumentStore, mirror domain.Mirror, syncer *Syncer, v *Validator, cache domain.Cache) *ContentService {
	return &ContentService{
		store:    store,
		sync:     syncer,
		mirror:   mirror,
		validate: v,
		cache:    cache,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ContentService) stamp() string { return s.now().Format(time.RFC3339Nano) }

func requireCollection(k domain.Kind) error {
	switch k {
	case domain.KindCities, domain.KindCounties, domain.KindBlogs:
		return nil
	}
	return fmt.Errorf("%s is not an editable collection", k)
}

// Create validates and inserts one collection document, then mirrors its
// locale. The returned ID is the store's generated identifier.
func (s *ContentService) Create(ctx context.Context, k domain.Kind, payload map[string]any) (domain.ID, error) {
	if err := requireCollection(k); err != nil {
		return "", err
	}
	fields := domain.NewDocument("", payload).Fields
	normalizeLocaleField(k, fields)
	if err := s.validate.Create(k, fields); err != nil {
		return "", err
	}

	lf := k.LocaleField()
	l := locale.Normalize(fmt.Sprint(valueOr(fields[lf], "")))
	if l == "" {
		return "", domain.NewValidationError(lf, "Invalid field "+lf+": must be a supported locale")
	}
	fields[lf] = l
	if k == domain.KindBlogs {
		if _, ok := fields["status"]; !ok {
			fields["status"] = domain.StatusDraft
		}
		for _, c := range []string{"views", "likes"} {
			if _, ok := fields[c]; !ok {
				fields[c] = 0.0
			}
		}
	}

	slug := strings.TrimSpace(fmt.Sprint(fields["slug"]))
	if err := s.ensureUniqueSlug(ctx, k, l, slug, ""); err != nil {
		return "", err
	}

	ts := s.stamp()
	fields["createdAt"] = ts
	fields["updatedAt"] = ts

	id, err := s.store.Insert(ctx, k, fields)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", k, err)
	}
	log.Info().Str("kind", string(k)).Str("id", id.String()).Str("slug", slug).Str("locale", l).Msg("content created")

	s.afterWrite(ctx, k, l)
	return id, nil
}

// Update merges patch over the stored document and mirrors the post-update
// state. A locale change re-mirrors both the old and the new locale.
func (s *ContentService) Update(ctx context.Context, k domain.Kind, id domain.ID, patch map[string]any) error {
	if err := requireCollection(k); err != nil {
		return err
	}
	fields := domain.NewDocument("", patch).Fields
	normalizeLocaleField(k, fields)
	if err := s.validate.Update(k, fields); err != nil {
		return err
	}
	delete(fields, "createdAt")

	prev, err := s.store.FindByID(ctx, k, id)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", k, id, err)
	}
	lf := k.LocaleField()
	if v, ok := fields[lf]; ok {
		l := locale.Normalize(fmt.Sprint(valueOr(v, "")))
		if l == "" {
			return domain.NewValidationError(lf, "Invalid field "+lf+": must be a supported locale")
		}
		fields[lf] = l
	}

	next := prev.Merge(fields)
	if next.Slug() != prev.Slug() || docLocale(k, next) != docLocale(k, prev) {
		if err := s.ensureUniqueSlug(ctx, k, docLocale(k, next), next.Slug(), prev.ID); err != nil {
			return err
		}
	}

	fields["updatedAt"] = s.stamp()
	if err := s.store.Update(ctx, k, prev.ID, fields); err != nil {
		return fmt.Errorf("update %s %s: %w", k, id, err)
	}

	post, err := s.store.FindByID(ctx, k, prev.ID)
	if err != nil {
		// the mutation is committed; mirror from what we merged locally
		log.Warn().Err(err).Str("kind", string(k)).Str("id", id.String()).Msg("re-read after update failed")
		post = next
	}
	log.Info().Str("kind", string(k)).Str("id", id.String()).Msg("content updated")

	s.afterWrite(ctx, k, docLocale(k, prev), docLocale(k, post))
	return nil
}

// Delete removes a collection document and its mirrored entry. The document
// is read first because the file path depends on its locale and slug.
func (s *ContentService) Delete(ctx context.Context, k domain.Kind, id domain.ID) error {
	if err := requireCollection(k); err != nil {
		return err
	}
	prev, err := s.store.FindByID(ctx, k, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", k, id, err)
	}
	if err := s.store.Delete(ctx, k, prev.ID); err != nil {
		return fmt.Errorf("delete %s %s: %w", k, id, err)
	}
	l := docLocale(k, prev)
	log.Info().Str("kind", string(k)).Str("id", id.String()).Str("slug", prev.Slug()).Str("locale", l).Msg("content deleted")

	if err := s.mirror.Remove(k, l, prev.Slug()); err != nil {
		log.Warn().Err(err).Str("kind", string(k)).Str("locale", l).Msg("mirror entry removal failed")
	}
	s.afterWrite(ctx, k, l)
	return nil
}

// PutSingleton upserts the home or contact document of one locale.
func (s *ContentService) PutSingleton(ctx context.Context, k domain.Kind, l string, payload map[string]any) (domain.ID, error) {
	if !k.Singleton() {
		return "", fmt.Errorf("%s is not a singleton kind", k)
	}
	l = locale.Normalize(l)
	if l == "" {
		return "", domain.NewValidationError("locale", "Invalid field locale: must be a supported locale")
	}
	fields := domain.NewDocument("", payload).Fields
	fields[k.LocaleField()] = l
	if err := s.validate.Create(k, fields); err != nil {
		return "", err
	}
	delete(fields, "createdAt")
	fields["updatedAt"] = s.stamp()

	id, err := s.store.Upsert(ctx, k, domain.Query{Locale: l}, fields)
	if err != nil {
		return "", fmt.Errorf("upsert %s/%s: %w", k, l, err)
	}
	log.Info().Str("kind", string(k)).Str("locale", l).Str("id", id.String()).Msg("content upserted")

	s.afterWrite(ctx, k, l)
	return id, nil
}

// RecordBlogEvent bumps a public counter ("views" or "likes") on a post.
// Counters live in the store only and do not trigger a mirror rewrite.
func (s *ContentService) RecordBlogEvent(ctx context.Context, l, slug, counter string) error {
	if counter != "views" && counter != "likes" {
		return domain.NewValidationError("counter", "Invalid field counter: must be views or likes")
	}
	docs, err := s.store.Find(ctx, domain.KindBlogs, domain.Query{
		Locale: l, IncludeUntagged: l == locale.English, Slug: slug, Status: domain.StatusPublished,
	})
	if err != nil {
		return fmt.Errorf("find blog %s/%s: %w", l, slug, err)
	}
	if len(docs) == 0 {
		return domain.ErrNotFound
	}
	if err := s.store.Increment(ctx, domain.KindBlogs, docs[0].ID, counter, 1); err != nil {
		return fmt.Errorf("increment %s: %w", counter, err)
	}
	bumpGeneration(ctx, s.cache, domain.KindBlogs)
	return nil
}

// Refresh rebuilds the mirror for the given kinds (all when empty).
func (s *ContentService) Refresh(ctx context.Context, kinds ...domain.Kind) error {
	if len(kinds) == 0 {
		kinds = append(append([]domain.Kind(nil), domain.ContentKinds...), domain.KindUsers)
	}
	err := s.sync.SyncAll(ctx, kinds)
	bumpGeneration(ctx, s.cache, kinds...)
	return err
}

func (s *ContentService) ensureUniqueSlug(ctx context.Context, k domain.Kind, l, slug string, self domain.ID) error {
	docs, err := s.store.Find(ctx, k, domain.Query{Locale: l, IncludeUntagged: l == locale.English, Slug: slug})
	if err != nil {
		return fmt.Errorf("check slug %s: %w", slug, err)
	}
	for _, d := range docs {
		if d.ID != self {
			return domain.NewValidationError("slug", fmt.Sprintf("Slug %q already exists for locale %q", slug, l))
		}
	}
	return nil
}

// afterWrite mirrors each touched locale and retires cached reads. Mirror
// failures are logged only.
func (s *ContentService) afterWrite(ctx context.Context, k domain.Kind, locales ...string) {
	seen := map[string]bool{}
	for _, l := range locales {
		if seen[l] {
			continue
		}
		seen[l] = true
		if err := s.sync.SyncLocale(ctx, k, l); err != nil {
			var me *domain.MirrorError
			if !errors.As(err, &me) {
				err = &domain.MirrorError{Kind: k, Locale: l, Err: err}
			}
			log.Error().Err(err).Str("kind", string(k)).Str("locale", l).Msg("mirror write failed; store change kept")
		}
	}
	bumpGeneration(ctx, s.cache, dependents(k)...)
}

// normalizeLocaleField rewrites a locale tag like "es-MX" to its base code
// so the supported-locale check sees the stored form. Empty and malformed
// values are left for the validator.
func normalizeLocaleField(k domain.Kind, fields map[string]any) {
	lf := k.LocaleField()
	raw, ok := fields[lf].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return
	}
	if l := locale.Normalize(raw); l != "" {
		fields[lf] = l
	}
}

func valueOr(v any, def any) any {
	if v == nil {
		return def
	}
	return v
}

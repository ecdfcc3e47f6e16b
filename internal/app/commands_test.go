package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realty_content/internal/app"
	"realty_content/internal/domain"
	"realty_content/internal/locale"
	"realty_content/internal/mirror"
)

func TestContent_CreateCityDefaultsToEnglishAndFallsBack(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	id, err := h.content.Create(ctx, domain.KindCities, cityPayload("la-jolla"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	stored, err := h.store.FindByID(ctx, domain.KindCities, id)
	require.NoError(t, err)
	assert.Equal(t, "en", stored.String("language"))
	assert.NotEmpty(t, stored.String("createdAt"))

	en, err := h.queries.List(ctx, domain.KindCities, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"la-jolla"}, slugs(en.Documents))
	assert.False(t, en.Fallback)

	es, err := h.queries.List(ctx, domain.KindCities, "es")
	require.NoError(t, err)
	assert.Equal(t, []string{"la-jolla"}, slugs(es.Documents))
	assert.True(t, es.Fallback)
	assert.Equal(t, "en", es.Locale)
	assert.Equal(t, locale.FromStore, es.Source)

	entry, err := h.mirror.ReadEntry(domain.KindCities, "en", "la-jolla")
	require.NoError(t, err)
	assert.Equal(t, id, entry.ID)
	index, err := h.mirror.ReadIndex(domain.KindCities, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"la-jolla"}, slugs(index))
}

func TestContent_BlogPublishToggleDrivesMirror(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	id, err := h.content.Create(ctx, domain.KindBlogs, blogPayload("first-home", "en", domain.StatusDraft))
	require.NoError(t, err)

	index, err := h.mirror.ReadIndex(domain.KindBlogs, "en")
	require.NoError(t, err)
	assert.Empty(t, index)
	_, err = h.mirror.ReadEntry(domain.KindBlogs, "en", "first-home")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, h.content.Update(ctx, domain.KindBlogs, id, map[string]any{
		"status": domain.StatusPublished, "title": "Your First Home",
	}))
	index, err = h.mirror.ReadIndex(domain.KindBlogs, "en")
	require.NoError(t, err)
	require.Len(t, index, 1)
	assert.Equal(t, "Your First Home", index[0].String("title"))
	assert.Equal(t, "Ana", index[0].String("author.name"))

	require.NoError(t, h.content.Update(ctx, domain.KindBlogs, id, map[string]any{"status": domain.StatusDraft}))
	index, err = h.mirror.ReadIndex(domain.KindBlogs, "en")
	require.NoError(t, err)
	assert.Empty(t, index)
	_, err = h.mirror.ReadEntry(domain.KindBlogs, "en", "first-home")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestContent_BlogStatusDefaultsToDraft(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	p := blogPayload("quiet-post", "en", "")
	delete(p, "status")
	id, err := h.content.Create(ctx, domain.KindBlogs, p)
	require.NoError(t, err)

	d, err := h.store.FindByID(ctx, domain.KindBlogs, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, d.String("status"))
	n, ok := d.Number("views")
	assert.True(t, ok)
	assert.Zero(t, n)
}

func TestContent_PutHomeStoreWinsOverStaleFile(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	_, err := h.content.PutSingleton(ctx, domain.KindHome, "fr", map[string]any{
		"hero":         map[string]any{"title": "Trouvez votre maison"},
		"testimonials": []any{map[string]any{"quote": "Parfait", "author": "Luc", "rating": 5.0}},
	})
	require.NoError(t, err)

	res, err := h.queries.GetSingleton(ctx, domain.KindHome, "fr")
	require.NoError(t, err)
	assert.Equal(t, locale.FromStore, res.Source)
	assert.Equal(t, "Trouvez votre maison", res.Document.String("hero.title"))

	require.NoError(t, afero.WriteFile(h.fs, h.mirror.Path(domain.KindHome, "fr", "home"), []byte("{broken"), 0o644))
	res, err = h.queries.GetSingleton(ctx, domain.KindHome, "fr")
	require.NoError(t, err)
	assert.Equal(t, locale.FromStore, res.Source)
	assert.Equal(t, "Trouvez votre maison", res.Document.String("hero.title"))

	// a second PUT merges into the same locale document
	_, err = h.content.PutSingleton(ctx, domain.KindHome, "fr", map[string]any{"cta": map[string]any{"title": "Allons-y"}})
	require.NoError(t, err)
	docs, err := h.store.Find(ctx, domain.KindHome, domain.Query{Locale: "fr"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Trouvez votre maison", docs[0].String("hero.title"))
	assert.Equal(t, "Allons-y", docs[0].String("cta.title"))

	file, err := h.mirror.ReadSingleton(domain.KindHome, "fr")
	require.NoError(t, err)
	assert.Equal(t, "Allons-y", file.String("cta.title"))
}

func TestContent_PartialUpdatePreservesUntouchedFields(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	id, err := h.content.Create(ctx, domain.KindCities, cityPayload("la-jolla"))
	require.NoError(t, err)
	before, err := h.store.FindByID(ctx, domain.KindCities, id)
	require.NoError(t, err)

	require.NoError(t, h.content.Update(ctx, domain.KindCities, id, map[string]any{"avgHomePrice": "$2,400,000"}))

	after, err := h.store.FindByID(ctx, domain.KindCities, id)
	require.NoError(t, err)
	assert.Equal(t, "$2,400,000", after.String("avgHomePrice"))
	for _, f := range []string{"faqs", "highlights", "seo"} {
		assert.Equal(t, before.Lookup(f), after.Lookup(f), f)
	}

	file, err := h.mirror.ReadEntry(domain.KindCities, "en", "la-jolla")
	require.NoError(t, err)
	assert.Equal(t, "$2,400,000", file.String("avgHomePrice"))
	assert.Equal(t, before.Lookup("faqs"), file.Lookup("faqs"))
	assert.Equal(t, "La Jolla homes", file.String("seo.metaTitle"))
}

func TestContent_UpdateLocaleMovesMirrorEntry(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	id, err := h.content.Create(ctx, domain.KindCities, cityPayload("la-jolla"))
	require.NoError(t, err)
	require.NoError(t, h.content.Update(ctx, domain.KindCities, id, map[string]any{"language": "es"}))

	_, err = h.mirror.ReadEntry(domain.KindCities, "en", "la-jolla")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.mirror.ReadEntry(domain.KindCities, "es", "la-jolla")
	assert.NoError(t, err)
}

func TestContent_DeleteRemovesEntryAndIndexSlug(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	keep, err := h.content.Create(ctx, domain.KindCities, cityPayload("del-mar"))
	require.NoError(t, err)
	gone, err := h.content.Create(ctx, domain.KindCities, cityPayload("la-jolla"))
	require.NoError(t, err)

	require.NoError(t, h.content.Delete(ctx, domain.KindCities, gone))

	_, err = h.store.FindByID(ctx, domain.KindCities, gone)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	exists, err := afero.Exists(h.fs, h.mirror.Path(domain.KindCities, "en", "la-jolla"))
	require.NoError(t, err)
	assert.False(t, exists)
	index, err := h.mirror.ReadIndex(domain.KindCities, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"del-mar"}, slugs(index))

	err = h.content.Delete(ctx, domain.KindCities, gone)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, domain.IsValidation(err))

	_, err = h.store.FindByID(ctx, domain.KindCities, keep)
	assert.NoError(t, err)
}

func TestContent_SuccessiveUpdatesTargetOneDocument(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	id, err := h.content.Create(ctx, domain.KindCities, cityPayload("la-jolla"))
	require.NoError(t, err)

	require.NoError(t, h.content.Update(ctx, domain.KindCities, id, map[string]any{"population": 43000.0}))
	require.NoError(t, h.content.Update(ctx, domain.KindCities, id, map[string]any{"population": 44000.0}))

	docs, err := h.store.Find(ctx, domain.KindCities, domain.Query{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	n, _ := docs[0].Number("population")
	assert.Equal(t, 44000.0, n)
}

func TestContent_MirrorFailureKeepsStoreWrite(t *testing.T) {
	h := newHarness(t, afero.NewReadOnlyFs(afero.NewMemMapFs()), nil)
	ctx := context.Background()

	id, err := h.content.Create(ctx, domain.KindCities, cityPayload("la-jolla"))
	require.NoError(t, err)

	d, err := h.store.FindByID(ctx, domain.KindCities, id)
	require.NoError(t, err)
	assert.Equal(t, "la-jolla", d.Slug())

	_, err = h.mirror.ReadEntry(domain.KindCities, "en", "la-jolla")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = h.content.Refresh(ctx, domain.KindCities)
	var me *domain.MirrorError
	assert.True(t, errors.As(err, &me))
}

func TestContent_RefreshRebuildsMirrorTree(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	_, err := h.content.Create(ctx, domain.KindCities, cityPayload("la-jolla"))
	require.NoError(t, err)
	_, err = h.content.PutSingleton(ctx, domain.KindContact, "en", map[string]any{"bio": "Hello"})
	require.NoError(t, err)
	require.NoError(t, h.fs.RemoveAll("/data"))

	require.NoError(t, h.content.Refresh(ctx))

	_, err = h.mirror.ReadEntry(domain.KindCities, "en", "la-jolla")
	assert.NoError(t, err)
	contact, err := h.mirror.ReadSingleton(domain.KindContact, "en")
	require.NoError(t, err)
	assert.Equal(t, "Hello", contact.String("bio"))
	// configured locales without content get an empty index
	index, err := h.mirror.ReadIndex(domain.KindCities, "fr")
	require.NoError(t, err)
	assert.Empty(t, index)
}

func TestContent_ValidationRejectsWithoutInsert(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	p := cityPayload("la-jolla")
	delete(p, "state")
	_, err := h.content.Create(ctx, domain.KindCities, p)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "state", ve.Field)
	assert.Equal(t, "Missing required field: state", ve.Message)

	b := blogPayload("post", "en", domain.StatusPublished)
	delete(b["author"].(map[string]any), "bio")
	_, err = h.content.Create(ctx, domain.KindBlogs, b)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "author.bio", ve.Field)

	b = blogPayload("post", "en", domain.StatusPublished)
	b["content"] = map[string]any{"lead": "x", "sections": []any{}}
	_, err = h.content.Create(ctx, domain.KindBlogs, b)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "content.sections", ve.Field)

	p = cityPayload("Not A Slug")
	_, err = h.content.Create(ctx, domain.KindCities, p)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "slug", ve.Field)

	p = cityPayload("cities")
	_, err = h.content.Create(ctx, domain.KindCities, p)
	require.ErrorAs(t, err, &ve)

	docs, err := h.store.Find(ctx, domain.KindCities, domain.Query{})
	require.NoError(t, err)
	assert.Empty(t, docs)
	docs, err = h.store.Find(ctx, domain.KindBlogs, domain.Query{})
	require.NoError(t, err)
	assert.Empty(t, docs)

	err = h.content.Update(ctx, domain.KindCities, "missing", map[string]any{"name": "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	err = h.content.Update(ctx, domain.KindCities, "missing", map[string]any{})
	assert.True(t, domain.IsValidation(err))
}

func TestContent_SlugUniquePerLocale(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	_, err := h.content.Create(ctx, domain.KindCities, cityPayload("la-jolla"))
	require.NoError(t, err)

	_, err = h.content.Create(ctx, domain.KindCities, cityPayload("la-jolla"))
	assert.True(t, domain.IsValidation(err))

	es := cityPayload("la-jolla")
	es["language"] = "es"
	_, err = h.content.Create(ctx, domain.KindCities, es)
	assert.NoError(t, err)
}

func TestContent_RecordBlogEventCountsPublishedOnly(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	id, err := h.content.Create(ctx, domain.KindBlogs, blogPayload("first-home", "en", domain.StatusPublished))
	require.NoError(t, err)
	_, err = h.content.Create(ctx, domain.KindBlogs, blogPayload("hidden", "en", domain.StatusDraft))
	require.NoError(t, err)

	require.NoError(t, h.content.RecordBlogEvent(ctx, "en", "first-home", "views"))
	require.NoError(t, h.content.RecordBlogEvent(ctx, "en", "first-home", "views"))
	require.NoError(t, h.content.RecordBlogEvent(ctx, "en", "first-home", "likes"))

	d, err := h.store.FindByID(ctx, domain.KindBlogs, id)
	require.NoError(t, err)
	views, _ := d.Number("views")
	likes, _ := d.Number("likes")
	assert.Equal(t, 2.0, views)
	assert.Equal(t, 1.0, likes)

	assert.ErrorIs(t, h.content.RecordBlogEvent(ctx, "en", "hidden", "views"), domain.ErrNotFound)
	assert.True(t, domain.IsValidation(h.content.RecordBlogEvent(ctx, "en", "first-home", "shares")))
}

func TestContent_ImportSeedsStoreFromMirror(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, h.mirror.Mirror(domain.KindCities, "es", []domain.Document{
		domain.NewDocument("old-1", map[string]any{"slug": "la-jolla", "name": "La Joya"}),
	}))
	require.NoError(t, h.mirror.Mirror(domain.KindHome, "fr", []domain.Document{
		domain.NewDocument("old-2", map[string]any{"hero": map[string]any{"title": "Bienvenue"}}),
	}))

	n, err := h.content.Import(ctx, h.mirror)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// a second import merges instead of duplicating
	n, err = h.content.Import(ctx, h.mirror)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cities, err := h.store.Find(ctx, domain.KindCities, domain.Query{Locale: "es"})
	require.NoError(t, err)
	require.Len(t, cities, 1)
	assert.Equal(t, "La Joya", cities[0].String("name"))
	assert.NotEqual(t, domain.ID("old-1"), cities[0].ID)

	home, err := h.queries.GetSingleton(ctx, domain.KindHome, "fr")
	require.NoError(t, err)
	assert.Equal(t, locale.FromStore, home.Source)
	assert.Equal(t, "Bienvenue", home.Document.String("hero.title"))
}

func TestContent_NonObjectValueIsFieldError(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	var ve *domain.ValidationError

	p := cityPayload("la-jolla")
	p["seo"] = "text"
	_, err := h.content.Create(ctx, domain.KindCities, p)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "seo", ve.Field)
	assert.Equal(t, "Invalid field seo: must be an object", ve.Message)

	b := blogPayload("first-home", "en", domain.StatusDraft)
	b["author"] = []any{"Ana"}
	_, err = h.content.Create(ctx, domain.KindBlogs, b)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "author", ve.Field)

	p = cityPayload("la-jolla")
	p["neighborhoods"] = []any{"Bird Rock"}
	_, err = h.content.Create(ctx, domain.KindCities, p)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "neighborhoods.0", ve.Field)

	id, err := h.content.Create(ctx, domain.KindCities, cityPayload("la-jolla"))
	require.NoError(t, err)
	err = h.content.Update(ctx, domain.KindCities, id, map[string]any{"seo": 12.0})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "seo", ve.Field)
}

func TestContent_LocalesAreNormalizedThenChecked(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	p := cityPayload("la-jolla")
	p["language"] = "es-MX"
	id, err := h.content.Create(ctx, domain.KindCities, p)
	require.NoError(t, err)
	stored, err := h.store.FindByID(ctx, domain.KindCities, id)
	require.NoError(t, err)
	assert.Equal(t, "es", stored.String("language"))
	_, err = h.mirror.ReadEntry(domain.KindCities, "es", "la-jolla")
	assert.NoError(t, err)

	require.NoError(t, h.content.Update(ctx, domain.KindCities, id, map[string]any{"language": "FR"}))
	stored, err = h.store.FindByID(ctx, domain.KindCities, id)
	require.NoError(t, err)
	assert.Equal(t, "fr", stored.String("language"))

	p = cityPayload("del-mar")
	p["language"] = "xx"
	_, err = h.content.Create(ctx, domain.KindCities, p)
	assert.True(t, domain.IsValidation(err))

	var ve *domain.ValidationError
	_, err = h.content.PutSingleton(ctx, domain.KindHome, "xx", map[string]any{"hero": map[string]any{"title": "?"}})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "locale", ve.Field)
	docs, err := h.store.Find(ctx, domain.KindHome, domain.Query{})
	require.NoError(t, err)
	assert.Empty(t, docs)
	exists, err := afero.DirExists(h.fs, "/data/home/xx")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = h.content.PutSingleton(ctx, domain.KindHome, "de-AT", map[string]any{"hero": map[string]any{"title": "Hallo"}})
	require.NoError(t, err)
	home, err := h.mirror.ReadSingleton(domain.KindHome, "de")
	require.NoError(t, err)
	assert.Equal(t, "Hallo", home.String("hero.title"))
}

func TestContent_WritesFailWhenStoreUnreachable(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := mirror.New(fs, "/data")
	var store downStore
	syncer := app.NewSyncer(store, w, locale.DefaultSupported, 2)
	content := app.NewContentService(store, w, syncer, app.NewValidator(locale.NewResolver(nil)), nil)
	ctx := context.Background()

	_, err := content.Create(ctx, domain.KindCities, cityPayload("la-jolla"))
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.False(t, domain.IsValidation(err))

	err = content.Update(ctx, domain.KindCities, "c1", map[string]any{"name": "Del Mar"})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	err = content.Delete(ctx, domain.KindCities, "c1")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = content.PutSingleton(ctx, domain.KindHome, "en", map[string]any{"hero": map[string]any{"title": "Home"}})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	exists, err := afero.DirExists(fs, "/data")
	require.NoError(t, err)
	assert.False(t, exists, "nothing is mirrored when the store rejects the write")
}

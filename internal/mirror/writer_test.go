package mirror_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realty_content/internal/domain"
	"realty_content/internal/mirror"
)

func newWriter(t *testing.T) (*mirror.Writer, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return mirror.New(fs, "/data"), fs
}

func city(id, slug, lang string) domain.Document {
	f := map[string]any{"slug": slug, "name": slug, "faqs": []any{map[string]any{"question": "q", "answer": "a"}}}
	if lang != "" {
		f["language"] = lang
	}
	return domain.NewDocument(domain.ID(id), f)
}

func blog(id, slug, status, date string) domain.Document {
	return domain.NewDocument(domain.ID(id), map[string]any{
		"slug": slug, "status": status, "date": date, "language": "en", "title": "T " + slug,
	})
}

func TestMirror_SingletonIsIdempotent(t *testing.T) {
	w, fs := newWriter(t)
	home := domain.NewDocument("h1", map[string]any{
		"locale": "fr",
		"hero":   map[string]any{"title": "Bienvenue", "subtitle": "<b>&</b>"},
		"testimonials": []any{
			map[string]any{"id": 1.0, "quote": "Super", "rating": 5.0},
		},
	})

	require.NoError(t, w.Mirror(domain.KindHome, "fr", []domain.Document{home}))
	first, err := afero.ReadFile(fs, "/data/home/fr/home.json")
	require.NoError(t, err)

	require.NoError(t, w.Mirror(domain.KindHome, "fr", []domain.Document{home}))
	second, err := afero.ReadFile(fs, "/data/home/fr/home.json")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, string(first), `"title": "Bienvenue"`)
	assert.Contains(t, string(first), `"subtitle": "<b>&</b>"`)
	assert.NotContains(t, string(first), `\u003c`)

	got, err := w.ReadSingleton(domain.KindHome, "fr")
	require.NoError(t, err)
	assert.Equal(t, domain.ID("h1"), got.ID)
	assert.Equal(t, "Bienvenue", got.String("hero.title"))
}

func TestMirror_CollectionWritesEntriesAndIndex(t *testing.T) {
	w, fs := newWriter(t)
	docs := []domain.Document{city("2", "san-diego", "en"), city("1", "la-jolla", "")}

	require.NoError(t, w.Mirror(domain.KindCities, "en", docs))

	for _, p := range []string{"/data/cities/en/la-jolla.json", "/data/cities/en/san-diego.json", "/data/cities/en/cities.json"} {
		ok, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
	idx, err := w.ReadIndex(domain.KindCities, "en")
	require.NoError(t, err)
	require.Len(t, idx, 2)
	assert.Equal(t, "la-jolla", idx[0].Slug())
	assert.Equal(t, "san-diego", idx[1].Slug())
}

func TestMirror_CollectionPrunesRemovedEntries(t *testing.T) {
	w, fs := newWriter(t)
	require.NoError(t, w.Mirror(domain.KindCities, "en", []domain.Document{city("1", "la-jolla", "en"), city("2", "del-mar", "en")}))
	require.NoError(t, w.Mirror(domain.KindCities, "en", []domain.Document{city("2", "del-mar", "en")}))

	ok, _ := afero.Exists(fs, "/data/cities/en/la-jolla.json")
	assert.False(t, ok)
	idx, err := w.ReadIndex(domain.KindCities, "en")
	require.NoError(t, err)
	require.Len(t, idx, 1)
	assert.Equal(t, "del-mar", idx[0].Slug())

	// an empty set still leaves a valid, empty index
	require.NoError(t, w.Mirror(domain.KindCities, "en", nil))
	idx, err = w.ReadIndex(domain.KindCities, "en")
	require.NoError(t, err)
	assert.Empty(t, idx)
}

func TestMirror_BlogsExcludeDrafts(t *testing.T) {
	w, fs := newWriter(t)
	docs := []domain.Document{
		blog("1", "old-post", domain.StatusPublished, "2024-01-01"),
		blog("2", "draft-post", domain.StatusDraft, "2024-06-01"),
		blog("3", "new-post", domain.StatusPublished, "2024-05-01"),
	}
	require.NoError(t, w.Mirror(domain.KindBlogs, "en", docs))

	idx, err := w.ReadIndex(domain.KindBlogs, "en")
	require.NoError(t, err)
	require.Len(t, idx, 2)
	assert.Equal(t, "new-post", idx[0].Slug(), "newest first")
	assert.Equal(t, "old-post", idx[1].Slug())
	ok, _ := afero.Exists(fs, "/data/blogs/en/draft-post.json")
	assert.False(t, ok)

	// publishing adds it, unpublishing removes it again
	docs[1] = blog("2", "draft-post", domain.StatusPublished, "2024-06-01")
	require.NoError(t, w.Mirror(domain.KindBlogs, "en", docs))
	idx, _ = w.ReadIndex(domain.KindBlogs, "en")
	require.Len(t, idx, 3)
	assert.Equal(t, "draft-post", idx[0].Slug())

	docs[1] = blog("2", "draft-post", domain.StatusDraft, "2024-06-01")
	require.NoError(t, w.Mirror(domain.KindBlogs, "en", docs))
	idx, _ = w.ReadIndex(domain.KindBlogs, "en")
	assert.Len(t, idx, 2)
	_, err = w.ReadEntry(domain.KindBlogs, "en", "draft-post")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMirror_UsersStripPasswords(t *testing.T) {
	w, fs := newWriter(t)
	u := domain.NewDocument("u1", map[string]any{"email": "a@b.co", "password": "$2a$10$hash", "role": "Admin"})
	require.NoError(t, w.Mirror(domain.KindUsers, "", []domain.Document{u}))

	b, err := afero.ReadFile(fs, "/data/users/users.json")
	require.NoError(t, err)
	assert.Contains(t, string(b), "a@b.co")
	assert.NotContains(t, string(b), "password")
}

func TestMirror_RemoveAndMissingReads(t *testing.T) {
	w, _ := newWriter(t)
	require.NoError(t, w.Mirror(domain.KindCities, "es", []domain.Document{city("1", "la-jolla", "es")}))
	require.NoError(t, w.Remove(domain.KindCities, "es", "la-jolla"))
	require.NoError(t, w.Remove(domain.KindCities, "es", "la-jolla"), "removing twice is fine")

	_, err := w.ReadEntry(domain.KindCities, "es", "la-jolla")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = w.ReadSingleton(domain.KindContact, "de")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = w.ReadEntry(domain.KindCities, "es", "cities")
	assert.ErrorIs(t, err, domain.ErrNotFound, "index is not an entry")
}

func TestMirror_ReadOnlyFilesystemFails(t *testing.T) {
	w := mirror.New(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/data")
	err := w.Mirror(domain.KindContact, "en", []domain.Document{domain.NewDocument("c", map[string]any{"locale": "en"})})
	assert.Error(t, err)
}

func TestMirror_RequiresLocaleForLocalizedKinds(t *testing.T) {
	w, _ := newWriter(t)
	assert.Error(t, w.Mirror(domain.KindHome, "", []domain.Document{domain.NewDocument("h", nil)}))
}

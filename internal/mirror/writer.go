// Package mirror exports store documents as per-locale JSON files:
//
//	<root>/<kind>/<locale>/<kind>.json   singleton document or collection index
//	<root>/<kind>/<locale>/<slug>.json   one collection entry
//	<root>/users/users.json              admin account listing
//
// Files are derived data. Every write replaces a whole file through a
// temp-file rename and writes for one (kind, locale) directory are serialized.
package mirror

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"realty_content/internal/adapters/observability"
	"realty_content/internal/domain"
)

type Writer struct {
	fs   afero.Fs
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(fs afero.Fs, root string) *Writer {
	return &Writer{fs: fs, root: root, locks: map[string]*sync.Mutex{}}
}

// Root returns the data root the writer was created with.
func (w *Writer) Root() string { return w.root }

func (w *Writer) lock(dir string) func() {
	w.mu.Lock()
	l, ok := w.locks[dir]
	if !ok {
		l = &sync.Mutex{}
		w.locks[dir] = l
	}
	w.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (w *Writer) dir(k domain.Kind, locale string) string {
	if k == domain.KindUsers {
		return path.Join(w.root, string(k))
	}
	return path.Join(w.root, string(k), locale)
}

// Path returns the mirror file path for name ("<kind>" or a slug).
func (w *Writer) Path(k domain.Kind, locale, name string) string {
	return path.Join(w.dir(k, locale), name+".json")
}

// Mirror rewrites the mirrored files of kind k in locale from docs, which
// must be the complete current set for that locale:
//   - home, contact: docs[0] becomes <kind>.json
//   - cities, counties: one file per slug plus the <kind>.json index
//   - blogs: the same, restricted to Published posts
//   - users: users.json without password hashes
//
// Collection entries without a matching document are removed, so the file
// tree always reflects exactly docs.
func (w *Writer) Mirror(k domain.Kind, locale string, docs []domain.Document) (err error) {
	start := time.Now()
	defer func() { observability.ObserveMirror(string(k), err, time.Since(start)) }()

	if k.Localized() && locale == "" {
		return fmt.Errorf("mirror %s: locale is required", k)
	}
	dir := w.dir(k, locale)
	unlock := w.lock(dir)
	defer unlock()

	switch {
	case k.Singleton():
		if len(docs) == 0 {
			return fmt.Errorf("mirror %s/%s: no document", k, locale)
		}
		return w.writeJSON(dir, string(k), docs[0])
	case k == domain.KindUsers:
		out := make([]domain.Document, 0, len(docs))
		for _, d := range docs {
			out = append(out, d.Without("password"))
		}
		sortByCreated(out)
		return w.writeJSON(dir, "users", out)
	default:
		return w.mirrorCollection(k, dir, docs)
	}
}

func (w *Writer) mirrorCollection(k domain.Kind, dir string, docs []domain.Document) error {
	entries := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		if k == domain.KindBlogs && d.String("status") != domain.StatusPublished {
			continue
		}
		if d.Slug() == "" {
			continue
		}
		entries = append(entries, d)
	}
	domain.SortBySlug(entries)
	if k == domain.KindBlogs {
		sortByDateDesc(entries)
	}

	keep := map[string]bool{string(k) + ".json": true}
	var errs []error
	for _, d := range entries {
		keep[d.Slug()+".json"] = true
		if err := w.writeJSON(dir, d.Slug(), d); err != nil {
			errs = append(errs, err)
		}
	}
	if err := w.writeJSON(dir, string(k), entries); err != nil {
		errs = append(errs, err)
	}
	if err := w.prune(dir, keep); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Remove deletes one collection entry file. A missing file is not an error.
func (w *Writer) Remove(k domain.Kind, locale, slug string) error {
	if slug == "" {
		return nil
	}
	dir := w.dir(k, locale)
	unlock := w.lock(dir)
	defer unlock()
	err := w.fs.Remove(path.Join(dir, slug+".json"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("mirror remove %s/%s/%s: %w", k, locale, slug, err)
	}
	return nil
}

func (w *Writer) prune(dir string, keep map[string]bool) error {
	infos, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		return fmt.Errorf("mirror list %s: %w", dir, err)
	}
	var errs []error
	for _, fi := range infos {
		name := fi.Name()
		if fi.IsDir() || !strings.HasSuffix(name, ".json") || keep[name] {
			continue
		}
		if err := w.fs.Remove(path.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Encode produces the canonical file bytes for v: two-space indented JSON
// with sorted object keys and a trailing newline.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *Writer) writeJSON(dir, name string, v any) error {
	b, err := Encode(v)
	if err != nil {
		return fmt.Errorf("mirror encode %s/%s: %w", dir, name, err)
	}
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mirror mkdir %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(w.fs, dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("mirror temp %s/%s: %w", dir, name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		_ = w.fs.Remove(tmpName)
		return fmt.Errorf("mirror write %s/%s: %w", dir, name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = w.fs.Remove(tmpName)
		return fmt.Errorf("mirror close %s/%s: %w", dir, name, err)
	}
	if err := w.fs.Rename(tmpName, path.Join(dir, name+".json")); err != nil {
		_ = w.fs.Remove(tmpName)
		return fmt.Errorf("mirror rename %s/%s: %w", dir, name, err)
	}
	return nil
}

func sortByCreated(docs []domain.Document) {
	stableSort(docs, func(a, b domain.Document) bool {
		ca, cb := a.String("createdAt"), b.String("createdAt")
		if ca != cb {
			return ca < cb
		}
		return a.ID < b.ID
	})
}

// sortByDateDesc orders posts newest first; equal dates keep slug order.
func sortByDateDesc(docs []domain.Document) {
	stableSort(docs, func(a, b domain.Document) bool {
		return a.String("date") > b.String("date")
	})
}

package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/spf13/afero"

	"realty_content/internal/domain"
)

// ReadSingleton loads <kind>/<locale>/<kind>.json.
func (w *Writer) ReadSingleton(k domain.Kind, locale string) (domain.Document, error) {
	var d domain.Document
	if err := w.readJSON(w.Path(k, locale, string(k)), &d); err != nil {
		return domain.Document{}, err
	}
	return d, nil
}

// ReadEntry loads one collection entry by slug.
func (w *Writer) ReadEntry(k domain.Kind, locale, slug string) (domain.Document, error) {
	if slug == "" || slug == string(k) {
		return domain.Document{}, domain.ErrNotFound
	}
	var d domain.Document
	if err := w.readJSON(w.Path(k, locale, slug), &d); err != nil {
		return domain.Document{}, err
	}
	return d, nil
}

// ReadIndex loads the <kind>.json collection index for a locale.
func (w *Writer) ReadIndex(k domain.Kind, locale string) ([]domain.Document, error) {
	var docs []domain.Document
	if err := w.readJSON(w.Path(k, locale, string(k)), &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Locales lists the locale directories present for kind k.
func (w *Writer) Locales(k domain.Kind) ([]string, error) {
	infos, err := afero.ReadDir(w.fs, path.Join(w.root, string(k)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, fi := range infos {
		if fi.IsDir() {
			out = append(out, fi.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (w *Writer) readJSON(p string, dst any) error {
	b, err := afero.ReadFile(w.fs, p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("mirror read %s: %w", p, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("mirror decode %s: %w", p, err)
	}
	return nil
}

func stableSort(docs []domain.Document, less func(a, b domain.Document) bool) {
	sort.SliceStable(docs, func(i, j int) bool { return less(docs[i], docs[j]) })
}

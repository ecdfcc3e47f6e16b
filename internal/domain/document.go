package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind names a content collection. The same name is used for the store
// collection and for the top-level directory of its mirrored files.
type Kind string

const (
	KindHome     Kind = "home"
	KindContact  Kind = "contact"
	KindCities   Kind = "cities"
	KindCounties Kind = "counties"
	KindBlogs    Kind = "blogs"
	KindUsers    Kind = "users"
)

// ContentKinds are the locale-scoped kinds, in mirror refresh order.
var ContentKinds = []Kind{KindHome, KindContact, KindCities, KindCounties, KindBlogs}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindHome, KindContact, KindCities, KindCounties, KindBlogs, KindUsers:
		return k, nil
	}
	return "", fmt.Errorf("unknown content kind %q", s)
}

// Singleton reports whether the kind holds exactly one document per locale.
func (k Kind) Singleton() bool { return k == KindHome || k == KindContact }

// LocaleField is the document field carrying the locale for this kind.
// Cities and blogs use "language"; counties, home and contact use "locale".
func (k Kind) LocaleField() string {
	switch k {
	case KindCities, KindBlogs:
		return "language"
	case KindHome, KindContact, KindCounties:
		return "locale"
	}
	return ""
}

// Localized reports whether documents of this kind are namespaced by locale.
func (k Kind) Localized() bool { return k.LocaleField() != "" }

// ID is the canonical document identifier. Store adapters translate it to
// their native representation at the boundary.
type ID string

func (id ID) String() string { return string(id) }

// Document is a schemaless stored record. Fields holds JSON-compatible values
// (string, float64, bool, nil, []any, map[string]any) and never contains "_id".
type Document struct {
	ID     ID
	Fields map[string]any
}

// NewDocument copies fields into a fresh Document, dropping any "_id" key.
func NewDocument(id ID, fields map[string]any) Document {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		out[k] = v
	}
	return Document{ID: id, Fields: out}
}

func (d Document) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(d.Fields)+1)
	for k, v := range d.Fields {
		m[k] = v
	}
	if d.ID != "" {
		m["_id"] = string(d.ID)
	}
	// HTML escaping is left to the outer encoder; mirror files keep it off.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (d *Document) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var id ID
	switch v := m["_id"].(type) {
	case string:
		id = ID(v)
	case map[string]any:
		// extended JSON form {"$oid": "..."}
		if s, ok := v["$oid"].(string); ok {
			id = ID(s)
		}
	}
	*d = NewDocument(id, m)
	return nil
}

// Lookup resolves a dot path ("seo.metaTitle") against the document fields.
func (d Document) Lookup(path string) any {
	return LookupPath(d.Fields, path)
}

// String returns the string at path or "".
func (d Document) String(path string) string {
	if s, ok := d.Lookup(path).(string); ok {
		return s
	}
	return ""
}

// Slug is the URL identifier of collection documents.
func (d Document) Slug() string { return strings.TrimSpace(d.String("slug")) }

// Locale returns the document's locale for kind k; "" marks a legacy,
// untagged document.
func (d Document) Locale(k Kind) string {
	f := k.LocaleField()
	if f == "" {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(d.String(f)))
}

// Clone returns a deep copy so callers can mutate without aliasing store data.
func (d Document) Clone() Document {
	return Document{ID: d.ID, Fields: cloneValue(d.Fields).(map[string]any)}
}

// Merge applies a shallow field patch: top-level keys in patch replace keys
// in the document, everything else is preserved.
func (d Document) Merge(patch map[string]any) Document {
	out := d.Clone()
	for k, v := range patch {
		if k == "_id" {
			continue
		}
		out.Fields[k] = cloneValue(v)
	}
	return out
}

// Without returns a copy of the document without the named top-level fields.
func (d Document) Without(keys ...string) Document {
	out := d.Clone()
	for _, k := range keys {
		delete(out.Fields, k)
	}
	return out
}

// LookupPath is a safe nested lookup with dot paths on maps.
func LookupPath(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// Number reads a numeric field that may have been stored as a JSON number or
// as a string like "1,250".
func (d Document) Number(path string) (float64, bool) {
	switch v := d.Lookup(path).(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		if s == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// SortBySlug orders documents by slug, then id, for stable mirror output.
func SortBySlug(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		si, sj := docs[i].Slug(), docs[j].Slug()
		if si != sj {
			return si < sj
		}
		return docs[i].ID < docs[j].ID
	})
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// Package locale decides which locale a request is served in and the
// ordered list of places to look for content before giving up.
package locale

import (
	"strings"

	"golang.org/x/text/language"

	"realty_content/internal/domain"
)

// English is the fallback locale for every kind.
const English = "en"

// DefaultSupported lists the site's content languages.
var DefaultSupported = []string{"en", "es", "fr", "de", "ar", "zh"}

type Source int

const (
	FromStore Source = iota
	FromFile
	FromDefault
	NotFound
)

func (s Source) String() string {
	switch s {
	case FromStore:
		return "store"
	case FromFile:
		return "file"
	case FromDefault:
		return "default"
	}
	return "not_found"
}

// Step is one candidate lookup location.
type Step struct {
	Source          Source
	Locale          string
	IncludeUntagged bool
	// Fallback marks steps that serve a locale other than the requested one.
	Fallback bool
	// StopOnEmpty makes an empty (but successful) store result final.
	StopOnEmpty bool
}

type Resolver struct {
	supported map[string]bool
	order     []string
	matcher   language.Matcher
}

func NewResolver(supported []string) *Resolver {
	if len(supported) == 0 {
		supported = DefaultSupported
	}
	r := &Resolver{supported: map[string]bool{}}
	// English first so the matcher falls back to it.
	tags := []language.Tag{language.English}
	r.order = append(r.order, English)
	r.supported[English] = true
	for _, s := range supported {
		l := Normalize(s)
		if l == "" || r.supported[l] {
			continue
		}
		t, err := language.Parse(l)
		if err != nil {
			continue
		}
		r.supported[l] = true
		r.order = append(r.order, l)
		tags = append(tags, t)
	}
	r.matcher = language.NewMatcher(tags)
	return r
}

// Supported returns the configured locales, English first.
func (r *Resolver) Supported() []string {
	return append([]string(nil), r.order...)
}

func (r *Resolver) IsSupported(l string) bool { return r.supported[l] }

// Normalize reduces a tag like "es-MX" or "FR" to its lower-case base
// language code. Empty input yields English; unparsable input yields "".
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return English
	}
	if t, err := language.Parse(s); err == nil {
		if b, conf := t.Base(); conf != language.No {
			return b.String()
		}
	}
	if i := strings.IndexAny(s, "-_"); i > 0 {
		s = s[:i]
	}
	if len(s) == 2 && s[0] >= 'a' && s[0] <= 'z' && s[1] >= 'a' && s[1] <= 'z' {
		return s
	}
	return ""
}

// Negotiate picks the request locale: an explicit locale parameter wins,
// otherwise the best supported match for Accept-Language, otherwise English.
func (r *Resolver) Negotiate(explicit, acceptLanguage string) string {
	if strings.TrimSpace(explicit) != "" {
		if l := Normalize(explicit); l != "" {
			return l
		}
		return English
	}
	if acceptLanguage == "" {
		return English
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return English
	}
	t, _, conf := r.matcher.Match(tags...)
	if conf == language.No {
		return English
	}
	b, _ := t.Base()
	if l := b.String(); r.supported[l] {
		return l
	}
	return English
}

// Plan returns the lookup order for kind k in locale l. detail is true for
// single-entry reads (a city or blog slug).
func (r *Resolver) Plan(k domain.Kind, l string, detail bool) []Step {
	en := l == English
	steps := []Step{{Source: FromStore, Locale: l, IncludeUntagged: en}}

	switch k {
	case domain.KindCities, domain.KindCounties:
		// collection reads fall back to English documents in the store
		if !en {
			steps = append(steps, Step{Source: FromStore, Locale: English, IncludeUntagged: true, Fallback: true})
		}
	case domain.KindBlogs:
		// a locale with no posts is a valid empty listing
		if !detail {
			steps[0].StopOnEmpty = true
		}
	}

	steps = append(steps, Step{Source: FromFile, Locale: l})
	if !en {
		steps = append(steps, Step{Source: FromFile, Locale: English, Fallback: true})
	}

	if k.Singleton() {
		return append(steps, Step{Source: FromDefault, Locale: English, Fallback: !en})
	}
	return append(steps, Step{Source: NotFound, Locale: l})
}

package app

import (
	"context"
	"strings"

	"realty_content/internal/domain"
)

// CountyView is a county page: the county document plus its member cities.
type CountyView struct {
	Result
	Cities []domain.Document `json:"cities"`
}

// County resolves a county by slug and attaches the cities that belong to
// it, read through the same fallback chain as the city listing.
func (s *QueryService) County(ctx context.Context, l, slug string) (CountyView, error) {
	res, err := s.Get(ctx, domain.KindCounties, l, slug)
	if err != nil {
		return CountyView{Result: res}, err
	}
	cities, err := s.List(ctx, domain.KindCities, l)
	if err != nil {
		return CountyView{Result: res}, err
	}
	return CountyView{Result: res, Cities: CountyMembers(*res.Document, cities.Documents)}, nil
}

// CountyMembers selects the cities of county. A city's countySlug is
// authoritative; cities without one fall back to matching their "county"
// name against the county name, case-insensitively and in either direction.
// The name match can merge counties whose names contain one another.
func CountyMembers(county domain.Document, cities []domain.Document) []domain.Document {
	slug := county.Slug()
	name := normalizeCountyName(county.String("name"))
	out := []domain.Document{}
	for _, c := range cities {
		if cs := strings.TrimSpace(c.String("countySlug")); cs != "" {
			if cs == slug {
				out = append(out, c)
			}
			continue
		}
		cn := normalizeCountyName(c.String("county"))
		if cn == "" || name == "" {
			continue
		}
		if strings.Contains(cn, name) || strings.Contains(name, cn) {
			out = append(out, c)
		}
	}
	return out
}

func normalizeCountyName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimSpace(strings.TrimSuffix(s, " county"))
}

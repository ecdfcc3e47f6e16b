package app

import (
	"context"
	"fmt"
	"strings"

	"realty_content/internal/domain"
)

// Cached public reads are keyed by a per-kind generation. Mutations bump the
// generation instead of deleting keys, which also retires English-fallback
// entries cached under other locales.

func genKey(k domain.Kind) string { return "gen:" + string(k) }

func generation(ctx context.Context, c domain.Cache, k domain.Kind) int64 {
	var gen int64
	if c == nil {
		return 0
	}
	_, _ = c.Get(ctx, genKey(k), &gen)
	return gen
}

func bumpGeneration(ctx context.Context, c domain.Cache, kinds ...domain.Kind) {
	if c == nil {
		return
	}
	for _, k := range kinds {
		_, _ = c.Incr(ctx, genKey(k))
	}
}

func contentKey(k domain.Kind, gen int64, parts ...string) string {
	return fmt.Sprintf("content:%s:%d:%s", k, gen, strings.Join(parts, ":"))
}

// dependents lists the kinds whose cached views embed documents of k.
func dependents(k domain.Kind) []domain.Kind {
	if k == domain.KindCities {
		return []domain.Kind{domain.KindCities, domain.KindCounties}
	}
	return []domain.Kind{k}
}

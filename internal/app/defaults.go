package app

import (
	"embed"
	"encoding/json"
	"fmt"

	"realty_content/internal/domain"
)

//go:embed defaults/*.json
var defaultPayloads embed.FS

// DefaultDocument returns the built-in baseline for a singleton kind so
// public pages never render empty.
func DefaultDocument(k domain.Kind) (domain.Document, error) {
	if !k.Singleton() {
		return domain.Document{}, fmt.Errorf("no default payload for %s", k)
	}
	b, err := defaultPayloads.ReadFile("defaults/" + string(k) + ".json")
	if err != nil {
		return domain.Document{}, err
	}
	var d domain.Document
	if err := json.Unmarshal(b, &d); err != nil {
		return domain.Document{}, fmt.Errorf("decode default %s: %w", k, err)
	}
	return d, nil
}

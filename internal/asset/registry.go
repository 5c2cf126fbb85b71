package asset

import (
	"fmt"
	"strings"

	"github.com/lotkeep-dev/lotkeep/internal/model"
)

// Registry provides in-memory lookup over the closed set of tracked assets.
type Registry struct {
	assets   []model.Asset
	bySymbol map[string]model.Asset
	byMint   map[string]model.Asset
}

// NewRegistry creates a Registry from a slice of assets.
func NewRegistry(assets []model.Asset) *Registry {
	bySymbol := make(map[string]model.Asset, len(assets))
	byMint := make(map[string]model.Asset, len(assets))
	for _, a := range assets {
		bySymbol[strings.ToUpper(a.Symbol)] = a
		if a.Mint != "" {
			byMint[a.Mint] = a
		}
	}
	return &Registry{assets: assets, bySymbol: bySymbol, byMint: byMint}
}

// All returns all registered assets.
func (r *Registry) All() []model.Asset {
	return r.assets
}

// Get returns an asset by symbol (case-insensitive).
func (r *Registry) Get(symbol string) (model.Asset, bool) {
	a, ok := r.bySymbol[strings.ToUpper(symbol)]
	return a, ok
}

// MustGet returns an asset by symbol or an error naming the symbol.
func (r *Registry) MustGet(symbol string) (model.Asset, error) {
	a, ok := r.Get(symbol)
	if !ok {
		return model.Asset{}, fmt.Errorf("unknown asset %q", symbol)
	}
	return a, nil
}

// Native returns the chain's native asset.
func (r *Registry) Native() model.Asset {
	for _, a := range r.assets {
		if a.Native() {
			return a
		}
	}
	return model.Asset{}
}

// ByMint returns an asset by its mint address.
func (r *Registry) ByMint(mint string) (model.Asset, bool) {
	a, ok := r.byMint[mint]
	return a, ok
}

// Exists reports whether a symbol is registered.
func (r *Registry) Exists(symbol string) bool {
	_, ok := r.Get(symbol)
	return ok
}

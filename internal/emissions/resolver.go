package emissions

import (
	"greenbite/internal/apperr"
	"greenbite/internal/logging"
)

// Tier names the lookup source that produced an item's value.
type Tier string

const (
	TierReference Tier = "reference"
	TierHeuristic Tier = "heuristic"
	TierDefault   Tier = "default"
)

// ItemEmission is the resolved contribution of a single food label.
type ItemEmission struct {
	Item string  `json:"item"`
	CO2  float64 `json:"co2"`
	Tier Tier    `json:"tier"`
}

// Result is the per-request outcome of resolving a list of labels.
type Result struct {
	Items     []string       `json:"items"`
	Total     float64        `json:"total_co2"`
	Breakdown []ItemEmission `json:"breakdown"`
}

// Resolver turns food labels into kg CO2 using three tiers in strict order:
// the reference dataset, the curated heuristic table, then DefaultCO2.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	reference *Table
	heuristic *Table
}

// NewResolver builds a resolver over the given tables. Either may be nil.
func NewResolver(reference, heuristic *Table) *Resolver {
	return &Resolver{reference: reference, heuristic: heuristic}
}

// NewResolverFromDataset loads the reference dataset at path and pairs it
// with the curated heuristic table. A failed load is logged and the resolver
// continues on the heuristic and default tiers.
func NewResolverFromDataset(path string, log *logging.Logger) (*Resolver, apperr.Recovered[*Table]) {
	ref := LoadReference(path, log)
	if ref.Degraded() {
		log.Printf("reference dataset unavailable, using heuristics only: %v", ref.Err)
	}
	return NewResolver(ref.Value, HeuristicTable()), ref
}

// Lookup resolves a single label.
func (r *Resolver) Lookup(item string) (float64, Tier) {
	if v, ok := r.reference.Lookup(item); ok {
		return v, TierReference
	}
	if v, ok := r.heuristic.Lookup(item); ok {
		return v, TierHeuristic
	}
	return DefaultCO2, TierDefault
}

// Resolve returns the summed kg CO2 of items. Duplicates count once per
// occurrence. An empty list yields 0.
func (r *Resolver) Resolve(items []string) float64 {
	return r.Estimate(items).Total
}

// Estimate is Resolve with a per-item breakdown, summed in input order.
func (r *Resolver) Estimate(items []string) Result {
	res := Result{
		Items:     append([]string(nil), items...),
		Breakdown: make([]ItemEmission, 0, len(items)),
	}
	for _, item := range items {
		v, tier := r.Lookup(item)
		res.Total += v
		res.Breakdown = append(res.Breakdown, ItemEmission{Item: item, CO2: v, Tier: tier})
	}
	return res
}

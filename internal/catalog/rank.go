package catalog

import "sort"

// Ranked is an item as it is displayed: ordered by value per point, with
// its position in the stored sequence kept for index based calls.
type Ranked struct {
	Item
	Index         int     `json:"index"`
	ValuePerPoint float64 `json:"value_per_point"`
	BestDeal      bool    `json:"best_deal"`
}

// Rank orders items by descending value per point. The sort is stable, so
// stored order breaks ties. Every item whose ratio equals the maximum
// exactly is flagged as a best deal. Rank has no side effects and callers
// recompute it on every render.
func Rank(items []Item) []Ranked {
	if len(items) == 0 {
		return nil
	}

	out := make([]Ranked, len(items))
	for i, it := range items {
		out[i] = Ranked{Item: it, Index: i, ValuePerPoint: it.ValuePerPoint()}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ValuePerPoint > out[j].ValuePerPoint
	})

	best := out[0].ValuePerPoint
	for i := range out {
		out[i].BestDeal = out[i].ValuePerPoint == best
	}
	return out
}

package combination

import (
	"cmp"
	"maps"
	"slices"
)

// from map[K][]V, choices one item for each keys and generate cartesian product.
//
// Keys are visited in ascending order, and the product is ordered
// lexicographically by the position of values in basis:
// the smallest key varies slowest, the largest key varies fastest.
//
// # Example:
//
//	MapCartesian(map[string][]int{
//		"max_depth": {3, 5},
//		"n_estimators": {8, 16},
//	})
//
// generates
//
//	[]map[string]int{
//		{"max_depth": 3, "n_estimators": 8},
//		{"max_depth": 3, "n_estimators": 16},
//		{"max_depth": 5, "n_estimators": 8},
//		{"max_depth": 5, "n_estimators": 16},
//	}
//
// # args:
//
// - basis : basis of cartesian product.
//
// # returning:
//
// - []map[K]V : Each item has same keys in basis.
// For each key for each item, the value is one of basis[key].
//
// An empty basis generates a single empty map (the product of no dimensions).
// If any dimension is zero-width, the product is empty.
func MapCartesian[K cmp.Ordered, V any](basis map[K][]V) []map[K]V {
	keys := slices.Sorted(maps.Keys(basis))
	for _, k := range keys {
		if len(basis[k]) == 0 {
			// if any dimensions are zero-width, given space is empty.
			return []map[K]V{}
		}
	}

	var cartesian func(known []map[K]V, rem []K) []map[K]V // prepare for recursion.
	cartesian = func(known []map[K]V, rem []K) []map[K]V {
		if len(rem) <= 0 {
			return known
		}

		topic := rem[0]
		newKnown := make([]map[K]V, 0, len(known)*len(basis[topic]))
		for _, k := range known {
			for _, item := range basis[topic] {
				clone := maps.Clone(k)
				clone[topic] = item
				newKnown = append(newKnown, clone)
			}
		}

		return cartesian(newKnown, rem[1:])
	}

	return cartesian([]map[K]V{{}}, keys)
}

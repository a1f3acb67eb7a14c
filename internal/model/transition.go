package model

import "slices"

// canTransition looks up target in a status transition table.
func canTransition[S ~string](table map[S][]S, from, to S) bool {
	allowed, ok := table[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Package tags implements the set operations applied to an issue's tags.
//
// All functions are pure: inputs are never modified, duplicates are collapsed
// and the first-seen order is kept so results are deterministic.
package tags

// Union returns current ∪ incoming.
func Union(current, incoming []string) []string {
	out := make([]string, 0, len(current)+len(incoming))
	seen := make(map[string]struct{}, len(current)+len(incoming))
	out = appendUnique(out, seen, current)
	return appendUnique(out, seen, incoming)
}

// Difference returns current − removed.
func Difference(current, removed []string) []string {
	drop := make(map[string]struct{}, len(removed))
	for _, t := range removed {
		drop[t] = struct{}{}
	}
	out := make([]string, 0, len(current))
	seen := make(map[string]struct{}, len(current))
	for _, t := range current {
		if _, ok := drop[t]; ok {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Replace returns incoming as a set.
func Replace(incoming []string) []string {
	out := make([]string, 0, len(incoming))
	return appendUnique(out, make(map[string]struct{}, len(incoming)), incoming)
}

func appendUnique(out []string, seen map[string]struct{}, in []string) []string {
	for _, t := range in {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

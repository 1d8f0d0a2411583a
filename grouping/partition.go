package grouping

import "math/rand/v2"

// Assignment is one generated set of groups. It is never modified after
// Partition returns it; regenerating produces a new Assignment.
type Assignment[T any] struct {
	Groups [][]T `json:"groups"`
	// Remaining is the number of students that did not fit into a full group.
	Remaining int `json:"remainingCount"`
}

// Len returns the total number of members across all groups.
func (a Assignment[T]) Len() int {
	n := 0
	for _, g := range a.Groups {
		n += len(g)
	}
	return n
}

// Members flattens the groups in group order.
func (a Assignment[T]) Members() []T {
	out := make([]T, 0, a.Len())
	for _, g := range a.Groups {
		out = append(out, g...)
	}
	return out
}

// Partition shuffles items and splits them into groups of opts.GroupSize.
//
// Leftover handling follows opts.Strategy:
//   - AllowSmaller: the leftovers form one extra, smaller group.
//   - Distribute: the leftovers are appended round-robin to the groups,
//     starting from the first one and wrapping around when there are more
//     leftovers than groups, so a group may grow past GroupSize+1. When there
//     is no full group at all the whole input becomes a single group.
//
// An empty input yields an empty Assignment. The input slice is not modified.
// A nil rng falls back to NewRand.
func Partition[T any](items []T, opts Options, rng *rand.Rand) (Assignment[T], error) {
	if err := opts.Validate(); err != nil {
		return Assignment[T]{}, err
	}
	if len(items) == 0 {
		return Assignment[T]{Groups: [][]T{}}, nil
	}
	if rng == nil {
		rng = NewRand()
	}

	shuffled := make([]T, len(items))
	copy(shuffled, items)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	size := opts.GroupSize
	fullGroups := len(shuffled) / size
	remaining := len(shuffled) % size

	groups := make([][]T, 0, fullGroups+1)
	for i := 0; i < fullGroups; i++ {
		// full slice expression so appending a leftover never spills into the next group
		groups = append(groups, shuffled[i*size:(i+1)*size:(i+1)*size])
	}

	if remaining > 0 {
		leftovers := shuffled[fullGroups*size:]
		switch {
		case opts.Strategy == AllowSmaller:
			groups = append(groups, leftovers)
		case fullGroups == 0:
			groups = append(groups, leftovers)
		default:
			for i, member := range leftovers {
				idx := i % len(groups)
				groups[idx] = append(groups[idx], member)
			}
		}
	}

	return Assignment[T]{Groups: groups, Remaining: remaining}, nil
}

package scopewalk

// visitedTypes records the types entered during one field traversal so that
// self-referential type graphs terminate.
type visitedTypes struct {
	seen map[uint64]struct{}
}

func makeVisitedTypes() visitedTypes {
	return visitedTypes{seen: make(map[uint64]struct{}, 8)}
}

// enter reports whether the type with the given id has not been entered yet,
// and marks it as entered.
func (v *visitedTypes) enter(id uint64) bool {
	if _, ok := v.seen[id]; ok {
		return false
	}
	v.seen[id] = struct{}{}
	return true
}

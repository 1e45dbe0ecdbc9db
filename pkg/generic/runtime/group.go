package runtime

// InGroupsOf splits items into consecutive groups of at most length items.
func InGroupsOf[T any](items []T, length int) [][]T {
	return InGroupsFitting(items, length, nil)
}

// InGroupsFitting splits items into consecutive groups of at most length items
// for which fits holds. A single item that does not fit forms a group of its own.
// A length <= 0 leaves the group size unbounded, a nil fits accepts every group.
func InGroupsFitting[T any](items []T, length int, fits func(group []T) bool) [][]T {
	if len(items) == 0 {
		return [][]T{items}
	}
	groups := make([][]T, 0, 1)
	start := 0
	for end := 1; end <= len(items); end++ {
		n := end - start
		if n == 1 {
			continue
		}
		if (length > 0 && n > length) || (fits != nil && !fits(items[start:end])) {
			groups = append(groups, items[start:end-1])
			start = end - 1
		}
	}
	return append(groups, items[start:])
}

package claim

// Chunk splits items into consecutive groups of at most size elements,
// preserving order. Only the last group may be short. Zero items yield
// zero groups. Groups share the input's backing array.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		panic("claim: chunk size must be positive")
	}
	groups := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		groups = append(groups, items[start:end:end])
	}
	return groups
}

package mesh

// BuildEdges returns every unordered vertex pair (i, j) with i < j as a flat
// index list suitable for GL_LINES. Pairs appear in lexicographic order, so the
// result has n(n-1) entries.
func BuildEdges(n int) []uint32 {
	if n < 2 {
		return nil
	}
	edges := make([]uint32, 0, n*(n-1))
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			edges = append(edges, uint32(i), uint32(j))
		}
	}
	return edges
}

// EdgeCount returns the number of segments BuildEdges produces for n vertices.
func EdgeCount(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

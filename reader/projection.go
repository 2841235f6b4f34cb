package reader

// ProjectionKind selects which leaf columns a read touches.
type ProjectionKind int

const (
	// ProjectAll reads every leaf column of the schema.
	ProjectAll ProjectionKind = iota
	// ProjectLeafIndexes reads only the leaf columns named by Indexes.
	ProjectLeafIndexes
)

// Projection is a ReaderBuilder input selecting which leaf columns to
// decode: all, or leaf-column-indexes.
type Projection struct {
	Kind    ProjectionKind
	Indexes []int // leaf-column indexes, meaningful only when Kind == ProjectLeafIndexes
}

// All returns the projection that reads every leaf column.
func All() Projection { return Projection{Kind: ProjectAll} }

// LeafIndexes returns the projection that reads exactly the given leaf
// column indexes, in schema order regardless of argument order.
func LeafIndexes(indexes []int) Projection {
	sorted := append([]int(nil), indexes...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return Projection{Kind: ProjectLeafIndexes, Indexes: sorted}
}

// resolve returns the concrete, ascending set of leaf-column indexes this
// projection selects out of totalLeaves columns.
func (p Projection) resolve(totalLeaves int) []int {
	if p.Kind == ProjectAll {
		idx := make([]int, totalLeaves)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	return p.Indexes
}

package reader

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/f3-format/f3/f3err"
)

// SelectionKind selects which rows within a row group a read touches.
type SelectionKind int

const (
	// SelectAll yields every row in the row group.
	SelectAll SelectionKind = iota
	// SelectRowIndexes yields only the rows present in the index bitmap.
	SelectRowIndexes
)

// Selection is a ReaderBuilder input narrowing which rows are yielded: all,
// or a single row-index group. The single-group restriction is preserved
// verbatim from the source design.
type Selection struct {
	Kind    SelectionKind
	Indexes *roaring.Bitmap // non-nil only when Kind == SelectRowIndexes
}

// AllRows returns the selection that yields every row.
func AllRows() Selection { return Selection{Kind: SelectAll} }

// RowIndexes returns the selection that yields only rows present in bm.
// Only a single index group is supported; callers needing to select rows
// from multiple disjoint groups must union them into one bitmap first.
func RowIndexes(bm *roaring.Bitmap) Selection {
	return Selection{Kind: SelectRowIndexes, Indexes: bm}
}

// validate rejects a row-index selection that has no bitmap; the
// single-group restriction needs no check, since a Selection holds at most
// one bitmap. It exists as its own step rather than being folded into
// RowIndexes so ReaderBuilder can surface the failure at Build time,
// consistent with every other Build precondition.
func (s Selection) validate() error {
	if s.Kind == SelectRowIndexes && s.Indexes == nil {
		return f3err.New(f3err.General, "row index selection requires a non-nil bitmap")
	}
	return nil
}

// includes reports whether row i (row-group-relative) is selected.
func (s Selection) includes(i uint32) bool {
	if s.Kind == SelectAll {
		return true
	}
	return s.Indexes.Contains(i)
}

package footer

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/f3-format/f3/f3err"
)

// RowGroupsPointer and ColumnMetaPointer are encoded with the flatbuffers
// runtime (github.com/google/flatbuffers) rather than the tag-length-value
// codec used for the schema tree in schema.go. This is the one part of the footer
// that is genuinely shaped like a flatbuffers schema: three equal-length,
// fixed-width scalar vectors plus a vector of small, fixed-layout
// ColumnMetaPointer records, addressed purely by index with no variable-
// length names. ColumnMetaPointer is encoded as an inline flatbuffers
// struct (no vtable) so that scanning a row group's column pointers is a
// flat array read.

// ColumnMetaPointer locates one leaf column's encoded metadata blob.
type ColumnMetaPointer struct {
	Offset uint64
	Size   uint64
}

const columnMetaPointerSize = 16 // 2 x uint64, flatbuffers struct layout

// RowGroupMetadata is the ordered sequence of column metadata pointers for
// one row group.
type RowGroupMetadata struct {
	ColMetadatas []ColumnMetaPointer
}

// RowGroupsPointer is the footer's index into every row group's location
// and per-column metadata pointers.
type RowGroupsPointer struct {
	RowCounts         []uint64
	Offsets           []uint64
	Sizes             []uint64
	RowGroupMetadatas []RowGroupMetadata
}

// Validate enforces the RowGroupsPointer invariant: all four sequences have
// the same length and correspond by index, and every row group exposes the
// same number of leaf columns in the same order.
func (p RowGroupsPointer) Validate() error {
	n := len(p.RowCounts)
	if len(p.Offsets) != n || len(p.Sizes) != n || len(p.RowGroupMetadatas) != n {
		return f3err.New(f3err.ParseError, "row_counts/offsets/sizes/row_group_metadatas length mismatch")
	}
	if n == 0 {
		return nil
	}
	want := len(p.RowGroupMetadatas[0].ColMetadatas)
	for i, rg := range p.RowGroupMetadatas {
		if len(rg.ColMetadatas) != want {
			return f3err.New(f3err.ParseError, "row groups disagree on leaf column count")
		}
		_ = i
	}
	return nil
}

func buildColumnMetaVector(b *flatbuffers.Builder, ptrs []ColumnMetaPointer) flatbuffers.UOffsetT {
	b.StartVector(columnMetaPointerSize, len(ptrs), 8)
	for i := len(ptrs) - 1; i >= 0; i-- {
		// Struct fields are written back-to-front: Size then Offset, so that
		// Offset ends up at the lower (first-read) address.
		b.PrependUint64(ptrs[i].Size)
		b.PrependUint64(ptrs[i].Offset)
	}
	return b.EndVector(len(ptrs))
}

func buildRowGroupMetadata(b *flatbuffers.Builder, rg RowGroupMetadata) flatbuffers.UOffsetT {
	colsOff := buildColumnMetaVector(b, rg.ColMetadatas)
	b.StartObject(1)
	b.PrependUOffsetTSlot(0, colsOff, 0)
	return b.EndObject()
}

func buildUint64Vector(b *flatbuffers.Builder, vals []uint64) flatbuffers.UOffsetT {
	b.StartVector(8, len(vals), 8)
	for i := len(vals) - 1; i >= 0; i-- {
		b.PrependUint64(vals[i])
	}
	return b.EndVector(len(vals))
}

// EncodeRowGroupsPointer serializes p to a standalone flatbuffer blob.
func EncodeRowGroupsPointer(p RowGroupsPointer) []byte {
	b := flatbuffers.NewBuilder(1024)

	rgOffsets := make([]flatbuffers.UOffsetT, len(p.RowGroupMetadatas))
	for i, rg := range p.RowGroupMetadatas {
		rgOffsets[i] = buildRowGroupMetadata(b, rg)
	}
	b.StartVector(4, len(rgOffsets), 4)
	for i := len(rgOffsets) - 1; i >= 0; i-- {
		b.PrependUOffsetT(rgOffsets[i])
	}
	rgVecOff := b.EndVector(len(rgOffsets))

	sizesOff := buildUint64Vector(b, p.Sizes)
	offsetsOff := buildUint64Vector(b, p.Offsets)
	rowCountsOff := buildUint64Vector(b, p.RowCounts)

	b.StartObject(4)
	b.PrependUOffsetTSlot(0, rowCountsOff, 0)
	b.PrependUOffsetTSlot(1, offsetsOff, 0)
	b.PrependUOffsetTSlot(2, sizesOff, 0)
	b.PrependUOffsetTSlot(3, rgVecOff, 0)
	root := b.EndObject()

	b.Finish(root)
	return b.FinishedBytes()
}

// DecodeRowGroupsPointer parses a blob produced by EncodeRowGroupsPointer.
// The flatbuffers accessors panic on out-of-range offsets; a malformed blob
// is reported as a ParseError instead.
func DecodeRowGroupsPointer(buf []byte) (_ RowGroupsPointer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = f3err.New(f3err.ParseError, fmt.Sprintf("malformed row groups pointer: %v", r))
		}
	}()
	if len(buf) < 4 {
		return RowGroupsPointer{}, f3err.New(f3err.ParseError, "row groups pointer blob too small")
	}
	rootPos := flatbuffers.GetUOffsetT(buf)
	t := &flatbuffers.Table{Bytes: buf, Pos: rootPos}

	readUint64Vec := func(fieldIndex int, name string) ([]uint64, error) {
		o := t.Offset(flatbuffers.VOffsetT(4 + 2*fieldIndex))
		if o == 0 {
			return nil, f3err.New(f3err.ParseError, "row groups pointer missing "+name)
		}
		n := t.VectorLen(o)
		a := t.Vector(o)
		out := make([]uint64, n)
		for i := 0; i < n; i++ {
			out[i] = t.GetUint64(a + flatbuffers.UOffsetT(i*8))
		}
		return out, nil
	}

	rowCounts, err := readUint64Vec(0, "row_counts")
	if err != nil {
		return RowGroupsPointer{}, err
	}
	offsets, err := readUint64Vec(1, "offsets")
	if err != nil {
		return RowGroupsPointer{}, err
	}
	sizes, err := readUint64Vec(2, "sizes")
	if err != nil {
		return RowGroupsPointer{}, err
	}

	rgFieldOff := t.Offset(4 + 2*3)
	if rgFieldOff == 0 {
		return RowGroupsPointer{}, f3err.New(f3err.ParseError, "row groups pointer missing row_group_metadatas")
	}
	rgVecStart := t.Vector(rgFieldOff)
	rgCount := t.VectorLen(rgFieldOff)

	rowGroupMetadatas := make([]RowGroupMetadata, rgCount)
	for i := 0; i < rgCount; i++ {
		tableUOff := rgVecStart + flatbuffers.UOffsetT(i*4)
		indirected := t.Indirect(tableUOff)
		rgTable := &flatbuffers.Table{Bytes: buf, Pos: indirected}

		colsFieldOff := rgTable.Offset(4)
		var cols []ColumnMetaPointer
		if colsFieldOff != 0 {
			colsStart := rgTable.Vector(colsFieldOff)
			colsCount := rgTable.VectorLen(colsFieldOff)
			cols = make([]ColumnMetaPointer, colsCount)
			for j := 0; j < colsCount; j++ {
				pos := colsStart + flatbuffers.UOffsetT(j*columnMetaPointerSize)
				cols[j] = ColumnMetaPointer{
					Offset: rgTable.GetUint64(pos),
					Size:   rgTable.GetUint64(pos + 8),
				}
			}
		}
		rowGroupMetadatas[i] = RowGroupMetadata{ColMetadatas: cols}
	}

	out := RowGroupsPointer{
		RowCounts:         rowCounts,
		Offsets:           offsets,
		Sizes:             sizes,
		RowGroupMetadatas: rowGroupMetadatas,
	}
	if err := out.Validate(); err != nil {
		return RowGroupsPointer{}, err
	}
	return out, nil
}

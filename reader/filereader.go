package reader

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/compute"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/f3-format/f3/bufferarray"
	"github.com/f3-format/f3/checksum"
	"github.com/f3-format/f3/codec/builtin"
	"github.com/f3-format/f3/decoder"
	"github.com/f3-format/f3/dict"
	"github.com/f3-format/f3/f3err"
	"github.com/f3-format/f3/footer"
	"github.com/f3-format/f3/positional"
)

// ioUnitChecksumSize is the width of the trailing checksum appended to each
// IOUnit when the file carries per-unit checksums.
const ioUnitChecksumSize = 8

// FileReader executes projection/selection against row groups, driving
// decoder dispatch and BufferToArray reconstruction.
type FileReader struct {
	reader positional.Reader
	footer footer.Footer

	rowGroups            footer.RowGroupsPointer
	physicalLeaves       []footer.PhysicalLeaf
	projectedLeafIndexes []int
	selection            Selection

	registry  *decoder.Registry
	dictCache *dict.Cache

	verifyIOUnitChecksum bool
	checksumType         checksum.Type

	// metadataBlob is the contiguous column-metadata region read eagerly
	// under the batching heuristic; nil when the builder chose the sparse
	// per-column strategy instead.
	metadataBlob        []byte
	metadataRegionStart uint64
}

// Schema returns the file's logical schema tree.
func (f *FileReader) Schema() footer.Schema { return f.footer.Schema }

// NumRowGroups returns the number of row groups in the file.
func (f *FileReader) NumRowGroups() int { return len(f.rowGroups.RowCounts) }

// Close releases the decoder registry and shared-dictionary cache.
func (f *FileReader) Close(ctx context.Context) error {
	if f.dictCache != nil {
		f.dictCache.Release()
	}
	if f.registry != nil {
		return f.registry.Close(ctx)
	}
	return nil
}

// ReadAll returns a lazy, finite, non-restartable iterator over every row
// group's decoded batch, in file order.
func (f *FileReader) ReadAll(ctx context.Context) *BatchIterator {
	return &BatchIterator{fr: f, ctx: ctx, next: 0}
}

// BatchIterator walks every row group of a FileReader exactly once.
type BatchIterator struct {
	fr   *FileReader
	ctx  context.Context
	next int
}

// Next decodes and returns the next row group's batch, or (nil, nil, false)
// once every row group has been consumed.
func (it *BatchIterator) Next() (arrow.Record, error, bool) {
	if it.next >= it.fr.NumRowGroups() {
		return nil, nil, false
	}
	rg, err := it.fr.RowGroup(it.next)
	if err != nil {
		return nil, err, false
	}
	it.next++
	rec, err := rg.Read(it.ctx)
	if err != nil {
		return nil, err, false
	}
	return rec, nil, true
}

// RowGroupReader decodes the projected columns of one row group on demand.
type RowGroupReader struct {
	fr    *FileReader
	index int
}

// RowGroup returns a reader over row group i, 0-indexed in file order.
func (f *FileReader) RowGroup(i int) (*RowGroupReader, error) {
	if i < 0 || i >= f.NumRowGroups() {
		return nil, f3err.New(f3err.General, fmt.Sprintf("row group index %d out of range [0,%d)", i, f.NumRowGroups()))
	}
	return &RowGroupReader{fr: f, index: i}, nil
}

// Read decodes this row group's projected columns, applies the reader's
// selection, and returns an Arrow record batch.
func (rg *RowGroupReader) Read(ctx context.Context) (arrow.Record, error) {
	f := rg.fr
	rgMeta := f.rowGroups.RowGroupMetadatas[rg.index]
	rowCount := int(f.rowGroups.RowCounts[rg.index])

	leaves := footer.LeafFields(f.footer.Schema.Fields)
	fields := make([]arrow.Field, 0, len(f.projectedLeafIndexes))
	cols := make([]arrow.Array, 0, len(f.projectedLeafIndexes))

	for _, leafIdx := range f.projectedLeafIndexes {
		if leafIdx >= len(rgMeta.ColMetadatas) {
			return nil, f3err.New(f3err.ParseError, fmt.Sprintf("row group %d has no column pointer for leaf %d", rg.index, leafIdx))
		}
		arr, err := f.decodeColumn(ctx, rgMeta.ColMetadatas[leafIdx], f.physicalLeaves[leafIdx], leaves[leafIdx], rowCount)
		if err != nil {
			return nil, err
		}
		arr, err = f.applySelection(ctx, arr, rowCount)
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: leaves[leafIdx].Name, Type: arr.DataType(), Nullable: leaves[leafIdx].Nullable})
		cols = append(cols, arr)
	}

	schema := arrow.NewSchema(fields, nil)
	selectedRows := int64(rowCount)
	if len(cols) > 0 {
		selectedRows = int64(cols[0].Len())
	}
	rec := array.NewRecord(schema, cols, selectedRows)
	for _, c := range cols {
		c.Release()
	}
	return rec, nil
}

// decodeColumn implements the per-column decode pipeline: resolve metadata,
// gate decoder compatibility, read the chunk bytes, dispatch to the
// built-in codec or the sandboxed runtime, then reconstruct the array.
func (f *FileReader) decodeColumn(ctx context.Context, ptr footer.ColumnMetaPointer, _ footer.PhysicalLeaf, leaf footer.Field, rowCount int) (arrow.Array, error) {
	meta, err := f.readColumnMetadata(ctx, ptr) // step 1
	if err != nil {
		return nil, err
	}

	if recorded, ok := f.footer.EncodingVersions[meta.DecoderID]; ok { // step 2
		compareVersion := meta.Version
		if meta.DecoderID == builtin.DecoderID {
			compareVersion = builtin.Version
		}
		if !recorded.Compatible(compareVersion) {
			return nil, f3err.New(f3err.IncompatibleDecoder, fmt.Sprintf("column %s encoded at version %+v incompatible with recorded %+v", leaf.Name, compareVersion, recorded))
		}
	}

	chunk, err := f.readChunk(ctx, meta.ChunkOffset, meta.ChunkSize) // step 3
	if err != nil {
		return nil, err
	}

	var buffers [][]byte
	if meta.DecoderID == builtin.DecoderID {
		// The built-in decoder runs in-process: no sandbox crossing, no
		// registry lookup, just the native codec.
		buffers, err = builtin.Decode(leaf.Type, chunk, rowCount) // step 4
	} else {
		var rt *decoder.Runtime
		rt, err = f.registry.GetRuntime(ctx, decoder.ID(meta.DecoderID))
		if err != nil {
			return nil, err
		}
		// The decoder ABI consults a dictionary-backed column's shared array
		// by id out of band (it was already materialized into f.dictCache at
		// Build time); the only thing crossing the wasm boundary here is
		// the column's own encoded chunk bytes.
		var sharedDictBytes []byte
		buffers, err = rt.Decode(ctx, chunk, sharedDictBytes, rowCount) // step 4
	}
	if err != nil {
		return nil, err
	}

	var child arrow.Array
	arr, err := bufferarray.BufferToArray(leaf.Type, buffers, rowCount, child) // step 5
	if err != nil {
		return nil, err
	}
	return arr, nil
}

// applySelection implements the row-selection step: BufferToArray always
// reconstructs the full row group column, so a row-index selection narrows
// it afterwards via Arrow's take kernel rather than threading the bitmap
// through every BufferToArray type-family branch.
func (f *FileReader) applySelection(ctx context.Context, arr arrow.Array, rowCount int) (arrow.Array, error) {
	if f.selection.Kind == SelectAll {
		return arr, nil
	}

	mem := memory.NewGoAllocator()
	idxBldr := array.NewInt64Builder(mem)
	defer idxBldr.Release()
	for i := 0; i < rowCount; i++ {
		if f.selection.includes(uint32(i)) {
			idxBldr.Append(int64(i))
		}
	}
	indices := idxBldr.NewInt64Array()
	defer indices.Release()

	taken, err := compute.TakeArray(ctx, arr, indices)
	if err != nil {
		return nil, f3err.Wrap(f3err.General, err, "apply row selection")
	}
	arr.Release()
	return taken, nil
}

// readColumnMetadata resolves the ColumnMetadata record pointed to by ptr,
// either by slicing the eagerly-read metadata blob or by a dedicated
// positional read, per whichever strategy Build chose.
func (f *FileReader) readColumnMetadata(ctx context.Context, ptr footer.ColumnMetaPointer) (ColumnMetadata, error) {
	if f.metadataBlob != nil {
		start := ptr.Offset - f.metadataRegionStart
		end := start + ptr.Size
		if ptr.Offset < f.metadataRegionStart || end < start || end > uint64(len(f.metadataBlob)) {
			return ColumnMetadata{}, f3err.New(f3err.ParseError, "column metadata pointer exceeds batched metadata region")
		}
		return DecodeColumnMetadata(f.metadataBlob[start:end])
	}
	buf := make([]byte, ptr.Size)
	if err := f.reader.ReadExactAt(ctx, buf, ptr.Offset); err != nil {
		return ColumnMetadata{}, err
	}
	return DecodeColumnMetadata(buf)
}

// readChunk reads a column chunk's bytes and, if enabled, verifies and
// strips each IOUnit's trailing checksum.
func (f *FileReader) readChunk(ctx context.Context, offset, size uint64) ([]byte, error) {
	raw := make([]byte, size)
	if err := f.reader.ReadExactAt(ctx, raw, offset); err != nil {
		return nil, err
	}
	if !f.verifyIOUnitChecksum {
		return raw, nil
	}
	return verifyAndStripIOUnits(raw, f.checksumType)
}

func verifyAndStripIOUnits(raw []byte, typ checksum.Type) ([]byte, error) {
	const unitPayload = footer.DEFAULT_IOUNIT_SIZE
	var out []byte
	pos := 0
	for pos < len(raw) {
		remaining := len(raw) - pos
		payloadLen := unitPayload
		if remaining < unitPayload+ioUnitChecksumSize {
			payloadLen = remaining - ioUnitChecksumSize
		}
		if payloadLen < 0 {
			return nil, f3err.New(f3err.ParseError, "column chunk truncated mid IOUnit")
		}
		payload := raw[pos : pos+payloadLen]
		trailer := raw[pos+payloadLen : pos+payloadLen+ioUnitChecksumSize]
		want := leUint64(trailer)
		got := checksum.Sum64(typ, payload)
		if got != want {
			return nil, f3err.New(f3err.ChecksumMismatch, "IOUnit checksum mismatch")
		}
		out = append(out, payload...)
		pos += payloadLen + ioUnitChecksumSize
	}
	return out, nil
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

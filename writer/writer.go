// Package writer assembles a complete F3 file from Arrow record batches: the
// write-side counterpart to reader.Builder, grounded on the same postscript
// and footer types reader/builder.go and reader/filereader.go parse.
package writer

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/f3-format/f3/checksum"
	"github.com/f3-format/f3/codec/builtin"
	"github.com/f3-format/f3/decoder"
	"github.com/f3-format/f3/f3err"
	"github.com/f3-format/f3/footer"
	"github.com/f3-format/f3/reader"
)

// CustomEncoder produces the on-disk bytes for one column encoded by decoder
// id, the write-side dual of decoder.Runtime.Decode. The writer package
// cannot invoke a wazero module itself in the encode direction, so a custom
// (non-builtin) decoder id requires the caller to supply this.
type CustomEncoder func(id decoder.ID, lt footer.LogicalType, buffers [][]byte, rowCount int) ([]byte, error)

// Writer encodes a sequence of row groups into a complete file's bytes per a
// decoder.WriterContext's encoding policy.
type Writer struct {
	wc             *decoder.WriterContext
	checksumType   checksum.Type
	encodeCustom   CustomEncoder
	customVersions map[decoder.ID]footer.EncodingVersion
}

// New starts a Writer targeting wc's encoding policy, defaulting to the
// xxhash64 file checksum reader.Builder verifies against.
func New(wc *decoder.WriterContext) *Writer {
	return &Writer{
		wc:             wc,
		checksumType:   checksum.XxHash64,
		customVersions: map[decoder.ID]footer.EncodingVersion{},
	}
}

// WithChecksumType overrides the postscript's data checksum algorithm.
func (w *Writer) WithChecksumType(t checksum.Type) *Writer {
	w.checksumType = t
	return w
}

// WithCustomEncoder registers the byte-level encoder used for any decoder id
// other than the built-in id 0.
func (w *Writer) WithCustomEncoder(fn CustomEncoder) *Writer {
	w.encodeCustom = fn
	return w
}

// WithCustomVersion records the encoding_versions entry a custom decoder id
// should be tagged with in the footer.
func (w *Writer) WithCustomVersion(id decoder.ID, v footer.EncodingVersion) *Writer {
	w.customVersions[id] = v
	return w
}

// leafPointer is the per-column bookkeeping accumulated while encoding one
// row group, before column metadata records get their final absolute file
// offsets (which depend on the total size of every row group's data).
type leafPointer struct {
	decoderID   uint32
	version     footer.EncodingVersion
	chunkOffset uint64
	chunkSize   uint64
}

// Write encodes records -- one per row group, in file order -- into a
// complete file: column chunk data, then the column-metadata region, then
// the footer, then the fixed-size postscript. Every record must share the
// same flat (leaf-only) schema; nested List/Struct columns are rejected
// because reader/filereader.go never reconstructs a nested wrapper around a
// decoded leaf on the way back.
func (w *Writer) Write(records []arrow.Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, f3err.New(f3err.General, "write requires at least one row group")
	}

	fields, err := leafFieldsFromArrow(records[0].Schema())
	if err != nil {
		return nil, err
	}
	leafCount := len(fields)

	decoderIDs := make([]decoder.ID, leafCount)
	physicalLeaves := make([]footer.PhysicalLeaf, leafCount)
	encodingVersions := map[uint32]footer.EncodingVersion{}
	for i, f := range fields {
		id, err := w.wc.DecoderFor(f.Type)
		if err != nil {
			return nil, err
		}
		decoderIDs[i] = id
		physicalLeaves[i] = footer.PhysicalLeaf{DecoderID: uint32(id)}
		if _, ok := encodingVersions[uint32(id)]; ok {
			continue
		}
		if uint32(id) == builtin.DecoderID {
			encodingVersions[uint32(id)] = builtin.Version
		} else if v, ok := w.customVersions[id]; ok {
			encodingVersions[uint32(id)] = v
		}
	}

	var dataBuf []byte
	rowCounts := make([]uint64, len(records))
	rgOffsets := make([]uint64, len(records))
	rgSizes := make([]uint64, len(records))
	allPointers := make([][]leafPointer, len(records))

	for rgIdx, rec := range records {
		if int(rec.NumCols()) != leafCount {
			return nil, f3err.New(f3err.General, fmt.Sprintf("row group %d has %d columns, expected %d", rgIdx, rec.NumCols(), leafCount))
		}
		rgStart := uint64(len(dataBuf))
		rowCount := int(rec.NumRows())
		rowCounts[rgIdx] = uint64(rowCount)

		pointers := make([]leafPointer, leafCount)
		for col := 0; col < leafCount; col++ {
			arr := rec.Column(col)
			lt := fields[col].Type
			if got, err := logicalTypeOf(arr.DataType()); err != nil {
				return nil, err
			} else if got != lt {
				return nil, f3err.New(f3err.General, fmt.Sprintf("row group %d column %d type changed across row groups", rgIdx, col))
			}

			buffers := arrayToBuffers(arr)
			id := decoderIDs[col]

			var chunk []byte
			if uint32(id) == builtin.DecoderID {
				chunk, err = builtin.Encode(lt, buffers, rowCount)
			} else if w.encodeCustom != nil {
				chunk, err = w.encodeCustom(id, lt, buffers, rowCount)
			} else {
				err = f3err.New(f3err.UnmappedDataType, fmt.Sprintf("no custom encoder registered for decoder id %d", id))
			}
			if err != nil {
				return nil, err
			}

			chunkOffset := uint64(len(dataBuf))
			dataBuf = append(dataBuf, chunk...)
			pointers[col] = leafPointer{
				decoderID:   uint32(id),
				version:     encodingVersions[uint32(id)],
				chunkOffset: chunkOffset,
				chunkSize:   uint64(len(chunk)),
			}
		}
		allPointers[rgIdx] = pointers
		rgOffsets[rgIdx] = rgStart
		rgSizes[rgIdx] = uint64(len(dataBuf)) - rgStart
	}

	// Column metadata lives immediately after every row group's chunk data,
	// so its absolute file offsets start at dataSize -- the same arithmetic
	// reader.Builder.Build inverts via metadataRegionStart/metadataRegionEnd.
	dataSize := uint64(len(dataBuf))
	var colMetaBuf []byte
	rgMetas := make([]footer.RowGroupMetadata, len(records))
	for rgIdx, pointers := range allPointers {
		colPtrs := make([]footer.ColumnMetaPointer, leafCount)
		for col, p := range pointers {
			metaBytes := reader.EncodeColumnMetadata(reader.ColumnMetadata{
				DecoderID:   p.decoderID,
				Version:     p.version,
				ChunkOffset: p.chunkOffset,
				ChunkSize:   p.chunkSize,
			})
			colPtrs[col] = footer.ColumnMetaPointer{
				Offset: dataSize + uint64(len(colMetaBuf)),
				Size:   uint64(len(metaBytes)),
			}
			colMetaBuf = append(colMetaBuf, metaBytes...)
		}
		rgMetas[rgIdx] = footer.RowGroupMetadata{ColMetadatas: colPtrs}
	}

	physicalNodes := make([]footer.PhysicalNode, leafCount)
	for i := range physicalLeaves {
		leaf := physicalLeaves[i]
		physicalNodes[i] = footer.PhysicalNode{Leaf: &leaf}
	}

	rowGroups := footer.RowGroupsPointer{
		RowCounts:         rowCounts,
		Offsets:           rgOffsets,
		Sizes:             rgSizes,
		RowGroupMetadatas: rgMetas,
	}
	if err := rowGroups.Validate(); err != nil {
		return nil, err
	}

	ft := footer.Footer{
		Schema:            footer.Schema{Fields: fields},
		LogicalToPhysical: physicalNodes,
		RowGroups:         rowGroups,
		EncodingVersions:  encodingVersions,
	}
	footerBytes := footer.EncodeFooter(ft)

	body := make([]byte, 0, len(dataBuf)+len(colMetaBuf)+len(footerBytes))
	body = append(body, dataBuf...)
	body = append(body, colMetaBuf...)
	body = append(body, footerBytes...)

	ps := footer.Postscript{
		FormatVersion: footer.CurrentFormatVersion,
		FooterSize:    uint32(len(footerBytes)),
		MetadataSize:  uint32(len(colMetaBuf) + len(footerBytes)),
		DataChecksum:  checksum.Sum64(w.checksumType, body),
		ChecksumType:  w.checksumType,
	}

	return append(body, ps.Encode()...), nil
}

func leafFieldsFromArrow(schema *arrow.Schema) ([]footer.Field, error) {
	arrowFields := schema.Fields()
	fields := make([]footer.Field, len(arrowFields))
	for i, f := range arrowFields {
		lt, err := logicalTypeOf(f.Type)
		if err != nil {
			return nil, err
		}
		fields[i] = footer.Field{Name: f.Name, Type: lt, Nullable: f.Nullable}
	}
	return fields, nil
}

// Package builtin implements the decoder reserved at the file-local id 0.
// Unlike every other decoder id, which crosses the wazero sandbox boundary
// as an opaque module, the built-in decoder is a concrete, in-process Go
// codec: reader.FileReader special-cases id 0 and calls Decode directly,
// skipping decoder.Registry and the wasm runtime entirely.
//
// The wire format reuses github.com/parquet-go/parquet-go's PLAIN and
// RLE/bit-packed primitives, the same encodings a real parquet page would
// use for these shapes: PLAIN is the identity encoding for fixed-width
// values (it already is little-endian raw bytes, the same layout
// bufferarray hands to Arrow), and RLE/bit-packed is the classic encoding
// for boolean runs and validity bitmaps.
package builtin

import (
	"encoding/binary"
	"fmt"

	"github.com/parquet-go/parquet-go/encoding/plain"
	"github.com/parquet-go/parquet-go/encoding/rle"

	"github.com/f3-format/f3/f3err"
	"github.com/f3-format/f3/footer"
)

// DecoderID is the file-local id reserved for this codec.
const DecoderID uint32 = 0

// Version is the ABI version this codec reports in a file's
// encoding_versions map.
var Version = footer.EncodingVersion{Major: 1, Minor: 0, Patch: 0}

var (
	plainCodec plain.Encoding
	rleCodec   rle.Encoding
)

// Encode produces the on-disk bytes for one leaf column's raw buffers,
// encoding each with whichever primitive fits its shape and framing the
// result as a small buffer-count header followed by length-prefixed
// records. A column chunk's bytes are opaque to everything but the
// decoder that wrote them.
func Encode(lt footer.LogicalType, buffers [][]byte, rowCount int) ([]byte, error) {
	records := make([][]byte, len(buffers))
	for i, buf := range buffers {
		enc, err := encodeBuffer(lt, i, buf, rowCount)
		if err != nil {
			return nil, f3err.Wrap(f3err.General, err, fmt.Sprintf("builtin encode buffer %d", i))
		}
		records[i] = enc
	}
	return packRecords(records), nil
}

// Decode reverses Encode, reproducing the exact raw buffers
// bufferarray.BufferToArray expects.
func Decode(lt footer.LogicalType, encoded []byte, rowCount int) ([][]byte, error) {
	records, err := unpackRecords(encoded)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(records))
	for i, rec := range records {
		dec, err := decodeBuffer(lt, i, rec, rowCount)
		if err != nil {
			return nil, f3err.Wrap(f3err.General, err, fmt.Sprintf("builtin decode buffer %d", i))
		}
		out[i] = dec
	}
	return out, nil
}

// isValidityIndex reports whether buffer idx is the validity bitmap, always
// first in the per-type buffer list bufferarray.go documents.
func isValidityIndex(i int) bool { return i == 0 }

func encodeBuffer(lt footer.LogicalType, idx int, buf []byte, rowCount int) ([]byte, error) {
	if len(buf) == 0 {
		return nil, nil // empty validity buffer sentinel, or a genuinely empty column
	}
	if isValidityIndex(idx) {
		return encodeBitpacked(buf, rowCount)
	}
	switch lt {
	case footer.LogicalInt8, footer.LogicalUint8:
		return append([]byte(nil), buf...), nil // single-byte elements: PLAIN is a byte-for-byte copy
	case footer.LogicalBool:
		return encodeBitpacked(buf, rowCount)
	case footer.LogicalInt32, footer.LogicalUint32, footer.LogicalFloat32:
		return encodePlainFixed32(buf)
	case footer.LogicalInt64, footer.LogicalUint64, footer.LogicalFloat64:
		return encodePlainFixed64(buf)
	default:
		// Byte array offsets/data, large variants, view headers, list
		// offsets and anything else: stored verbatim. PLAIN's byte-array
		// form conflates Arrow's separate offsets+data buffers into one
		// length-prefixed stream, which would need to see both buffers at
		// once; the per-buffer shape here keeps the codec simple at the
		// cost of not compacting those two buffer kinds.
		return append([]byte(nil), buf...), nil
	}
}

func decodeBuffer(lt footer.LogicalType, idx int, rec []byte, rowCount int) ([]byte, error) {
	if rec == nil {
		return nil, nil
	}
	if isValidityIndex(idx) {
		return decodeBitpacked(rec, rowCount)
	}
	switch lt {
	case footer.LogicalInt8, footer.LogicalUint8:
		return rec, nil
	case footer.LogicalBool:
		return decodeBitpacked(rec, rowCount)
	case footer.LogicalInt32, footer.LogicalUint32, footer.LogicalFloat32:
		return decodePlainFixed32(rec)
	case footer.LogicalInt64, footer.LogicalUint64, footer.LogicalFloat64:
		return decodePlainFixed64(rec)
	default:
		return rec, nil
	}
}

// encodeBitpacked/decodeBitpacked round-trip a raw LSB-first bitmap (the
// same bit ordering Arrow and parquet's BOOLEAN page type both use) through
// parquet-go's RLE/bit-packed hybrid encoding.
func encodeBitpacked(buf []byte, rowCount int) ([]byte, error) {
	return rleCodec.EncodeBoolean(nil, buf)
}

func decodeBitpacked(rec []byte, rowCount int) ([]byte, error) {
	dst := make([]byte, (rowCount+7)/8)
	return rleCodec.DecodeBoolean(dst, rec)
}

func encodePlainFixed32(buf []byte) ([]byte, error) {
	n := len(buf) / 4
	src := make([]int32, n)
	for i := 0; i < n; i++ {
		src[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return plainCodec.EncodeInt32(nil, src)
}

func decodePlainFixed32(rec []byte) ([]byte, error) {
	n := len(rec) / 4
	dst := make([]int32, n)
	dst, err := plainCodec.DecodeInt32(dst, rec)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(dst)*4)
	for i, v := range dst {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
	}
	return out, nil
}

func encodePlainFixed64(buf []byte) ([]byte, error) {
	n := len(buf) / 8
	src := make([]int64, n)
	for i := 0; i < n; i++ {
		src[i] = int64(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return plainCodec.EncodeInt64(nil, src)
}

func decodePlainFixed64(rec []byte) ([]byte, error) {
	n := len(rec) / 8
	dst := make([]int64, n)
	dst, err := plainCodec.DecodeInt64(dst, rec)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(dst)*8)
	for i, v := range dst {
		binary.LittleEndian.PutUint64(out[i*8:], uint64(v))
	}
	return out, nil
}

// packRecords/unpackRecords frame a sequence of possibly-nil byte records
// as a count followed by (present-flag, length, bytes) per record.
func packRecords(records [][]byte) []byte {
	var out []byte
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(records)))
	out = append(out, countBuf[:]...)
	for _, r := range records {
		if r == nil {
			out = append(out, 0)
			continue
		}
		out = append(out, 1)
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(r)))
		out = append(out, lenBuf[:]...)
		out = append(out, r...)
	}
	return out
}

func unpackRecords(buf []byte) ([][]byte, error) {
	if len(buf) < 4 {
		return nil, f3err.New(f3err.ParseError, "builtin-encoded chunk too small for header")
	}
	count := binary.LittleEndian.Uint32(buf[0:4])
	pos := 4
	out := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		if pos >= len(buf) {
			return nil, f3err.New(f3err.ParseError, "builtin-encoded chunk truncated")
		}
		present := buf[pos]
		pos++
		if present == 0 {
			out = append(out, nil)
			continue
		}
		if pos+4 > len(buf) {
			return nil, f3err.New(f3err.ParseError, "builtin-encoded chunk truncated record length")
		}
		n := int(binary.LittleEndian.Uint32(buf[pos : pos+4]))
		pos += 4
		if pos+n > len(buf) {
			return nil, f3err.New(f3err.ParseError, "builtin-encoded chunk truncated record body")
		}
		out = append(out, buf[pos:pos+n])
		pos += n
	}
	return out, nil
}

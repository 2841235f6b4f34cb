package writer

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/f3-format/f3/f3err"
	"github.com/f3-format/f3/footer"
)

// arrayToBuffers extracts arr's raw validity/data/offsets buffers in the
// exact order bufferarray.BufferToArray expects them back. Arrow's own
// internal buffer ordering (validity first, then type-family-specific
// buffers) already matches that layout one-to-one, so this is a direct,
// non-lossy walk of arr.Data().Buffers() rather than a per-type rebuild.
func arrayToBuffers(arr arrow.Array) [][]byte {
	bufs := arr.Data().Buffers()
	out := make([][]byte, len(bufs))
	for i, b := range bufs {
		if b == nil {
			continue
		}
		if arr.NullN() == 0 && i == 0 {
			// Empty validity buffer is BufferToArray's "all valid" sentinel;
			// write it that way even when Arrow itself carries an all-ones
			// bitmap for a null-free array.
			continue
		}
		out[i] = append([]byte(nil), b.Bytes()...)
	}
	return out
}

// logicalTypeOf maps an Arrow leaf data type back to its footer.LogicalType
// tag, the inverse of bufferarray's primitiveType/byteArrayType/byteViewType.
// List, LargeList and Struct are rejected: reader/filereader.go never
// reconstructs a nested wrapper around a decoded leaf, so the writer has
// nothing on the read side to round-trip a nested column against.
func logicalTypeOf(dt arrow.DataType) (footer.LogicalType, error) {
	switch dt.ID() {
	case arrow.INT8:
		return footer.LogicalInt8, nil
	case arrow.INT16:
		return footer.LogicalInt16, nil
	case arrow.INT32:
		return footer.LogicalInt32, nil
	case arrow.INT64:
		return footer.LogicalInt64, nil
	case arrow.UINT8:
		return footer.LogicalUint8, nil
	case arrow.UINT16:
		return footer.LogicalUint16, nil
	case arrow.UINT32:
		return footer.LogicalUint32, nil
	case arrow.UINT64:
		return footer.LogicalUint64, nil
	case arrow.FLOAT32:
		return footer.LogicalFloat32, nil
	case arrow.FLOAT64:
		return footer.LogicalFloat64, nil
	case arrow.BOOL:
		return footer.LogicalBool, nil
	case arrow.STRING:
		return footer.LogicalUtf8, nil
	case arrow.LARGE_STRING:
		return footer.LogicalLargeUtf8, nil
	case arrow.BINARY:
		return footer.LogicalBinary, nil
	case arrow.LARGE_BINARY:
		return footer.LogicalLargeBinary, nil
	case arrow.STRING_VIEW:
		return footer.LogicalUtf8View, nil
	case arrow.BINARY_VIEW:
		return footer.LogicalBinaryView, nil
	default:
		return 0, f3err.New(f3err.UnsupportedType, fmt.Sprintf("arrow type %s has no writer-side logical type mapping", dt))
	}
}

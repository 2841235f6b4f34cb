// Package bufferarray reconstructs typed Arrow columnar arrays from the raw
// validity/data/offset/view buffers a decoder runtime produces, grounded on
// the per-type array assembly in polarsignals-arcticdb's
// pqarrow/builder/optbuilders.go (OptBinaryBuilder.NewArray,
// OptInt64Builder.NewArray): wrap raw byte slices in memory.Buffer, hand
// them to array.NewData with an explicit null count, then the matching
// array.New*Data constructor.
package bufferarray

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/bitutil"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/f3-format/f3/f3err"
	"github.com/f3-format/f3/footer"
)

// BufferToArray reconstructs the typed array for one column from its raw
// decoded buffers, per the type-family buffer layout below. child is only
// consulted for List/LargeList and must be the already-reconstructed
// element array; it is ignored for every other type family.
func BufferToArray(logicalType footer.LogicalType, buffers [][]byte, rowCount int, child arrow.Array) (arr arrow.Array, err error) {
	// bitutil and Arrow's array constructors panic on undersized buffers;
	// report that as an error instead.
	defer func() {
		if r := recover(); r != nil {
			arr = nil
			err = f3err.New(f3err.General, fmt.Sprintf("reconstruct %d-row array of logical type %d: %v", rowCount, logicalType, r))
		}
	}()
	switch logicalType {
	case footer.LogicalInt8, footer.LogicalInt16, footer.LogicalInt32, footer.LogicalInt64,
		footer.LogicalUint8, footer.LogicalUint16, footer.LogicalUint32, footer.LogicalUint64,
		footer.LogicalFloat32, footer.LogicalFloat64:
		return primitiveArray(logicalType, buffers, rowCount)
	case footer.LogicalBool:
		return boolArray(buffers, rowCount)
	case footer.LogicalUtf8, footer.LogicalBinary:
		return byteArray(logicalType, buffers, rowCount, false)
	case footer.LogicalLargeUtf8, footer.LogicalLargeBinary:
		return byteArray(logicalType, buffers, rowCount, true)
	case footer.LogicalUtf8View, footer.LogicalBinaryView:
		return byteViewArray(logicalType, buffers, rowCount)
	case footer.LogicalList, footer.LogicalLargeList:
		return listArray(logicalType, buffers, rowCount, child)
	case footer.LogicalStruct:
		return nil, f3err.New(f3err.UnsupportedType, "struct reconstruction is not supported by buffer_to_array")
	default:
		return nil, f3err.New(f3err.UnsupportedType, fmt.Sprintf("unrecognized logical type %d", logicalType))
	}
}

// validityBuffer turns a possibly-empty raw validity buffer into the
// (buffer, nullCount) pair array.NewData expects. An empty buffer is the
// sentinel for "all valid": no validity buffer, zero nulls.
func validityBuffer(raw []byte, rowCount int) (*memory.Buffer, int) {
	if len(raw) == 0 {
		return nil, 0
	}
	nullCount := rowCount - bitutil.CountSetBits(raw, 0, rowCount)
	return memory.NewBufferBytes(raw), nullCount
}

func primitiveType(lt footer.LogicalType) arrow.DataType {
	switch lt {
	case footer.LogicalInt8:
		return arrow.PrimitiveTypes.Int8
	case footer.LogicalInt16:
		return arrow.PrimitiveTypes.Int16
	case footer.LogicalInt32:
		return arrow.PrimitiveTypes.Int32
	case footer.LogicalInt64:
		return arrow.PrimitiveTypes.Int64
	case footer.LogicalUint8:
		return arrow.PrimitiveTypes.Uint8
	case footer.LogicalUint16:
		return arrow.PrimitiveTypes.Uint16
	case footer.LogicalUint32:
		return arrow.PrimitiveTypes.Uint32
	case footer.LogicalUint64:
		return arrow.PrimitiveTypes.Uint64
	case footer.LogicalFloat32:
		return arrow.PrimitiveTypes.Float32
	case footer.LogicalFloat64:
		return arrow.PrimitiveTypes.Float64
	default:
		return nil
	}
}

func primitiveArray(lt footer.LogicalType, buffers [][]byte, rowCount int) (arrow.Array, error) {
	if len(buffers) < 2 {
		return nil, f3err.New(f3err.MissingBuffers, fmt.Sprintf("primitive column needs [validity?, data], got %d buffers", len(buffers)))
	}
	validityBuf, nullCount := validityBuffer(buffers[0], rowCount)
	data := array.NewData(primitiveType(lt), rowCount, []*memory.Buffer{validityBuf, memory.NewBufferBytes(buffers[1])}, nil, nullCount, 0)
	defer data.Release()
	return array.MakeFromData(data), nil
}

func boolArray(buffers [][]byte, rowCount int) (arrow.Array, error) {
	if len(buffers) < 2 {
		return nil, f3err.New(f3err.MissingBuffers, fmt.Sprintf("boolean column needs [validity?, data-bitmap], got %d buffers", len(buffers)))
	}
	validityBuf, nullCount := validityBuffer(buffers[0], rowCount)
	data := array.NewData(arrow.FixedWidthTypes.Boolean, rowCount, []*memory.Buffer{validityBuf, memory.NewBufferBytes(buffers[1])}, nil, nullCount, 0)
	defer data.Release()
	return array.NewBooleanData(data), nil
}

func byteArrayType(lt footer.LogicalType) arrow.DataType {
	switch lt {
	case footer.LogicalUtf8:
		return arrow.BinaryTypes.String
	case footer.LogicalBinary:
		return arrow.BinaryTypes.Binary
	case footer.LogicalLargeUtf8:
		return arrow.BinaryTypes.LargeString
	case footer.LogicalLargeBinary:
		return arrow.BinaryTypes.LargeBinary
	default:
		return nil
	}
}

func byteArray(lt footer.LogicalType, buffers [][]byte, rowCount int, large bool) (arrow.Array, error) {
	if len(buffers) < 3 {
		return nil, f3err.New(f3err.MissingBuffers, fmt.Sprintf("byte array column needs [validity?, offsets, data], got %d buffers", len(buffers)))
	}
	validityBuf, nullCount := validityBuffer(buffers[0], rowCount)
	data := array.NewData(byteArrayType(lt), rowCount, []*memory.Buffer{
		validityBuf,
		memory.NewBufferBytes(buffers[1]),
		memory.NewBufferBytes(buffers[2]),
	}, nil, nullCount, 0)
	defer data.Release()
	if large {
		switch lt {
		case footer.LogicalLargeUtf8:
			return array.NewLargeStringData(data), nil
		default:
			return array.NewLargeBinaryData(data), nil
		}
	}
	switch lt {
	case footer.LogicalUtf8:
		return array.NewStringData(data), nil
	default:
		return array.NewBinaryData(data), nil
	}
}

func byteViewType(lt footer.LogicalType) arrow.DataType {
	if lt == footer.LogicalUtf8View {
		return arrow.BinaryTypes.StringView
	}
	return arrow.BinaryTypes.BinaryView
}

func byteViewArray(lt footer.LogicalType, buffers [][]byte, rowCount int) (arrow.Array, error) {
	if len(buffers) < 2 {
		return nil, f3err.New(f3err.MissingBuffers, fmt.Sprintf("byte view column needs [validity?, views, data_buffers...], got %d buffers", len(buffers)))
	}
	validityBuf, nullCount := validityBuffer(buffers[0], rowCount)
	bufs := make([]*memory.Buffer, 0, len(buffers))
	bufs = append(bufs, validityBuf, memory.NewBufferBytes(buffers[1]))
	for _, extra := range buffers[2:] {
		bufs = append(bufs, memory.NewBufferBytes(extra))
	}
	data := array.NewData(byteViewType(lt), rowCount, bufs, nil, nullCount, 0)
	defer data.Release()
	if lt == footer.LogicalUtf8View {
		return array.NewStringViewData(data), nil
	}
	return array.NewBinaryViewData(data), nil
}

func listArray(lt footer.LogicalType, buffers [][]byte, rowCount int, child arrow.Array) (arrow.Array, error) {
	if len(buffers) < 2 {
		return nil, f3err.New(f3err.MissingBuffers, fmt.Sprintf("list column needs [validity?, offsets], got %d buffers", len(buffers)))
	}
	if child == nil {
		return nil, f3err.New(f3err.MissingBuffers, "list column has no reconstructed child array")
	}
	validityBuf, nullCount := validityBuffer(buffers[0], rowCount)
	var dtype arrow.DataType
	if lt == footer.LogicalLargeList {
		dtype = arrow.LargeListOf(child.DataType())
	} else {
		dtype = arrow.ListOf(child.DataType())
	}
	childData := child.Data()
	data := array.NewData(dtype, rowCount, []*memory.Buffer{validityBuf, memory.NewBufferBytes(buffers[1])}, []arrow.ArrayData{childData}, nullCount, 0)
	defer data.Release()
	if lt == footer.LogicalLargeList {
		return array.NewLargeListData(data), nil
	}
	return array.NewListData(data), nil
}

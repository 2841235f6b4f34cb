package footer

import (
	"encoding/binary"
	"fmt"

	"github.com/f3-format/f3/f3err"
)

// LogicalType tags a leaf or nesting node in the schema/logical trees. The
// numeric values are part of the on-disk format and must not be reordered.
type LogicalType uint8

const (
	LogicalInt8 LogicalType = iota
	LogicalInt16
	LogicalInt32
	LogicalInt64
	LogicalUint8
	LogicalUint16
	LogicalUint32
	LogicalUint64
	LogicalFloat32
	LogicalFloat64
	LogicalBool
	LogicalUtf8
	LogicalLargeUtf8
	LogicalBinary
	LogicalLargeBinary
	LogicalUtf8View
	LogicalBinaryView
	LogicalList
	LogicalLargeList
	LogicalStruct
)

// Field is one node of the self-describing schema tree. Leaf fields
// (everything but List/LargeList/Struct) have no Children; List/LargeList
// have exactly one (the element type); Struct has one per member.
type Field struct {
	Name     string
	Type     LogicalType
	Nullable bool
	Children []Field
}

// IsLeaf reports whether f corresponds to a physical column.
func (f Field) IsLeaf() bool {
	switch f.Type {
	case LogicalList, LogicalLargeList, LogicalStruct:
		return false
	default:
		return true
	}
}

// LeafFields walks the tree in depth-first order and returns every leaf,
// which is also the order column chunks/metadata are addressed by index.
func LeafFields(fields []Field) []Field {
	var leaves []Field
	var walk func([]Field)
	walk = func(fs []Field) {
		for _, f := range fs {
			if f.IsLeaf() {
				leaves = append(leaves, f)
			} else {
				walk(f.Children)
			}
		}
	}
	walk(fields)
	return leaves
}

// Schema is the top-level container for the logical schema tree.
type Schema struct {
	Fields []Field
}

// encodeFieldList/decodeFieldList implement a small recursive
// tag-length-value tree encoding for Field trees. This intentionally does
// not reuse the flatbuffers-based encoding in rowgroups.go: unlike the flat,
// fixed-width vectors in RowGroupsPointer (which are exactly what
// flatbuffers is built for, see rowgroups.go's doc comment), a recursive,
// variable-depth tree of variable-length names is naturally expressed with
// ordinary recursive functions, and the footer codec's forward-compatible
// contract (unknown fields are ignored) is satisfied by the length prefix
// on every node: a future reader that doesn't understand a new trailing
// field in a Field record can still skip over it using the record length.
func encodeFieldList(w *tlvWriter, fields []Field) {
	w.putUvarint(uint64(len(fields)))
	for _, f := range fields {
		encodeField(w, f)
	}
}

func encodeField(w *tlvWriter, f Field) {
	rec := newTLVWriter()
	rec.putString(f.Name)
	rec.putByte(byte(f.Type))
	rec.putBool(f.Nullable)
	encodeFieldList(rec, f.Children)
	w.putBytesLenPrefixed(rec.Bytes())
}

func decodeFieldList(r *tlvReader) ([]Field, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// An empty list decodes as nil, matching the nil Children of a leaf.
		return nil, nil
	}
	fields := make([]Field, 0, n)
	for i := uint64(0); i < n; i++ {
		f, err := decodeField(r)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func decodeField(r *tlvReader) (Field, error) {
	recBytes, err := r.bytesLenPrefixed()
	if err != nil {
		return Field{}, err
	}
	rec := newTLVReader(recBytes)
	name, err := rec.string()
	if err != nil {
		return Field{}, err
	}
	typByte, err := rec.byte()
	if err != nil {
		return Field{}, err
	}
	if typByte > byte(LogicalStruct) {
		return Field{}, f3err.New(f3err.ParseError, fmt.Sprintf("unknown logical type tag %d", typByte))
	}
	nullable, err := rec.bool()
	if err != nil {
		return Field{}, err
	}
	children, err := decodeFieldList(rec)
	if err != nil {
		return Field{}, err
	}
	return Field{Name: name, Type: LogicalType(typByte), Nullable: nullable, Children: children}, nil
}

// EncodeSchema serializes a Schema to bytes.
func EncodeSchema(s Schema) []byte {
	w := newTLVWriter()
	encodeFieldList(w, s.Fields)
	return w.Bytes()
}

// DecodeSchema parses bytes produced by EncodeSchema.
func DecodeSchema(buf []byte) (Schema, error) {
	r := newTLVReader(buf)
	fields, err := decodeFieldList(r)
	if err != nil {
		return Schema{}, err
	}
	return Schema{Fields: fields}, nil
}

// --- minimal TLV primitives used by the schema tree codec ---

type tlvWriter struct {
	buf []byte
}

func newTLVWriter() *tlvWriter { return &tlvWriter{} }

func (w *tlvWriter) Bytes() []byte { return w.buf }

func (w *tlvWriter) putByte(b byte) { w.buf = append(w.buf, b) }

func (w *tlvWriter) putBool(b bool) {
	if b {
		w.putByte(1)
	} else {
		w.putByte(0)
	}
}

func (w *tlvWriter) putUvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf = append(w.buf, tmp[:n]...)
}

func (w *tlvWriter) putBytesLenPrefixed(b []byte) {
	w.putUvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *tlvWriter) putString(s string) {
	w.putBytesLenPrefixed([]byte(s))
}

type tlvReader struct {
	buf []byte
	pos int
}

func newTLVReader(buf []byte) *tlvReader { return &tlvReader{buf: buf} }

func (r *tlvReader) byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, f3err.New(f3err.ParseError, "unexpected end of schema record")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *tlvReader) bool() (bool, error) {
	b, err := r.byte()
	return b != 0, err
}

func (r *tlvReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, f3err.New(f3err.ParseError, "malformed varint in footer schema")
	}
	r.pos += n
	return v, nil
}

func (r *tlvReader) bytesLenPrefixed() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.buf)-r.pos) {
		return nil, f3err.New(f3err.ParseError, "schema record length exceeds buffer")
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *tlvReader) string() (string, error) {
	b, err := r.bytesLenPrefixed()
	return string(b), err
}

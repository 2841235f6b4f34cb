package footer

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/f3-format/f3/f3err"
)

// CompressionType tags how an OptionalSection's bytes are stored on disk.
type CompressionType uint8

const (
	CompressionNone CompressionType = iota
	CompressionZstd
)

// WASMBinariesSectionName is the well-known optional section holding
// embedded decoder modules, looked up by name from ReaderBuilder.Build.
const WASMBinariesSectionName = "WASMBinaries"

// OptionalSection is one named, independently-addressable region of the
// footer's optional data area: a forward-compatible, named key/value area.
// Readers that don't recognize a section's name skip it; sections named
// data the reader does recognize but can't decompress surface a
// ParseError rather than silently degrading.
type OptionalSection struct {
	Name            string
	Offset          uint64
	Size            uint64
	CompressionType CompressionType
}

// EncodeOptionalSections serializes the section directory (not the section
// payloads themselves, which live at their own Offset/Size in the file) to
// bytes using the same TLV primitives as the schema tree, since this is
// another small variable-length-name structure rather than a flat vector.
func EncodeOptionalSections(sections []OptionalSection) []byte {
	w := newTLVWriter()
	w.putUvarint(uint64(len(sections)))
	for _, s := range sections {
		w.putString(s.Name)
		w.putUvarint(s.Offset)
		w.putUvarint(s.Size)
		w.putByte(byte(s.CompressionType))
	}
	return w.Bytes()
}

// DecodeOptionalSections parses bytes produced by EncodeOptionalSections.
func DecodeOptionalSections(buf []byte) ([]OptionalSection, error) {
	r := newTLVReader(buf)
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	sections := make([]OptionalSection, 0, n)
	for i := uint64(0); i < n; i++ {
		name, err := r.string()
		if err != nil {
			return nil, err
		}
		offset, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		size, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		ctByte, err := r.byte()
		if err != nil {
			return nil, err
		}
		sections = append(sections, OptionalSection{
			Name:            name,
			Offset:          offset,
			Size:            size,
			CompressionType: CompressionType(ctByte),
		})
	}
	return sections, nil
}

// FindSection returns the section named name, if present.
func FindSection(sections []OptionalSection, name string) (OptionalSection, bool) {
	for _, s := range sections {
		if s.Name == name {
			return s, true
		}
	}
	return OptionalSection{}, false
}

// DecompressSection inflates raw section bytes per its CompressionType.
func DecompressSection(s OptionalSection, raw []byte) ([]byte, error) {
	switch s.CompressionType {
	case CompressionNone:
		return raw, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, f3err.Wrap(f3err.ParseError, err, "open zstd optional section "+s.Name)
		}
		defer dec.Close()
		out, err := io.ReadAll(dec)
		if err != nil {
			return nil, f3err.Wrap(f3err.ParseError, err, "decompress zstd optional section "+s.Name)
		}
		return out, nil
	default:
		return nil, f3err.New(f3err.ParseError, "unrecognized optional section compression type")
	}
}

// CompressSectionZstd compresses raw using the default zstd level, for
// writers that want to shrink a WASMBinaries or similar optional section.
func CompressSectionZstd(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, f3err.Wrap(f3err.General, err, "open zstd writer")
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return nil, f3err.Wrap(f3err.General, err, "write zstd optional section payload")
	}
	if err := enc.Close(); err != nil {
		return nil, f3err.Wrap(f3err.General, err, "flush zstd optional section payload")
	}
	return buf.Bytes(), nil
}

// Package footer implements the on-disk postscript, footer and row-group
// pointer structures: parsing, validation, and the checksum/bounds
// invariants every F3 file must satisfy.
//
// It is grounded on two sources: frostdb's snapshot.go, which hand-rolls an
// analogous self-describing trailer (magic + length-prefixed footer +
// version + checksum + magic) for its own snapshot format, and
// original_source/fff-poc/src/reader/builder.rs, which defines the exact
// postscript field layout and bounds checks this package reproduces.
package footer

import (
	"encoding/binary"

	"github.com/f3-format/f3/checksum"
	"github.com/f3-format/f3/f3err"
)

// Magic identifies an F3 file. Chosen distinct from frostdb's own "FDBS"
// snapshot magic to avoid any confusion between the two formats.
var Magic = [4]byte{'F', '3', 'F', 'F'}

// POSTSCRIPT_SIZE is the fixed trailer length. Field layout (little-endian):
//
//	magic [4]byte
//	format_version uint32
//	footer_size uint32
//	metadata_size uint32
//	data_checksum uint64
//	checksum_type uint8
//	padding [15]byte (reserved, zero on write)
const POSTSCRIPT_SIZE = 40

// DEFAULT_IOUNIT_SIZE is the read-ahead window ReaderBuilder pulls when
// read-ahead is enabled.
const DEFAULT_IOUNIT_SIZE = 8 << 20 // 8MiB, matching fff-poc's read-ahead comment.

// MaxFooterSizeForReadAhead is the largest footer_size a read-ahead build
// can service without a second positional read, derived explicitly from
// POSTSCRIPT_SIZE rather than a bare literal offset.
const MaxFooterSizeForReadAhead = DEFAULT_IOUNIT_SIZE - POSTSCRIPT_SIZE

// CurrentFormatVersion is the format_version this package writes and the
// maximum it accepts when reading.
const CurrentFormatVersion uint32 = 1

// Postscript is the fixed-size trailer of an F3 file.
type Postscript struct {
	FormatVersion uint32
	FooterSize    uint32
	MetadataSize  uint32
	DataChecksum  uint64
	ChecksumType  checksum.Type
}

// Encode serializes p into the fixed POSTSCRIPT_SIZE-byte trailer layout.
func (p Postscript) Encode() []byte {
	buf := make([]byte, POSTSCRIPT_SIZE)
	copy(buf[0:4], Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], p.FormatVersion)
	binary.LittleEndian.PutUint32(buf[8:12], p.FooterSize)
	binary.LittleEndian.PutUint32(buf[12:16], p.MetadataSize)
	binary.LittleEndian.PutUint64(buf[16:24], p.DataChecksum)
	buf[24] = byte(p.ChecksumType)
	// buf[25:40] stays zero padding.
	return buf
}

// DecodePostscript parses the trailing POSTSCRIPT_SIZE bytes of a file and
// enforces the invariants checkable without knowing file_size (footer_size
// <= metadata_size, magic, version, checksum tag). Callers must separately
// enforce file_size > POSTSCRIPT_SIZE + metadata_size once file_size is
// known.
func DecodePostscript(buf []byte) (Postscript, error) {
	if len(buf) != POSTSCRIPT_SIZE {
		return Postscript{}, f3err.New(f3err.ParseError, "postscript buffer has wrong length")
	}
	if string(buf[0:4]) != string(Magic[:]) {
		return Postscript{}, f3err.New(f3err.ParseError, "bad file magic")
	}
	version := binary.LittleEndian.Uint32(buf[4:8])
	if version > CurrentFormatVersion {
		return Postscript{}, f3err.New(f3err.ParseError, "unsupported format_version: newer than reader supports")
	}
	footerSize := binary.LittleEndian.Uint32(buf[8:12])
	metadataSize := binary.LittleEndian.Uint32(buf[12:16])
	if footerSize > metadataSize {
		return Postscript{}, f3err.New(f3err.ParseError, "footer_size exceeds metadata_size")
	}
	dataChecksum := binary.LittleEndian.Uint64(buf[16:24])
	checksumType, err := checksum.TypeFromByte(buf[24])
	if err != nil {
		return Postscript{}, err
	}
	return Postscript{
		FormatVersion: version,
		FooterSize:    footerSize,
		MetadataSize:  metadataSize,
		DataChecksum:  dataChecksum,
		ChecksumType:  checksumType,
	}, nil
}

package reader

import (
	"encoding/binary"

	"github.com/f3-format/f3/f3err"
	"github.com/f3-format/f3/footer"
)

// columnMetadataSize is the fixed on-disk size of one ColumnMetadata
// record: decoder_id u32, version (major,minor,patch) u32 each, chunk
// offset u64, chunk size u64.
const columnMetadataSize = 4 + 12 + 8 + 8

// ColumnMetadata is the record a ColumnMetaPointer addresses: the chunk's
// actual data locator plus the encoding-type version it was written with,
// so FileReader can gate compatibility before invoking the decoder.
type ColumnMetadata struct {
	DecoderID   uint32
	Version     footer.EncodingVersion
	ChunkOffset uint64
	ChunkSize   uint64
}

// EncodeColumnMetadata serializes m to its fixed-size on-disk form.
func EncodeColumnMetadata(m ColumnMetadata) []byte {
	buf := make([]byte, columnMetadataSize)
	binary.LittleEndian.PutUint32(buf[0:4], m.DecoderID)
	binary.LittleEndian.PutUint32(buf[4:8], m.Version.Major)
	binary.LittleEndian.PutUint32(buf[8:12], m.Version.Minor)
	binary.LittleEndian.PutUint32(buf[12:16], m.Version.Patch)
	binary.LittleEndian.PutUint64(buf[16:24], m.ChunkOffset)
	binary.LittleEndian.PutUint64(buf[24:32], m.ChunkSize)
	return buf
}

// DecodeColumnMetadata parses bytes produced by EncodeColumnMetadata.
func DecodeColumnMetadata(buf []byte) (ColumnMetadata, error) {
	if len(buf) != columnMetadataSize {
		return ColumnMetadata{}, f3err.New(f3err.ParseError, "column metadata record has wrong size")
	}
	return ColumnMetadata{
		DecoderID: binary.LittleEndian.Uint32(buf[0:4]),
		Version: footer.EncodingVersion{
			Major: binary.LittleEndian.Uint32(buf[4:8]),
			Minor: binary.LittleEndian.Uint32(buf[8:12]),
			Patch: binary.LittleEndian.Uint32(buf[12:16]),
		},
		ChunkOffset: binary.LittleEndian.Uint64(buf[16:24]),
		ChunkSize:   binary.LittleEndian.Uint64(buf[24:32]),
	}, nil
}

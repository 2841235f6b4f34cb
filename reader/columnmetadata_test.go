package reader

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/f3-format/f3/footer"
)

func TestColumnMetadataRoundTrip(t *testing.T) {
	m := ColumnMetadata{
		DecoderID:   7,
		Version:     footer.EncodingVersion{Major: 1, Minor: 2, Patch: 3},
		ChunkOffset: 4096,
		ChunkSize:   2048,
	}
	buf := EncodeColumnMetadata(m)
	require.Len(t, buf, columnMetadataSize)

	got, err := DecodeColumnMetadata(buf)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestDecodeColumnMetadataRejectsWrongSize(t *testing.T) {
	_, err := DecodeColumnMetadata([]byte{1, 2, 3})
	require.Error(t, err)
}

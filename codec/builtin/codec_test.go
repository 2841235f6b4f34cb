package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/f3-format/f3/footer"
)

func TestEncodeDecodeRoundTripFixed64(t *testing.T) {
	rowCount := 4
	values := []byte{
		1, 0, 0, 0, 0, 0, 0, 0,
		2, 0, 0, 0, 0, 0, 0, 0,
		3, 0, 0, 0, 0, 0, 0, 0,
		4, 0, 0, 0, 0, 0, 0, 0,
	}
	validity := []byte{0b00001111}
	buffers := [][]byte{validity, values}

	encoded, err := Encode(footer.LogicalInt64, buffers, rowCount)
	require.NoError(t, err)

	decoded, err := Decode(footer.LogicalInt64, encoded, rowCount)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	require.Equal(t, validity, decoded[0])
	require.Equal(t, values, decoded[1])
}

func TestEncodeDecodeRoundTripFixed32(t *testing.T) {
	rowCount := 3
	values := []byte{
		10, 0, 0, 0,
		20, 0, 0, 0,
		30, 0, 0, 0,
	}
	validity := []byte{0b00000111}
	buffers := [][]byte{validity, values}

	encoded, err := Encode(footer.LogicalInt32, buffers, rowCount)
	require.NoError(t, err)

	decoded, err := Decode(footer.LogicalInt32, encoded, rowCount)
	require.NoError(t, err)
	require.Equal(t, values, decoded[1])
}

func TestEncodeDecodeRoundTripBool(t *testing.T) {
	rowCount := 5
	validity := []byte{0b00011111}
	data := []byte{0b00001010}
	buffers := [][]byte{validity, data}

	encoded, err := Encode(footer.LogicalBool, buffers, rowCount)
	require.NoError(t, err)

	decoded, err := Decode(footer.LogicalBool, encoded, rowCount)
	require.NoError(t, err)
	require.Equal(t, validity, decoded[0])
}

func TestEncodeDecodeRoundTripVariableLength(t *testing.T) {
	rowCount := 2
	validity := []byte{0b00000011}
	offsets := []byte{0, 0, 0, 0, 3, 0, 0, 0}
	data := []byte("abc")
	buffers := [][]byte{validity, offsets, data}

	encoded, err := Encode(footer.LogicalUtf8, buffers, rowCount)
	require.NoError(t, err)

	decoded, err := Decode(footer.LogicalUtf8, encoded, rowCount)
	require.NoError(t, err)
	require.Equal(t, offsets, decoded[1])
	require.Equal(t, data, decoded[2])
}

func TestDecodeNilBufferPreserved(t *testing.T) {
	buffers := [][]byte{nil, {1, 2, 3, 4}}
	encoded, err := Encode(footer.LogicalInt32, buffers, 1)
	require.NoError(t, err)

	decoded, err := Decode(footer.LogicalInt32, encoded, 1)
	require.NoError(t, err)
	require.Nil(t, decoded[0])
}

func TestDecodeRejectsTruncatedChunk(t *testing.T) {
	_, err := Decode(footer.LogicalInt64, []byte{1, 2}, 1)
	require.Error(t, err)
}

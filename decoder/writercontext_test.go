package decoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/f3-format/f3/f3err"
	"github.com/f3-format/f3/footer"
)

func TestDefaultFallsBackToBuiltin(t *testing.T) {
	wc := Default()
	id, err := wc.DecoderFor(footer.LogicalInt64)
	require.NoError(t, err)
	require.Equal(t, builtinID, id)
}

func TestDefaultPrefersRegisteredCustomDecoder(t *testing.T) {
	wc := Default()
	wc.RegisterCustomWasm(footer.LogicalUtf8, ID(5), []byte("wasm"))
	id, err := wc.DecoderFor(footer.LogicalUtf8)
	require.NoError(t, err)
	require.Equal(t, ID(5), id)
}

func TestEmptyRequiresExplicitMapping(t *testing.T) {
	wc := Empty()
	_, err := wc.DecoderFor(footer.LogicalInt64)
	require.Error(t, err)
	require.Equal(t, f3err.UnmappedDataType, f3err.KindOf(err))

	wc.RegisterCustomWasm(footer.LogicalInt64, ID(1), []byte("wasm"))
	id, err := wc.DecoderFor(footer.LogicalInt64)
	require.NoError(t, err)
	require.Equal(t, ID(1), id)
}

func TestAlwaysCustomWasmModeRejectsUnmappedTypes(t *testing.T) {
	wc := DefaultWithAlwaysSetCustomWasm()
	_, err := wc.DecoderFor(footer.LogicalInt64)
	require.Error(t, err)
	require.Equal(t, f3err.UnmappedDataType, f3err.KindOf(err))
}

func TestWithCustomWasmsDoesNotEmbedBuiltin(t *testing.T) {
	wc := WithCustomWasms(map[footer.LogicalType]ID{footer.LogicalInt64: 3}, map[ID][]byte{3: []byte("wasm")})
	require.False(t, wc.EmbedsBuiltin())
	id, err := wc.DecoderFor(footer.LogicalInt64)
	require.NoError(t, err)
	require.Equal(t, ID(3), id)
}

func TestSortedDecodersAscending(t *testing.T) {
	wc := WithCustomWasms(nil, map[ID][]byte{5: {}, 1: {}, 3: {}})
	require.Equal(t, []ID{1, 3, 5}, wc.SortedDecoders())
}

package positional

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/f3-format/f3/f3err"
)

func TestSliceReaderReadExactAtWithinBounds(t *testing.T) {
	r := NewSlice([]byte("helloworld"))

	buf := make([]byte, 5)
	require.NoError(t, r.ReadExactAt(context.Background(), buf, 5))
	require.Equal(t, []byte("world"), buf)

	size, err := r.Size(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(10), size)
}

func TestSliceReaderReadExactAtOutOfBoundsReturnsErrorNotPanic(t *testing.T) {
	r := NewSlice([]byte("helloworld"))

	buf := make([]byte, 6)
	err := r.ReadExactAt(context.Background(), buf, 5)
	require.Error(t, err)
	require.Equal(t, f3err.OutOfBounds, f3err.KindOf(err))
}

func TestSliceReaderReadExactAtOffsetPastEndReturnsError(t *testing.T) {
	r := NewSlice([]byte("hello"))

	buf := make([]byte, 1)
	err := r.ReadExactAt(context.Background(), buf, 5)
	require.Error(t, err)
	require.Equal(t, f3err.OutOfBounds, f3err.KindOf(err))
}

func TestSliceReaderReadExactAtOnEmptySliceReturnsError(t *testing.T) {
	r := NewSlice(nil)

	buf := make([]byte, 1)
	err := r.ReadExactAt(context.Background(), buf, 0)
	require.Error(t, err)
	require.Equal(t, f3err.OutOfBounds, f3err.KindOf(err))

	size, err := r.Size(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(0), size)
}

func TestSliceReaderReadExactAtZeroLengthAtEndSucceeds(t *testing.T) {
	r := NewSlice([]byte("hello"))

	var buf []byte
	require.NoError(t, r.ReadExactAt(context.Background(), buf, 5))
}

func TestSliceReaderReadExactAtOffsetOverflowDoesNotPanic(t *testing.T) {
	r := NewSlice([]byte("hello"))

	buf := make([]byte, 10)
	err := r.ReadExactAt(context.Background(), buf, math.MaxUint64-3)
	require.Error(t, err)
	require.Equal(t, f3err.OutOfBounds, f3err.KindOf(err))
}

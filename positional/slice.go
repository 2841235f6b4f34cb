package positional

import "context"

// SliceReader is the in-memory PositionalReader backing: a bounds-checked
// view over a byte slice, used for already-buffered read-ahead regions and
// in tests. Mirrors fff-poc's `impl Reader for [u8]`.
type SliceReader struct {
	data []byte
}

// NewSlice wraps data as a Reader. data is not copied; the caller must not
// mutate it for the lifetime of the returned Reader.
func NewSlice(data []byte) *SliceReader {
	return &SliceReader{data: data}
}

func (s *SliceReader) ReadExactAt(ctx context.Context, buf []byte, offset uint64) error {
	_, span := traced(ctx, "positional.SliceReader.ReadExactAt", offset, len(buf))
	defer span.End()

	if err := checkBounds(offset, len(buf), uint64(len(s.data))); err != nil {
		return err
	}
	copy(buf, s.data[offset:offset+uint64(len(buf))])
	return nil
}

func (s *SliceReader) Size(ctx context.Context) (uint64, error) {
	return uint64(len(s.data)), nil
}

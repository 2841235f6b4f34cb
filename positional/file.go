package positional

import (
	"context"
	"io"

	"golang.org/x/exp/mmap"

	"github.com/f3-format/f3/f3err"
)

// FileReader is the local-file PositionalReader backing. It memory-maps the
// file read-only via golang.org/x/exp/mmap so reads are positional with no
// seek state.
type FileReader struct {
	ra *mmap.ReaderAt
}

// OpenFile memory-maps path for reading. The caller must Close the returned
// FileReader when done.
func OpenFile(path string) (*FileReader, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, f3err.Wrap(f3err.IoError, err, "open mmap file "+path)
	}
	return &FileReader{ra: ra}, nil
}

func (f *FileReader) ReadExactAt(ctx context.Context, buf []byte, offset uint64) error {
	_, span := traced(ctx, "positional.FileReader.ReadExactAt", offset, len(buf))
	defer span.End()

	size := uint64(f.ra.Len())
	if err := checkBounds(offset, len(buf), size); err != nil {
		return err
	}
	n, err := f.ra.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return f3err.Wrap(f3err.IoError, err, "mmap read_exact_at")
	}
	if n != len(buf) {
		return f3err.New(f3err.IoError, "short read from memory-mapped file")
	}
	return nil
}

func (f *FileReader) Size(ctx context.Context) (uint64, error) {
	return uint64(f.ra.Len()), nil
}

// Close releases the memory mapping.
func (f *FileReader) Close() error {
	return f.ra.Close()
}

package positional

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/thanos-io/objstore"
	"golang.org/x/sync/singleflight"

	"github.com/f3-format/f3/f3err"
)

// ObjectStoreReader is the remote-object-store PositionalReader backing. It
// is adapted from frostdb's store.go BucketReaderAt, which wraps an
// objstore.Bucket as an io.ReaderAt via ranged GETs; here it implements the
// positional.Reader contract directly instead of io.ReaderAt, and adds a
// size-memoization cell: size memoizes the first response under the
// invariant that the object does not change for the reader's lifetime.
//
// Unlike the DecoderRegistry's sticky-failure one-shot cell, a failed size
// fetch is NOT memoized here: a transient object-store error must not
// poison every subsequent Size call, so only success is ever stored.
type ObjectStoreReader struct {
	bucket   objstore.Bucket
	name     string
	cached   atomic.Pointer[uint64]
	fetch    singleflight.Group
	fetchKey string
}

// NewObjectStore builds a Reader over a single object at name in bucket.
func NewObjectStore(bucket objstore.Bucket, name string) *ObjectStoreReader {
	return &ObjectStoreReader{bucket: bucket, name: name, fetchKey: "size:" + name}
}

func (o *ObjectStoreReader) ReadExactAt(ctx context.Context, buf []byte, offset uint64) error {
	ctx, span := traced(ctx, "positional.ObjectStoreReader.ReadExactAt", offset, len(buf))
	defer span.End()

	size, err := o.Size(ctx)
	if err != nil {
		return err
	}
	if err := checkBounds(offset, len(buf), size); err != nil {
		return err
	}

	rc, err := o.bucket.GetRange(ctx, o.name, int64(offset), int64(len(buf)))
	if err != nil {
		return f3err.Wrap(f3err.IoError, err, fmt.Sprintf("get_range %s at %d", o.name, offset))
	}
	defer rc.Close()

	n := 0
	for n < len(buf) {
		m, rerr := rc.Read(buf[n:])
		n += m
		if rerr != nil {
			if n == len(buf) {
				break
			}
			return f3err.Wrap(f3err.IoError, rerr, "object store range read")
		}
	}
	return nil
}

// Size returns the object's length, fetching and memoizing it via
// Attributes on first call. Concurrent first callers are deduplicated with
// singleflight so only one HEAD-equivalent request is in flight; a failed
// fetch is not cached, so a later call may retry (see type doc).
func (o *ObjectStoreReader) Size(ctx context.Context) (uint64, error) {
	if p := o.cached.Load(); p != nil {
		return *p, nil
	}

	ctx, span := traced(ctx, "positional.ObjectStoreReader.Size", 0, 0)
	defer span.End()

	v, err, _ := o.fetch.Do(o.fetchKey, func() (interface{}, error) {
		attrs, err := o.bucket.Attributes(ctx, o.name)
		if err != nil {
			return nil, f3err.Wrap(f3err.IoError, err, "fetch object attributes for "+o.name)
		}
		size := uint64(attrs.Size)
		o.cached.Store(&size)
		return size, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

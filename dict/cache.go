// Package dict implements Cache, which eagerly materializes every
// file-global shared dictionary listed in the footer's shared-dict table at
// reader construction time.
package dict

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/f3-format/f3/bufferarray"
	"github.com/f3-format/f3/codec/builtin"
	"github.com/f3-format/f3/decoder"
	"github.com/f3-format/f3/f3err"
	"github.com/f3-format/f3/footer"
	"github.com/f3-format/f3/positional"
)

// Cache maps dictionary-id to its fully materialized array. It is read-only
// once constructed.
type Cache struct {
	arrays map[uint32]arrow.Array
}

// Build decodes every entry in entries through the same decoder dispatch
// path a column chunk uses: read the chunk bytes, invoke either the
// built-in codec or the sandboxed runtime, and reconstruct the array with
// BufferToArray. logicalTypes maps dictionary-id to the logical type its
// materialized array should have.
func Build(ctx context.Context, reader positional.Reader, registry *decoder.Registry, entries []footer.SharedDictionaryEntry, logicalTypes map[uint32]footer.LogicalType, rowCounts map[uint32]int) (*Cache, error) {
	arrays := make(map[uint32]arrow.Array, len(entries))
	for _, e := range entries {
		buf := make([]byte, e.Pointer.Size)
		if err := reader.ReadExactAt(ctx, buf, e.Pointer.Offset); err != nil {
			return nil, f3err.Wrap(f3err.IoError, err, fmt.Sprintf("read shared dictionary %d", e.DictionaryID))
		}

		rowCount := rowCounts[e.DictionaryID]
		lt, ok := logicalTypes[e.DictionaryID]
		if !ok {
			return nil, f3err.New(f3err.ParseError, fmt.Sprintf("shared dictionary %d has no recorded logical type", e.DictionaryID))
		}

		var buffers [][]byte
		var err error
		if e.DecoderID == builtin.DecoderID {
			buffers, err = builtin.Decode(lt, buf, rowCount)
		} else {
			var rt *decoder.Runtime
			rt, err = registry.GetRuntime(ctx, decoder.ID(e.DecoderID))
			if err != nil {
				return nil, err
			}
			buffers, err = rt.Decode(ctx, buf, nil, rowCount)
		}
		if err != nil {
			return nil, err
		}
		arr, err := bufferarray.BufferToArray(lt, buffers, rowCount, nil)
		if err != nil {
			return nil, err
		}
		arrays[e.DictionaryID] = arr
	}
	return &Cache{arrays: arrays}, nil
}

// Get returns the materialized array for dictionaryID, if present.
func (c *Cache) Get(dictionaryID uint32) (arrow.Array, bool) {
	arr, ok := c.arrays[dictionaryID]
	return arr, ok
}

// Release drops every reference this cache holds on its materialized
// arrays. Call once the owning FileReader is done with the cache.
func (c *Cache) Release() {
	for _, arr := range c.arrays {
		arr.Release()
	}
	c.arrays = nil
}

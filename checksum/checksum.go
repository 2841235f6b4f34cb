// Package checksum implements the postscript-level and IOUnit-level
// checksums used to detect corruption in a file's trailer and in individual
// column-chunk payloads.
//
// A tagged, persisted byte selects the algorithm, and the Checksum interface
// is a streaming hasher whose Update is associative over concatenation. The
// single concrete implementation is XxHash64 (cespare/xxhash/v2).
package checksum

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/f3-format/f3/f3err"
)

// Type is the tagged, on-disk discriminant for a checksum algorithm.
type Type uint8

const (
	// XxHash64 is the only checksum type F3 currently recognizes.
	XxHash64 Type = 0
)

// TypeFromByte decodes the postscript's checksum_type byte. Unlike a Rust
// TryFrom, this never panics: any value outside the known set reports
// f3err.InvalidChecksumTag.
func TypeFromByte(b byte) (Type, error) {
	switch Type(b) {
	case XxHash64:
		return XxHash64, nil
	default:
		return 0, f3err.New(f3err.InvalidChecksumTag, fmt.Sprintf("unrecognized checksum_type byte %d", b))
	}
}

// Checksum is a streaming hasher. Update must be associative over
// concatenation: Update(a); Update(b) must equal a single Update(a+b).
// Finalize must not depend on how Update calls were chunked, only on the
// order and content of the bytes seen so far.
type Checksum interface {
	Update(data []byte)
	Finalize() uint64
	Reset()
}

// New constructs the streaming hasher for typ. typ must already be a value
// produced by TypeFromByte; New does not re-validate it.
func New(typ Type) Checksum {
	switch typ {
	case XxHash64:
		return &xxHash64{d: xxhash.New()}
	default:
		// Unreachable for any Type obtained through TypeFromByte; a caller
		// constructing an invalid Type by hand gets the same algorithm as
		// the zero value rather than a panic.
		return &xxHash64{d: xxhash.New()}
	}
}

type xxHash64 struct {
	d *xxhash.Digest
}

func (x *xxHash64) Update(data []byte) {
	// xxhash.Digest.Write never returns an error.
	_, _ = x.d.Write(data)
}

func (x *xxHash64) Finalize() uint64 {
	return x.d.Sum64()
}

func (x *xxHash64) Reset() {
	x.d.Reset()
}

// Sum64 is a one-shot convenience wrapper equivalent to New(typ);
// c.Update(data); return c.Finalize().
func Sum64(typ Type, data []byte) uint64 {
	c := New(typ)
	c.Update(data)
	return c.Finalize()
}

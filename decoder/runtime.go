// Package decoder implements the reader-side Registry and the writer-side
// WriterContext: the lazy, one-shot-initialized map from decoder-id to a
// sandboxed tetratelabs/wazero runtime instance.
//
// The decoders themselves are treated as black-box modules with a fixed
// ABI; this package only compiles, instantiates, and invokes them, never
// interprets their bytecode.
package decoder

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/f3-format/f3/f3err"
)

// ID is the opaque decoder handle from the footer's logical-to-physical
// tree. File-local id 0 is reserved for the built-in decoder.
type ID uint32

// decodeFuncName is the fixed export every decoder module must provide:
// given a pointer/length into the module's linear memory holding the
// encoded column bytes, the row count, and an optional shared-dictionary
// pointer/length, it writes the reconstructed raw buffers back into its own
// memory and returns a pointer/length pair describing them. The exact
// layout of that pair is a decoder-ABI concern outside this module's scope;
// Runtime only shuttles bytes across the boundary.
const decodeFuncName = "f3_decode"

// Runtime is a compiled, instantiated decoder module, constructed once per
// ID for the life of a reader.
type Runtime struct {
	id       ID
	module   api.Module
	decodeFn api.Function
}

// compileAndInstantiate compiles wasmBytes under rt and locates the
// required decode export, failing with DecoderInitFailed on any step.
func compileAndInstantiate(ctx context.Context, rt wazero.Runtime, id ID, wasmBytes []byte) (*Runtime, error) {
	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, f3err.Wrap(f3err.DecoderInitFailed, err, fmt.Sprintf("compile decoder module id=%d", id))
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(fmt.Sprintf("f3-decoder-%d", id)))
	if err != nil {
		return nil, f3err.Wrap(f3err.DecoderInitFailed, err, fmt.Sprintf("instantiate decoder module id=%d", id))
	}
	fn := mod.ExportedFunction(decodeFuncName)
	if fn == nil {
		_ = mod.Close(ctx)
		return nil, f3err.New(f3err.DecoderInitFailed, fmt.Sprintf("decoder module id=%d does not export %s", id, decodeFuncName))
	}
	return &Runtime{id: id, module: mod, decodeFn: fn}, nil
}

// Decode invokes the module's decode export over encoded, returning the raw
// buffers produced.
func (r *Runtime) Decode(ctx context.Context, encoded []byte, sharedDict []byte, rowCount int) ([][]byte, error) {
	mem := r.module.Memory()
	if mem == nil {
		return nil, f3err.New(f3err.DecoderInitFailed, fmt.Sprintf("decoder module id=%d exports no memory", r.id))
	}

	encPtr, encLen, err := writeToModuleMemory(mem, encoded)
	if err != nil {
		return nil, f3err.Wrap(f3err.General, err, "write encoded bytes into decoder memory")
	}
	dictPtr, dictLen, err := writeToModuleMemory(mem, sharedDict)
	if err != nil {
		return nil, f3err.Wrap(f3err.General, err, "write shared dictionary into decoder memory")
	}

	results, err := r.decodeFn.Call(ctx, uint64(encPtr), uint64(encLen), uint64(dictPtr), uint64(dictLen), uint64(rowCount))
	if err != nil {
		return nil, f3err.Wrap(f3err.General, err, fmt.Sprintf("invoke decoder id=%d", r.id))
	}
	if len(results) != 2 {
		return nil, f3err.New(f3err.General, fmt.Sprintf("decoder id=%d returned %d results, want 2 (out_ptr, out_len)", r.id, len(results)))
	}
	return readBufferVector(mem, uint32(results[0]), uint32(results[1]))
}

// Close releases the underlying wazero module instance.
func (r *Runtime) Close(ctx context.Context) error {
	return r.module.Close(ctx)
}

// writeToModuleMemory is a placeholder allocator: it grows the module's
// linear memory by enough whole pages to hold data and writes data at the
// start of the new pages. Real decoder modules export their own
// alloc/dealloc pair per the fixed ABI; wiring that negotiation is left to
// the concrete decoder binaries this package treats as black boxes.
func writeToModuleMemory(mem api.Memory, data []byte) (ptr uint32, length uint32, err error) {
	if len(data) == 0 {
		return 0, 0, nil
	}
	const pageSize = 65536
	pages := uint32((len(data) + pageSize - 1) / pageSize)
	prevPages, ok := mem.Grow(pages)
	if !ok {
		return 0, 0, fmt.Errorf("grow decoder memory by %d pages for %d bytes: failed", pages, len(data))
	}
	ptr = prevPages * pageSize
	if !mem.Write(ptr, data) {
		return 0, 0, fmt.Errorf("write %d bytes to decoder memory at %d: out of bounds", len(data), ptr)
	}
	return ptr, uint32(len(data)), nil
}

// readBufferVector decodes the decoder's output encoding: a u32 count at
// ptr, followed by that many (offset u32, length u32) pairs, one per raw
// buffer.
func readBufferVector(mem api.Memory, ptr, length uint32) ([][]byte, error) {
	if length == 0 {
		return nil, nil
	}
	count, ok := mem.ReadUint32Le(ptr)
	if !ok {
		return nil, fmt.Errorf("read buffer vector count at %d: out of bounds", ptr)
	}
	buffers := make([][]byte, 0, count)
	cursor := ptr + 4
	for i := uint32(0); i < count; i++ {
		off, ok := mem.ReadUint32Le(cursor)
		if !ok {
			return nil, fmt.Errorf("read buffer %d offset: out of bounds", i)
		}
		ln, ok := mem.ReadUint32Le(cursor + 4)
		if !ok {
			return nil, fmt.Errorf("read buffer %d length: out of bounds", i)
		}
		cursor += 8
		if ln == 0 {
			buffers = append(buffers, nil)
			continue
		}
		raw, ok := mem.Read(off, ln)
		if !ok {
			return nil, fmt.Errorf("read buffer %d payload: out of bounds", i)
		}
		buf := make([]byte, ln)
		copy(buf, raw)
		buffers = append(buffers, buf)
	}
	return buffers, nil
}

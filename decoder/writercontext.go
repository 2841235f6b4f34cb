package decoder

import (
	"fmt"
	"sort"

	"github.com/f3-format/f3/f3err"
	"github.com/f3-format/f3/footer"
)

// builtinID is the file-local decoder id reserved for the embedded built-in
// codec.
const builtinID ID = 0

// mode selects a WriterContext's encoding policy.
type mode int

const (
	modeDefault mode = iota
	modeDefaultAlwaysCustomWasm
	modeEmpty
	modeCustomWasmsOnly
)

// WriterContext mirrors the reader's Registry on the write path: it maps a
// logical data type to the decoder (built-in or custom) responsible for
// encoding it. It also records which decoder modules belong in a
// WASMBinaries section (EmbedsBuiltin, SortedDecoders); writer.Write does
// not write that section.
type WriterContext struct {
	mode            mode
	customWasms     map[footer.LogicalType]ID
	customWasmBytes map[ID][]byte
	builtinEmbedded bool
}

// Default embeds the built-in decoder at id 0 and uses native encoders for
// the types it covers; custom decoders may still be registered for
// additional types via RegisterCustomWasm.
func Default() *WriterContext {
	return &WriterContext{mode: modeDefault, customWasms: map[footer.LogicalType]ID{}, customWasmBytes: map[ID][]byte{}, builtinEmbedded: true}
}

// DefaultWithAlwaysSetCustomWasm behaves like Default, except every column
// -- even ones the built-in decoder natively handles -- is tagged as
// custom-decoded. This is a research/testing mode for exercising the decoder
// round-trip on data the built-in path would otherwise shortcut. There is no
// built-in fallback: every type in use needs a RegisterCustomWasm mapping,
// and DecoderFor fails with UnmappedDataType for any type without one.
func DefaultWithAlwaysSetCustomWasm() *WriterContext {
	wc := Default()
	wc.mode = modeDefaultAlwaysCustomWasm
	return wc
}

// Empty requires an explicit decoder mapping for every column; encoding a
// column with no mapping fails with UnmappedDataType.
func Empty() *WriterContext {
	return &WriterContext{mode: modeEmpty, customWasms: map[footer.LogicalType]ID{}, customWasmBytes: map[ID][]byte{}}
}

// WithCustomWasms builds a custom-only WriterContext: no built-in decoder is
// embedded in the output, and every type maps to the given custom module.
func WithCustomWasms(typeToID map[footer.LogicalType]ID, wasmBytes map[ID][]byte) *WriterContext {
	return &WriterContext{
		mode:            modeCustomWasmsOnly,
		customWasms:     typeToID,
		customWasmBytes: wasmBytes,
	}
}

// RegisterCustomWasm adds (or overrides) the decoder used to encode lt.
func (wc *WriterContext) RegisterCustomWasm(lt footer.LogicalType, id ID, wasmBytes []byte) {
	wc.customWasms[lt] = id
	wc.customWasmBytes[id] = wasmBytes
}

// DecoderFor resolves which decoder id should encode a column of logical
// type lt, per the active mode.
func (wc *WriterContext) DecoderFor(lt footer.LogicalType) (ID, error) {
	switch wc.mode {
	case modeDefault:
		if id, ok := wc.customWasms[lt]; ok {
			return id, nil
		}
		return builtinID, nil
	case modeDefaultAlwaysCustomWasm:
		id, ok := wc.customWasms[lt]
		if !ok {
			return 0, f3err.New(f3err.UnmappedDataType, fmt.Sprintf("always-custom mode requires an explicit decoder mapping for logical type %d", lt))
		}
		return id, nil
	case modeEmpty, modeCustomWasmsOnly:
		id, ok := wc.customWasms[lt]
		if !ok {
			return 0, f3err.New(f3err.UnmappedDataType, fmt.Sprintf("no decoder mapping for logical type %d", lt))
		}
		return id, nil
	default:
		return 0, f3err.New(f3err.General, "unrecognized WriterContext mode")
	}
}

// EmbedsBuiltin reports whether the built-in decoder (id 0) should be
// written into the output's WASMBinaries section.
func (wc *WriterContext) EmbedsBuiltin() bool {
	return wc.builtinEmbedded
}

// SortedDecoders returns the ids of every registered custom decoder module,
// ascending.
func (wc *WriterContext) SortedDecoders() []ID {
	ids := make([]ID, 0, len(wc.customWasmBytes))
	for id := range wc.customWasmBytes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

package reader

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/f3-format/f3/checksum"
	"github.com/f3-format/f3/decoder"
	"github.com/f3-format/f3/dict"
	"github.com/f3-format/f3/f3err"
	"github.com/f3-format/f3/footer"
	"github.com/f3-format/f3/positional"
)

// metadataBatchThreshold and metadataBatchMaxColumns implement the
// batching heuristic: batch-read all column metadata when the projected
// fraction exceeds this ratio, or when the schema is narrow enough that
// per-column reads aren't worth avoiding regardless of projection width.
const (
	metadataBatchThreshold  = 0.6
	metadataBatchMaxColumns = 100
)

// Builder assembles a FileReader from a PositionalReader.
type Builder struct {
	projection           Projection
	selection            Selection
	readAhead            bool
	verifyIOUnitChecksum bool
	verifyFileChecksum   bool
	existingDecoders     map[decoder.ID]*decoder.Runtime
	existingVersions     map[uint32]footer.EncodingVersion
	logger               log.Logger
	metricsRegisterer    prometheus.Registerer
}

// New starts a Builder with every option at its zero value: project all
// columns, select all rows, no read-ahead, no checksum verification.
func New() *Builder {
	return &Builder{
		projection:        All(),
		selection:         AllRows(),
		logger:            log.NewNopLogger(),
		metricsRegisterer: prometheus.NewRegistry(),
	}
}

func (b *Builder) WithProjection(p Projection) *Builder { b.projection = p; return b }
func (b *Builder) WithSelection(s Selection) *Builder    { b.selection = s; return b }
func (b *Builder) WithReadAhead(v bool) *Builder         { b.readAhead = v; return b }
func (b *Builder) WithVerifyIOUnitChecksum(v bool) *Builder {
	b.verifyIOUnitChecksum = v
	return b
}
func (b *Builder) WithVerifyFileChecksum(v bool) *Builder { b.verifyFileChecksum = v; return b }
func (b *Builder) WithExistingDecoders(runtimes map[decoder.ID]*decoder.Runtime, versions map[uint32]footer.EncodingVersion) *Builder {
	b.existingDecoders = runtimes
	b.existingVersions = versions
	return b
}
func (b *Builder) WithLogger(logger log.Logger) *Builder { b.logger = logger; return b }
func (b *Builder) WithMetricsRegisterer(reg prometheus.Registerer) *Builder {
	b.metricsRegisterer = reg
	return b
}

// Build executes the nine-step assembly pipeline and returns the assembled
// FileReader.
func (b *Builder) Build(ctx context.Context, r positional.Reader) (*FileReader, error) {
	if err := b.selection.validate(); err != nil {
		return nil, err
	}

	fileSize, err := r.Size(ctx) // step 1
	if err != nil {
		return nil, err
	}
	if fileSize <= footer.POSTSCRIPT_SIZE {
		return nil, f3err.New(f3err.ParseError, "file too small to hold a postscript")
	}

	ps, footerBytes, err := readPostscriptAndFooter(ctx, r, fileSize, b.readAhead) // step 2
	if err != nil {
		return nil, err
	}
	level.Debug(b.logger).Log("msg", "read build plan",
		"file_size", humanize.Bytes(fileSize),
		"footer_size", humanize.Bytes(uint64(ps.FooterSize)),
		"metadata_size", humanize.Bytes(uint64(ps.MetadataSize)))

	if b.verifyFileChecksum { // step 3
		if err := verifyFileChecksum(ctx, r, fileSize, ps); err != nil {
			return nil, err
		}
	}

	ft, err := footer.DecodeFooter(footerBytes) // step 4
	if err != nil {
		return nil, err
	}

	totalLeaves := len(footer.LeafFields(ft.Schema.Fields))
	projected := b.projection.resolve(totalLeaves)
	for _, idx := range projected {
		if idx < 0 || idx >= totalLeaves {
			return nil, f3err.New(f3err.ParseError, fmt.Sprintf("projected leaf index %d out of range [0,%d)", idx, totalLeaves))
		}
	}

	metadataRegionStart := fileSize - footer.POSTSCRIPT_SIZE - uint64(ps.MetadataSize)
	metadataRegionEnd := fileSize - footer.POSTSCRIPT_SIZE - uint64(ps.FooterSize)

	metadataBlob, err := planAndReadColumnMetadata(ctx, r, projected, totalLeaves, metadataRegionStart, metadataRegionEnd) // step 5
	if err != nil {
		return nil, err
	}

	rowGroups := ft.RowGroups // step 6, already ordered by RowGroupsPointer

	physicalLeaves := footer.LeafPhysicals(ft.LogicalToPhysical)

	var registry *decoder.Registry // step 7
	if b.existingDecoders != nil {
		registry = decoder.NewFromMap(b.logger, b.metricsRegisterer, b.existingVersions, b.existingDecoders)
	} else {
		section, ok := footer.FindSection(ft.OptionalSections, footer.WASMBinariesSectionName)
		if !ok && requiresEmbeddedDecoders(physicalLeaves) {
			return nil, f3err.New(f3err.MissingDecoders, "no WASMBinaries section and no injected decoders")
		}
		registry = decoder.NewFromFile(b.logger, b.metricsRegisterer, ft.EncodingVersions, loadWASMBinaries(r, section))
	}

	var dictCache *dict.Cache // step 8
	if len(ft.SharedDict) > 0 {
		dictCache, err = dict.Build(ctx, r, registry, ft.SharedDict, dictLogicalTypes(ft), dictRowCounts(ft))
		if err != nil {
			return nil, err
		}
	}

	return &FileReader{ // step 9
		reader:               r,
		footer:               ft,
		rowGroups:            rowGroups,
		physicalLeaves:       physicalLeaves,
		projectedLeafIndexes: projected,
		selection:            b.selection,
		registry:             registry,
		dictCache:            dictCache,
		verifyIOUnitChecksum: b.verifyIOUnitChecksum,
		checksumType:         ps.ChecksumType,
		metadataBlob:         metadataBlob,
		metadataRegionStart:  metadataRegionStart,
	}, nil
}

func requiresEmbeddedDecoders(leaves []footer.PhysicalLeaf) bool {
	for _, l := range leaves {
		if l.DecoderID != 0 {
			return true
		}
	}
	return false
}

func dictLogicalTypes(ft footer.Footer) map[uint32]footer.LogicalType {
	out := make(map[uint32]footer.LogicalType, len(ft.SharedDict))
	leaves := footer.LeafFields(ft.Schema.Fields)
	physical := footer.LeafPhysicals(ft.LogicalToPhysical)
	for _, e := range ft.SharedDict {
		for i, p := range physical {
			if p.HasDictionary && p.DictionaryID == e.DictionaryID && i < len(leaves) {
				out[e.DictionaryID] = leaves[i].Type
				break
			}
		}
	}
	return out
}

func dictRowCounts(ft footer.Footer) map[uint32]int {
	// Shared dictionaries are file-global and carry their own row count
	// independent of any row group; callers without a richer footer
	// extension fall back to the largest row group's count as an upper
	// bound, since decoders size their own output buffers from the bytes
	// they decode, not from this hint.
	var maxRows uint64
	for _, c := range ft.RowGroups.RowCounts {
		if c > maxRows {
			maxRows = c
		}
	}
	out := make(map[uint32]int, len(ft.SharedDict))
	for _, e := range ft.SharedDict {
		out[e.DictionaryID] = int(maxRows)
	}
	return out
}

func readPostscriptAndFooter(ctx context.Context, r positional.Reader, fileSize uint64, readAhead bool) (footer.Postscript, []byte, error) {
	if readAhead {
		window := footer.DEFAULT_IOUNIT_SIZE
		if uint64(window) > fileSize {
			window = int(fileSize)
		}
		scratch := make([]byte, window)
		if err := r.ReadExactAt(ctx, scratch, fileSize-uint64(window)); err != nil {
			return footer.Postscript{}, nil, err
		}
		psBuf := scratch[len(scratch)-footer.POSTSCRIPT_SIZE:]
		ps, err := footer.DecodePostscript(psBuf)
		if err != nil {
			return footer.Postscript{}, nil, err
		}
		if uint64(ps.FooterSize) > footer.MaxFooterSizeForReadAhead {
			return footer.Postscript{}, nil, f3err.New(f3err.FooterTooLarge, "footer_size exceeds read-ahead window")
		}
		footerStart := len(scratch) - footer.POSTSCRIPT_SIZE - int(ps.FooterSize)
		if footerStart < 0 {
			return footer.Postscript{}, nil, f3err.New(f3err.FooterTooLarge, "footer extends before start of read-ahead window")
		}
		footerEnd := len(scratch) - footer.POSTSCRIPT_SIZE
		footerBytes := append([]byte(nil), scratch[footerStart:footerEnd]...)
		return ps, footerBytes, nil
	}

	psBuf := make([]byte, footer.POSTSCRIPT_SIZE)
	if err := r.ReadExactAt(ctx, psBuf, fileSize-footer.POSTSCRIPT_SIZE); err != nil {
		return footer.Postscript{}, nil, err
	}
	ps, err := footer.DecodePostscript(psBuf)
	if err != nil {
		return footer.Postscript{}, nil, err
	}
	footerBytes := make([]byte, ps.FooterSize)
	footerOffset := fileSize - footer.POSTSCRIPT_SIZE - uint64(ps.FooterSize)
	if err := r.ReadExactAt(ctx, footerBytes, footerOffset); err != nil {
		return footer.Postscript{}, nil, err
	}
	return ps, footerBytes, nil
}

func verifyFileChecksum(ctx context.Context, r positional.Reader, fileSize uint64, ps footer.Postscript) error {
	body := make([]byte, fileSize-footer.POSTSCRIPT_SIZE)
	if err := r.ReadExactAt(ctx, body, 0); err != nil {
		return err
	}
	got := checksum.Sum64(ps.ChecksumType, body)
	if got != ps.DataChecksum {
		return f3err.New(f3err.ChecksumMismatch, "file checksum does not match postscript data_checksum")
	}
	return nil
}

// planAndReadColumnMetadata implements the metadata batching heuristic. When
// batching, it returns the full contiguous region [regionStart, regionEnd);
// callers slice individual column records out of it by offset. When not
// batching, it returns nil and FileReader falls back to reading each
// projected column's metadata pointer individually.
func planAndReadColumnMetadata(ctx context.Context, r positional.Reader, projected []int, totalLeaves int, regionStart, regionEnd uint64) ([]byte, error) {
	if totalLeaves == 0 {
		return nil, nil
	}
	ratio := float64(len(projected)) / float64(totalLeaves)
	if ratio > metadataBatchThreshold || totalLeaves <= metadataBatchMaxColumns {
		if regionEnd < regionStart {
			return nil, f3err.New(f3err.ParseError, "metadata region end precedes start")
		}
		blob := make([]byte, regionEnd-regionStart)
		if err := r.ReadExactAt(ctx, blob, regionStart); err != nil {
			return nil, err
		}
		return blob, nil
	}
	return nil, nil
}

func loadWASMBinaries(r positional.Reader, section footer.OptionalSection) func(context.Context) (map[decoder.ID][]byte, error) {
	return func(ctx context.Context) (map[decoder.ID][]byte, error) {
		raw := make([]byte, section.Size)
		if err := r.ReadExactAt(ctx, raw, section.Offset); err != nil {
			return nil, err
		}
		payload, err := footer.DecompressSection(section, raw)
		if err != nil {
			return nil, err
		}
		return parseWASMBinariesTable(payload)
	}
}

// parseWASMBinariesTable parses the embedded decoder module table: a count
// followed by (decoder_id u32, offset u32, length u32) locators into the
// remainder of the section. Decoder ids are dense integers 0..N in
// embedded order.
func parseWASMBinariesTable(payload []byte) (map[decoder.ID][]byte, error) {
	if len(payload) < 4 {
		return nil, f3err.New(f3err.ParseError, "WASMBinaries section too small for header")
	}
	count := leUint32(payload[0:4])
	headerEnd := 4 + int(count)*12
	if headerEnd > len(payload) {
		return nil, f3err.New(f3err.ParseError, "WASMBinaries locator table exceeds section size")
	}
	out := make(map[decoder.ID][]byte, count)
	for i := uint32(0); i < count; i++ {
		rec := payload[4+int(i)*12 : 4+int(i)*12+12]
		id := leUint32(rec[0:4])
		off := leUint32(rec[4:8])
		length := leUint32(rec[8:12])
		end := int(off) + int(length)
		if end > len(payload) {
			return nil, f3err.New(f3err.ParseError, fmt.Sprintf("decoder %d module extends past section end", id))
		}
		out[decoder.ID(id)] = payload[off:end]
	}
	return out, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

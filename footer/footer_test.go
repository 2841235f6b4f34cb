package footer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostscriptRoundTrip(t *testing.T) {
	p := Postscript{
		FormatVersion: CurrentFormatVersion,
		FooterSize:    128,
		MetadataSize:  256,
		DataChecksum:  0xdeadbeefcafef00d,
		ChecksumType:  0,
	}
	buf := p.Encode()
	require.Len(t, buf, POSTSCRIPT_SIZE)

	got, err := DecodePostscript(buf)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestPostscriptRejectsBadMagic(t *testing.T) {
	p := Postscript{FormatVersion: CurrentFormatVersion, FooterSize: 10, MetadataSize: 20}
	buf := p.Encode()
	buf[0] = 'X'
	_, err := DecodePostscript(buf)
	require.Error(t, err)
}

func TestPostscriptRejectsFooterLargerThanMetadata(t *testing.T) {
	p := Postscript{FormatVersion: CurrentFormatVersion, FooterSize: 100, MetadataSize: 10}
	buf := p.Encode()
	_, err := DecodePostscript(buf)
	require.Error(t, err)
}

func TestPostscriptRejectsFutureVersion(t *testing.T) {
	p := Postscript{FormatVersion: CurrentFormatVersion + 1, FooterSize: 1, MetadataSize: 1}
	buf := p.Encode()
	_, err := DecodePostscript(buf)
	require.Error(t, err)
}

func exampleSchema() Schema {
	return Schema{Fields: []Field{
		{Name: "id", Type: LogicalInt64, Nullable: false},
		{Name: "tags", Type: LogicalList, Nullable: true, Children: []Field{
			{Name: "item", Type: LogicalUtf8, Nullable: true},
		}},
		{Name: "point", Type: LogicalStruct, Nullable: false, Children: []Field{
			{Name: "x", Type: LogicalFloat64, Nullable: false},
			{Name: "y", Type: LogicalFloat64, Nullable: false},
		}},
	}}
}

func TestSchemaRoundTrip(t *testing.T) {
	s := exampleSchema()
	buf := EncodeSchema(s)
	got, err := DecodeSchema(buf)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestLeafFieldsDepthFirst(t *testing.T) {
	leaves := LeafFields(exampleSchema().Fields)
	require.Len(t, leaves, 4)
	require.Equal(t, []string{"id", "item", "x", "y"}, []string{leaves[0].Name, leaves[1].Name, leaves[2].Name, leaves[3].Name})
}

func TestSchemaDecodeRejectsUnknownLogicalType(t *testing.T) {
	w := newTLVWriter()
	w.putUvarint(1)
	rec := newTLVWriter()
	rec.putString("bad")
	rec.putByte(200)
	rec.putBool(false)
	rec.putUvarint(0)
	w.putBytesLenPrefixed(rec.Bytes())

	_, err := DecodeSchema(w.Bytes())
	require.Error(t, err)
}

func TestRowGroupsPointerRoundTrip(t *testing.T) {
	p := RowGroupsPointer{
		RowCounts: []uint64{1000, 500},
		Offsets:   []uint64{0, 4096},
		Sizes:     []uint64{4096, 2048},
		RowGroupMetadatas: []RowGroupMetadata{
			{ColMetadatas: []ColumnMetaPointer{{Offset: 40, Size: 100}, {Offset: 140, Size: 200}}},
			{ColMetadatas: []ColumnMetaPointer{{Offset: 4136, Size: 50}, {Offset: 4186, Size: 60}}},
		},
	}
	buf := EncodeRowGroupsPointer(p)
	got, err := DecodeRowGroupsPointer(buf)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestRowGroupsPointerRejectsLengthMismatch(t *testing.T) {
	p := RowGroupsPointer{
		RowCounts: []uint64{1, 2},
		Offsets:   []uint64{0},
		Sizes:     []uint64{1, 2},
		RowGroupMetadatas: []RowGroupMetadata{
			{}, {},
		},
	}
	require.Error(t, p.Validate())
}

func TestRowGroupsPointerRejectsRaggedColumnCounts(t *testing.T) {
	p := RowGroupsPointer{
		RowCounts: []uint64{1, 2},
		Offsets:   []uint64{0, 1},
		Sizes:     []uint64{1, 2},
		RowGroupMetadatas: []RowGroupMetadata{
			{ColMetadatas: []ColumnMetaPointer{{Offset: 1, Size: 1}}},
			{ColMetadatas: []ColumnMetaPointer{{Offset: 1, Size: 1}, {Offset: 2, Size: 2}}},
		},
	}
	require.Error(t, p.Validate())
}

func examplePhysicalTree() []PhysicalNode {
	return []PhysicalNode{
		{Leaf: &PhysicalLeaf{DecoderID: 0, EncoderParams: nil}},
		{Children: []PhysicalNode{
			{Leaf: &PhysicalLeaf{DecoderID: 7, HasDictionary: true, DictionaryID: 1}},
		}},
		{Children: []PhysicalNode{
			{Leaf: &PhysicalLeaf{DecoderID: 0}},
			{Leaf: &PhysicalLeaf{DecoderID: 0}},
		}},
	}
}

func TestPhysicalTreeRoundTrip(t *testing.T) {
	nodes := examplePhysicalTree()
	buf := EncodePhysicalTree(nodes)
	got, err := DecodePhysicalTree(buf)
	require.NoError(t, err)
	require.Equal(t, nodes, got)
}

func TestValidatePhysicalTreeShapeMatchesSchema(t *testing.T) {
	require.NoError(t, ValidatePhysicalTreeShape(exampleSchema().Fields, examplePhysicalTree()))
}

func TestValidatePhysicalTreeShapeRejectsArityMismatch(t *testing.T) {
	nodes := examplePhysicalTree()[:2]
	require.Error(t, ValidatePhysicalTreeShape(exampleSchema().Fields, nodes))
}

func TestOptionalSectionsRoundTrip(t *testing.T) {
	sections := []OptionalSection{
		{Name: WASMBinariesSectionName, Offset: 10, Size: 2048, CompressionType: CompressionZstd},
		{Name: "custom-stats", Offset: 2058, Size: 64, CompressionType: CompressionNone},
	}
	buf := EncodeOptionalSections(sections)
	got, err := DecodeOptionalSections(buf)
	require.NoError(t, err)
	require.Equal(t, sections, got)

	found, ok := FindSection(got, WASMBinariesSectionName)
	require.True(t, ok)
	require.Equal(t, uint64(2048), found.Size)

	_, ok = FindSection(got, "does-not-exist")
	require.False(t, ok)
}

func TestDecompressSectionZstdRoundTrip(t *testing.T) {
	payload := []byte("some decoder module bytes, repeated repeated repeated")
	compressed, err := CompressSectionZstd(payload)
	require.NoError(t, err)

	s := OptionalSection{Name: WASMBinariesSectionName, CompressionType: CompressionZstd}
	out, err := DecompressSection(s, compressed)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestEncodingVersionCompatible(t *testing.T) {
	v := EncodingVersion{Major: 1, Minor: 2, Patch: 0}
	require.True(t, v.Compatible(EncodingVersion{Major: 1, Minor: 2, Patch: 0}))
	require.True(t, v.Compatible(EncodingVersion{Major: 1, Minor: 2, Patch: 3}))
	require.True(t, v.Compatible(EncodingVersion{Major: 1, Minor: 3, Patch: 0}))
	require.False(t, v.Compatible(EncodingVersion{Major: 1, Minor: 1, Patch: 9}))
	require.False(t, v.Compatible(EncodingVersion{Major: 2, Minor: 2, Patch: 0}))
}

func exampleFooter() Footer {
	return Footer{
		Schema:            exampleSchema(),
		LogicalToPhysical: examplePhysicalTree(),
		RowGroups: RowGroupsPointer{
			RowCounts: []uint64{10},
			Offsets:   []uint64{0},
			Sizes:     []uint64{1000},
			RowGroupMetadatas: []RowGroupMetadata{
				{ColMetadatas: []ColumnMetaPointer{{Offset: 40, Size: 10}, {Offset: 50, Size: 10}, {Offset: 60, Size: 10}, {Offset: 70, Size: 10}}},
			},
		},
		SharedDict: []SharedDictionaryEntry{
			{DictionaryID: 1, Pointer: ColumnMetaPointer{Offset: 1040, Size: 200}, DecoderID: 7},
		},
		OptionalSections: []OptionalSection{
			{Name: WASMBinariesSectionName, Offset: 1240, Size: 5000, CompressionType: CompressionZstd},
		},
		EncodingVersions: map[uint32]EncodingVersion{
			0: {Major: 1, Minor: 0, Patch: 0},
			7: {Major: 2, Minor: 1, Patch: 0},
		},
	}
}

func TestFooterRoundTrip(t *testing.T) {
	f := exampleFooter()
	buf := EncodeFooter(f)
	got, err := DecodeFooter(buf)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestFooterRoundTripWithoutOptionalSections(t *testing.T) {
	f := exampleFooter()
	f.SharedDict = nil
	f.OptionalSections = nil
	buf := EncodeFooter(f)
	got, err := DecodeFooter(buf)
	require.NoError(t, err)
	require.Nil(t, got.SharedDict)
	require.Nil(t, got.OptionalSections)
}

func TestFooterRejectsMismatchedRowGroupColumnCount(t *testing.T) {
	f := exampleFooter()
	f.RowGroups.RowGroupMetadatas[0].ColMetadatas = f.RowGroups.RowGroupMetadatas[0].ColMetadatas[:2]
	buf := EncodeFooter(f)
	_, err := DecodeFooter(buf)
	require.Error(t, err)
}

func TestFooterRejectsFutureFormatVersion(t *testing.T) {
	f := exampleFooter()
	buf := EncodeFooter(f)

	w := newTLVWriter()
	w.putUvarint(uint64(CurrentFooterFormatVersion) + 1)
	w.buf = append(w.buf, buf[1:]...)

	_, err := DecodeFooter(w.Bytes())
	require.Error(t, err)
}

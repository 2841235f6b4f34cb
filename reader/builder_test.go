package reader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/f3-format/f3/checksum"
	"github.com/f3-format/f3/f3err"
	"github.com/f3-format/f3/footer"
	"github.com/f3-format/f3/positional"
)

func encodeMinimalFile(t *testing.T, schema footer.Schema, physical []footer.PhysicalNode) []byte {
	t.Helper()
	f := footer.Footer{
		Schema:            schema,
		LogicalToPhysical: physical,
		RowGroups:         footer.RowGroupsPointer{},
		EncodingVersions:  map[uint32]footer.EncodingVersion{},
	}
	footerBytes := footer.EncodeFooter(f)

	ps := footer.Postscript{
		FormatVersion: footer.CurrentFormatVersion,
		FooterSize:    uint32(len(footerBytes)),
		MetadataSize:  uint32(len(footerBytes)),
		DataChecksum:  checksum.Sum64(checksum.XxHash64, footerBytes),
		ChecksumType:  checksum.XxHash64,
	}

	out := append([]byte(nil), footerBytes...)
	out = append(out, ps.Encode()...)
	return out
}

func singleInt64Schema() (footer.Schema, []footer.PhysicalNode) {
	schema := footer.Schema{Fields: []footer.Field{{Name: "id", Type: footer.LogicalInt64}}}
	physical := []footer.PhysicalNode{{Leaf: &footer.PhysicalLeaf{DecoderID: 0}}}
	return schema, physical
}

func TestBuildSucceedsOnMinimalFile(t *testing.T) {
	schema, physical := singleInt64Schema()
	data := encodeMinimalFile(t, schema, physical)
	r := positional.NewSlice(data)

	fr, err := New().Build(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, 0, fr.NumRowGroups())
	require.Len(t, fr.Schema().Fields, 1)
	require.Equal(t, "id", fr.Schema().Fields[0].Name)
	require.Equal(t, footer.LogicalInt64, fr.Schema().Fields[0].Type)
}

func TestBuildRejectsFileTooSmall(t *testing.T) {
	r := positional.NewSlice(make([]byte, 10))
	_, err := New().Build(context.Background(), r)
	require.Error(t, err)
}

func TestBuildDetectsFileChecksumMismatch(t *testing.T) {
	schema, physical := singleInt64Schema()
	data := encodeMinimalFile(t, schema, physical)
	// Corrupt a footer byte without touching the already-computed checksum.
	data[0] ^= 0xFF

	r := positional.NewSlice(data)
	_, err := New().WithVerifyFileChecksum(true).Build(context.Background(), r)
	require.Error(t, err)
	require.Equal(t, f3err.ChecksumMismatch, f3err.KindOf(err))
}

func TestBuildFailsFooterTooLargeUnderReadAhead(t *testing.T) {
	buf := make([]byte, 100)
	ps := footer.Postscript{
		FormatVersion: footer.CurrentFormatVersion,
		FooterSize:    9_000_000,
		MetadataSize:  9_000_000,
		ChecksumType:  checksum.XxHash64,
	}
	copy(buf[60:], ps.Encode())

	r := positional.NewSlice(buf)
	_, err := New().WithReadAhead(true).Build(context.Background(), r)
	require.Error(t, err)
	require.Equal(t, f3err.FooterTooLarge, f3err.KindOf(err))
}

func TestBuildFailsMissingDecodersWhenNoneInjected(t *testing.T) {
	schema := footer.Schema{Fields: []footer.Field{{Name: "id", Type: footer.LogicalInt64}}}
	physical := []footer.PhysicalNode{{Leaf: &footer.PhysicalLeaf{DecoderID: 5}}}
	data := encodeMinimalFile(t, schema, physical)

	r := positional.NewSlice(data)
	_, err := New().Build(context.Background(), r)
	require.Error(t, err)
	require.Equal(t, f3err.MissingDecoders, f3err.KindOf(err))
}

func TestBuildRejectsProjectionOutOfRange(t *testing.T) {
	schema, physical := singleInt64Schema()
	data := encodeMinimalFile(t, schema, physical)

	r := positional.NewSlice(data)
	_, err := New().WithProjection(LeafIndexes([]int{5})).Build(context.Background(), r)
	require.Error(t, err)
}

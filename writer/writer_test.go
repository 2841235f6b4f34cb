package writer

import (
	"context"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/f3-format/f3/codec/builtin"
	"github.com/f3-format/f3/decoder"
	"github.com/f3-format/f3/footer"
	"github.com/f3-format/f3/positional"
	"github.com/f3-format/f3/reader"
)

// buildTestRowGroups constructs two row groups over a shared (id int64, name
// utf8) schema: the first row group is null-free, the second carries one
// null id, so the round trip exercises both BufferToArray's "all valid"
// sentinel and a real validity bitmap.
func buildTestRowGroups(t *testing.T) []arrow.Record {
	t.Helper()
	mem := memory.NewGoAllocator()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	idBldr1 := array.NewInt64Builder(mem)
	idBldr1.AppendValues([]int64{1, 2, 3}, nil)
	nameBldr1 := array.NewStringBuilder(mem)
	nameBldr1.AppendValues([]string{"a", "b", "c"}, nil)
	rec1 := array.NewRecord(schema, []arrow.Array{idBldr1.NewArray(), nameBldr1.NewArray()}, 3)

	idBldr2 := array.NewInt64Builder(mem)
	idBldr2.AppendValues([]int64{4, 0}, []bool{true, false})
	nameBldr2 := array.NewStringBuilder(mem)
	nameBldr2.AppendValues([]string{"d", ""}, []bool{true, false})
	rec2 := array.NewRecord(schema, []arrow.Array{idBldr2.NewArray(), nameBldr2.NewArray()}, 2)

	return []arrow.Record{rec1, rec2}
}

func assertRoundTrips(t *testing.T, fileBytes []byte) {
	t.Helper()
	ctx := context.Background()

	fr, err := reader.New().Build(ctx, positional.NewSlice(fileBytes))
	require.NoError(t, err)
	defer fr.Close(ctx)

	require.Equal(t, 2, fr.NumRowGroups())

	rg0, err := fr.RowGroup(0)
	require.NoError(t, err)
	rec0, err := rg0.Read(ctx)
	require.NoError(t, err)
	defer rec0.Release()
	require.Equal(t, int64(3), rec0.NumRows())
	ids0 := rec0.Column(0).(*array.Int64)
	names0 := rec0.Column(1).(*array.String)
	require.Equal(t, []int64{1, 2, 3}, ids0.Int64Values())
	require.False(t, ids0.IsNull(0))
	require.Equal(t, "a", names0.Value(0))
	require.Equal(t, "b", names0.Value(1))
	require.Equal(t, "c", names0.Value(2))

	rg1, err := fr.RowGroup(1)
	require.NoError(t, err)
	rec1, err := rg1.Read(ctx)
	require.NoError(t, err)
	defer rec1.Release()
	require.Equal(t, int64(2), rec1.NumRows())
	ids1 := rec1.Column(0).(*array.Int64)
	names1 := rec1.Column(1).(*array.String)
	require.False(t, ids1.IsNull(0))
	require.Equal(t, int64(4), ids1.Value(0))
	require.True(t, ids1.IsNull(1))
	require.False(t, names1.IsNull(0))
	require.Equal(t, "d", names1.Value(0))
	require.True(t, names1.IsNull(1))
}

func TestWriteReadIdentityDefault(t *testing.T) {
	records := buildTestRowGroups(t)
	defer func() {
		for _, r := range records {
			r.Release()
		}
	}()

	fileBytes, err := New(decoder.Default()).Write(records)
	require.NoError(t, err)

	assertRoundTrips(t, fileBytes)
}

func TestWriteReadIdentityDefaultWithAlwaysSetCustomWasm(t *testing.T) {
	records := buildTestRowGroups(t)
	defer func() {
		for _, r := range records {
			r.Release()
		}
	}()

	// DefaultWithAlwaysSetCustomWasm requires an explicit decoder mapping for
	// every logical type in use; mapping both to the built-in decoder id
	// exercises the "always tagged custom" encoding-decision path end to end
	// without needing a real compiled WASM module, since the writer and
	// reader both special-case decoder id 0 as the in-process built-in
	// codec regardless of which WriterContext mode chose it.
	wc := decoder.DefaultWithAlwaysSetCustomWasm()
	wc.RegisterCustomWasm(footer.LogicalInt64, decoder.ID(builtin.DecoderID), nil)
	wc.RegisterCustomWasm(footer.LogicalUtf8, decoder.ID(builtin.DecoderID), nil)

	fileBytes, err := New(wc).Write(records)
	require.NoError(t, err)

	assertRoundTrips(t, fileBytes)
}

func TestWriteRejectsEmptyRowGroups(t *testing.T) {
	_, err := New(decoder.Default()).Write(nil)
	require.Error(t, err)
}

func TestWriteRejectsUnmappedTypeInEmptyMode(t *testing.T) {
	records := buildTestRowGroups(t)
	defer func() {
		for _, r := range records {
			r.Release()
		}
	}()

	_, err := New(decoder.Empty()).Write(records)
	require.Error(t, err)
}

package decoder

import (
	"context"
	"errors"
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/f3-format/f3/f3err"
)

func TestRegistryStickyFailureOnFailingLoader(t *testing.T) {
	reg := prometheus.NewRegistry()
	boom := errors.New("simulated object store failure")
	r := NewFromFile(log.NewNopLogger(), reg, nil, func(ctx context.Context) (map[ID][]byte, error) {
		return nil, boom
	})
	defer r.Close(context.Background())

	_, err1 := r.GetRuntime(context.Background(), 0)
	require.Error(t, err1)
	require.ErrorContains(t, err1, "simulated object store failure")
	require.Equal(t, f3err.MissingDecoders, f3err.KindOf(err1))

	_, err2 := r.GetRuntime(context.Background(), 0)
	require.Same(t, err1, err2)
}

func TestRegistryUnknownDecoderIDOnEmptyInjectedMap(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewFromMap(log.NewNopLogger(), reg, nil, map[ID]*Runtime{})

	_, err := r.GetRuntime(context.Background(), 999)
	require.Error(t, err)
	require.Equal(t, f3err.DecoderNotFound, f3err.KindOf(err))
}

func TestRegistrySortedIDsOnlyReportsReady(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewFromFile(log.NewNopLogger(), reg, nil, func(ctx context.Context) (map[ID][]byte, error) {
		return nil, errors.New("unused")
	})
	defer r.Close(context.Background())
	r.cells[7] = &cell{state: stateReady}
	r.cells[3] = &cell{state: stateReady}
	r.cells[9] = &cell{state: stateFailed}

	require.Equal(t, []ID{3, 7}, r.SortedIDs())
}

package decoder

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tetratelabs/wazero"

	"github.com/f3-format/f3/f3err"
	"github.com/f3-format/f3/footer"
)

// cellState is the per-decoder one-shot state.
type cellState int

const (
	stateUninit cellState = iota
	stateInitializing
	stateReady
	stateFailed
)

type cell struct {
	mu      sync.Mutex
	state   cellState
	runtime *Runtime
	err     error
}

// Registry is the reading-side decoder registry: a lazy, one-shot-initialized
// map from decoder-id to a sandboxed Runtime. It is built either lazily over
// an embedded WASMBinaries section or eagerly over an injected map of
// pre-compiled runtimes.
type Registry struct {
	logger   log.Logger
	wazeroRT wazero.Runtime

	mu               sync.Mutex
	cells            map[ID]*cell
	encodingVersions map[uint32]footer.EncodingVersion

	// source, set exactly once at construction.
	loadWASM func(ctx context.Context) (map[ID][]byte, error)
	seeded   bool // true when built from an injected map: cells start Ready.

	compileLatency prometheus.Histogram
}

// NewFromFile builds a Registry that lazily compiles decoders out of the
// embedded WASMBinaries optional section the first time any GetRuntime call
// needs one. loadWASM is expected to locate the section, parse its
// (offset, size) locator table, and read each module's bytes; it runs at
// most once per Registry, and every decoder id observes its one result.
func NewFromFile(logger log.Logger, reg prometheus.Registerer, encodingVersions map[uint32]footer.EncodingVersion, loadWASM func(ctx context.Context) (map[ID][]byte, error)) *Registry {
	var (
		loadOnce sync.Once
		loaded   map[ID][]byte
		loadErr  error
	)
	loadOnceWASM := func(ctx context.Context) (map[ID][]byte, error) {
		loadOnce.Do(func() { loaded, loadErr = loadWASM(ctx) })
		return loaded, loadErr
	}
	return &Registry{
		logger:           logger,
		wazeroRT:         wazero.NewRuntime(context.Background()),
		cells:            make(map[ID]*cell),
		encodingVersions: encodingVersions,
		loadWASM:         loadOnceWASM,
		compileLatency:   newCompileLatencyHistogram(reg),
	}
}

// NewFromMap builds a Registry seeded as Ready with already-compiled
// runtimes.
func NewFromMap(logger log.Logger, reg prometheus.Registerer, encodingVersions map[uint32]footer.EncodingVersion, runtimes map[ID]*Runtime) *Registry {
	r := &Registry{
		logger:           logger,
		cells:            make(map[ID]*cell),
		encodingVersions: encodingVersions,
		seeded:           true,
		compileLatency:   newCompileLatencyHistogram(reg),
	}
	for id, rt := range runtimes {
		r.cells[id] = &cell{state: stateReady, runtime: rt}
	}
	return r
}

func newCompileLatencyHistogram(reg prometheus.Registerer) prometheus.Histogram {
	return promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Name:    "f3_decoder_compile_latency_seconds",
		Help:    "Time spent compiling and instantiating a decoder module, across all decoder ids.",
		Buckets: prometheus.DefBuckets,
	})
}

// EncodingVersions exposes the footer's encoding-type -> version map for
// ABI gating against a runtime's own reported version.
func (r *Registry) EncodingVersions() map[uint32]footer.EncodingVersion {
	return r.encodingVersions
}

func (r *Registry) cellFor(id ID) *cell {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cells[id]
	if !ok {
		c = &cell{}
		r.cells[id] = c
	}
	return c
}

// GetRuntime drives initialization if needed and returns a shared handle to
// the runtime for id, or the sticky failure recorded for it.
func (r *Registry) GetRuntime(ctx context.Context, id ID) (*Runtime, error) {
	if r.seeded {
		c, ok := r.cells[id]
		if !ok {
			return nil, f3err.New(f3err.DecoderNotFound, fmt.Sprintf("decoder id %d not present in injected registry", id))
		}
		return c.runtime, nil
	}

	c := r.cellFor(id)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateReady:
		return c.runtime, nil
	case stateFailed:
		return nil, c.err
	case stateUninit, stateInitializing:
		// fall through to perform (or re-attempt observing) initialization
		// below; holding c.mu already serializes concurrent callers for
		// this id.
	}

	c.state = stateInitializing
	correlationID := uuid.NewString()
	level.Debug(r.logger).Log("msg", "compiling decoder module", "decoder_id", id, "correlation_id", correlationID)

	wasmByID, err := r.loadWASM(ctx)
	if err != nil {
		c.state = stateFailed
		c.err = f3err.Wrap(f3err.MissingDecoders, err, "load WASMBinaries section")
		level.Error(r.logger).Log("msg", "failed to load decoder binaries", "err", c.err, "correlation_id", correlationID)
		return nil, c.err
	}
	wasmBytes, ok := wasmByID[id]
	if !ok {
		c.state = stateFailed
		c.err = f3err.New(f3err.DecoderNotFound, fmt.Sprintf("decoder id %d not present in WASMBinaries section", id))
		return nil, c.err
	}

	timer := prometheus.NewTimer(r.compileLatency)
	rt, err := compileAndInstantiate(ctx, r.wazeroRT, id, wasmBytes)
	timer.ObserveDuration()
	if err != nil {
		c.state = stateFailed
		c.err = err
		level.Error(r.logger).Log("msg", "decoder compilation failed", "decoder_id", id, "err", err, "correlation_id", correlationID)
		return nil, c.err
	}

	c.state = stateReady
	c.runtime = rt
	level.Info(r.logger).Log("msg", "decoder compiled", "decoder_id", id, "correlation_id", correlationID)
	return rt, nil
}

// Close releases every compiled runtime and the underlying wazero engine.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cells {
		if c.state == stateReady && c.runtime != nil {
			_ = c.runtime.Close(ctx)
		}
	}
	if r.wazeroRT != nil {
		return r.wazeroRT.Close(ctx)
	}
	return nil
}

// SortedIDs returns every id with a Ready runtime, ascending.
func (r *Registry) SortedIDs() []ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]ID, 0, len(r.cells))
	for id, c := range r.cells {
		if c.state == stateReady {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

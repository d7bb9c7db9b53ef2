package compress

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/seminvestr/weightpack/internal/cluster"
	"github.com/seminvestr/weightpack/pool"
)

// BatchSize is the per-task sample count of the parallel driver. It is a
// multiple of NUQGroupSize so batches never split a group.
const BatchSize = 8192

// benchThreshold is the sample count above which Compress logs throughput.
const benchThreshold = 1 << 20

// PerThread is one worker's scratch: a reusable cluster buffer plus
// optional distortion statistics. The pool lends each task exclusive
// access to its slot for the task duration.
type PerThread struct {
	Buf   cluster.Buf
	Stats DistortionStats

	collect    bool
	nuqIndices []uint16
}

// WorkingSet holds per-worker scratch for the compress driver, created
// at driver entry and reused across batches.
type WorkingSet struct {
	TLS []PerThread

	// CollectStats enables per-sample distortion tracking. Off the hot
	// path by default.
	CollectStats bool

	// Logger, when set, receives throughput lines for large tensors.
	Logger *slog.Logger

	limiter *rate.Limiter
}

// NewWorkingSet creates a working set. logger may be nil to disable
// throughput logging.
func NewWorkingSet(logger *slog.Logger) *WorkingSet {
	return &WorkingSet{
		Logger:  logger,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (ws *WorkingSet) resize(workers int) {
	if len(ws.TLS) < workers {
		ws.TLS = append(ws.TLS, make([]PerThread, workers-len(ws.TLS))...)
	}
	for i := range ws.TLS {
		ws.TLS[i].collect = ws.CollectStats
		if ws.CollectStats {
			ws.TLS[i].Stats.Reset()
		}
	}
}

// MergedStats merges all workers' distortion statistics. Call after
// Compress with CollectStats enabled.
func (ws *WorkingSet) MergedStats() DistortionStats {
	var merged DistortionStats
	for i := range ws.TLS {
		merged.Assimilate(&ws.TLS[i].Stats)
	}
	return merged
}

// Compress writes num samples of raw into packed starting at logical
// offset ofs, in parallel batches of BatchSize. Workers write disjoint
// output ranges, so the pool join is the only synchronization. For NUQ,
// ofs must be group-aligned.
func Compress[P Packed](raw []float32, num int, ws *WorkingSet, packed Span[P], ofs int, p pool.Pool) {
	packed.BoundsCheck(ofs, num)
	ws.resize(p.NumWorkers())

	wantBench := num > benchThreshold && ws.Logger != nil
	var t0 time.Time
	if wantBench {
		t0 = time.Now()
	}

	numBatches := (num + BatchSize - 1) / BatchSize
	p.Run(0, numBatches, func(batch, worker int) {
		pos := batch * BatchSize
		n := BatchSize
		if pos+n > num {
			n = num - pos
		}
		encode(raw[pos:pos+n], &ws.TLS[worker], packed, ofs+pos)
	})

	if wantBench && (ws.limiter == nil || ws.limiter.Allow()) {
		elapsed := time.Since(t0).Seconds()
		mb := float64(num) * 4 * 1e-6
		ws.Logger.Info("compress throughput",
			slog.Int("samples", num),
			slog.Float64("mb_per_s", mb/elapsed))
	}
}

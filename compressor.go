package weightpack

import (
	"context"
	"errors"

	"github.com/seminvestr/weightpack/bf16"
	"github.com/seminvestr/weightpack/blobstore"
	"github.com/seminvestr/weightpack/compress"
	"github.com/seminvestr/weightpack/internal/conv"
	"github.com/seminvestr/weightpack/pool"
	"github.com/seminvestr/weightpack/simd"
)

// Key suffixes identifying the packed type of a stored tensor.
const (
	SuffixF32  = ".f32"
	SuffixBF16 = ".bf16"
	SuffixSFP  = ".sfp"
	SuffixNUQ  = ".nuq"

	// ScalesKey stores the per-tensor scale factors applied before
	// SFP encoding.
	ScalesKey = "scales"
)

// TypeSuffix returns the key suffix for a packed type.
func TypeSuffix[P compress.Packed]() string {
	var z P
	switch any(z).(type) {
	case float32:
		return SuffixF32
	case bf16.Bits:
		return SuffixBF16
	case compress.SFPByte:
		return SuffixSFP
	default:
		return SuffixNUQ
	}
}

// Compressor compresses named tensors and collects them, along with
// their scale factors, for a single parallel write to a blob store.
type Compressor struct {
	pool   pool.Pool
	ws     *compress.WorkingSet
	writer *blobstore.Writer
	opts   *Options
	scales []float32
}

// NewCompressor creates a Compressor using the given worker pool.
func NewCompressor(p pool.Pool, opts ...Option) *Compressor {
	o := applyOptions(opts)
	ws := compress.NewWorkingSet(o.Logger.Logger)
	ws.CollectStats = o.CollectStats
	return &Compressor{
		pool:   p,
		ws:     ws,
		writer: blobstore.NewWriter(o.BlobCodec),
		opts:   o,
	}
}

// Insert compresses weights into the packed representation P and
// registers the result under name plus the type suffix. If P is SFP the
// weights must already be scaled into [-SFPMax, SFPMax]; record the
// factor with AddScales.
func Insert[P compress.Packed](c *Compressor, name string, weights []float32) {
	num := len(weights)
	span := compress.AllocSpan[P](num)
	compress.Compress(weights, num, c.ws, span, 0, c.pool)

	payload := spanBytes(span)
	c.opts.Logger.Info("compressed tensor",
		"name", name,
		"samples", num,
		"bytes", len(payload),
		"simd", simd.ActiveISA().String())

	if c.opts.CollectStats {
		stats := c.ws.MergedStats()
		c.opts.Logger.Info("distortion",
			"name", name,
			"sum_l1", stats.SumL1(),
			"max_l1", stats.L1Max(),
			"weighted_avg_l1", stats.WeightedAverageL1(),
			"exact", stats.NumExact(),
			"sign_flips", stats.NumSignFlip())
	}

	c.writer.Add(name+TypeSuffix[P](), payload)
}

// AddScales records the scale factors of pre-scaled tensors. They are
// persisted under ScalesKey by WriteAll.
func (c *Compressor) AddScales(scales []float32) {
	c.scales = append(c.scales, scales...)
}

// WriteAll persists every inserted tensor and the scale sequence.
func (c *Compressor) WriteAll(ctx context.Context, store blobstore.WritableStore) error {
	if len(c.scales) > 0 {
		c.writer.Add(ScalesKey, conv.F32Bytes(c.scales))
	}
	return c.writer.WriteAll(ctx, store)
}

func spanBytes[P compress.Packed](span compress.Span[P]) []byte {
	switch d := any(span.Data()).(type) {
	case []float32:
		return conv.F32Bytes(d)
	case []bf16.Bits:
		return conv.U16Bytes(d)
	case []compress.SFPByte:
		return conv.ByteView(d)
	case []compress.NUQByte:
		return conv.ByteView(d)
	}
	return nil
}

// LoadPacked reads a packed tensor of num logical samples back from a
// store. The payload must have the exact byte size implied by P and num.
func LoadPacked[P compress.Packed](ctx context.Context, store blobstore.BlobStore, name string, num int) (compress.ConstSpan[P], error) {
	key := name + TypeSuffix[P]()
	payload, err := blobstore.Fetch(ctx, store, key)
	if err != nil {
		return compress.ConstSpan[P]{}, translateError(name, err)
	}

	var z P
	var want int
	switch any(z).(type) {
	case float32:
		want = num * 4
	case bf16.Bits:
		want = num * 2
	case compress.SFPByte:
		want = num
	default:
		want = compress.NUQPackedEnd(num)
	}
	if len(payload) != want {
		return compress.ConstSpan[P]{}, &ErrSizeMismatch{Name: key, Expected: want, Actual: len(payload)}
	}

	switch any(z).(type) {
	case float32:
		data := any(conv.BytesF32(payload)).([]P)
		return compress.MakeConstSpan(data, num), nil
	case bf16.Bits:
		data := any(conv.BytesU16[bf16.Bits](payload)).([]P)
		return compress.MakeConstSpan(data, num), nil
	case compress.SFPByte:
		data := any(conv.Bytes[compress.SFPByte](payload)).([]P)
		return compress.MakeConstSpan(data, num), nil
	default:
		data := any(conv.Bytes[compress.NUQByte](payload)).([]P)
		return compress.MakeConstSpan(data, num), nil
	}
}

// LoadScales reads the scale sequence written by AddScales.
func LoadScales(ctx context.Context, store blobstore.BlobStore, count int) ([]float32, error) {
	payload, err := blobstore.Fetch(ctx, store, ScalesKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNoScales
		}
		return nil, err
	}
	if len(payload) != count*4 {
		return nil, &ErrSizeMismatch{Name: ScalesKey, Expected: count * 4, Actual: len(payload)}
	}
	out := make([]float32, count)
	copy(out, conv.BytesF32(payload))
	return out, nil
}

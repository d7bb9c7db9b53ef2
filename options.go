package weightpack

import (
	"github.com/seminvestr/weightpack/blobstore"
)

// Options configures a Compressor.
type Options struct {
	// Logger receives per-tensor progress and throughput lines.
	// Defaults to a noop logger.
	Logger *Logger

	// CollectStats enables per-worker distortion statistics during
	// compression, merged and logged per tensor. Off by default; keeps
	// the encode hot path branch-free.
	CollectStats bool

	// BlobCodec is the container compression for persisted payloads.
	BlobCodec blobstore.Codec
}

// Option customizes Options.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l *Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithStats enables distortion statistics collection.
func WithStats() Option {
	return func(o *Options) {
		o.CollectStats = true
	}
}

// WithBlobCodec sets the container compression for persisted blobs.
func WithBlobCodec(c blobstore.Codec) Option {
	return func(o *Options) {
		o.BlobCodec = c
	}
}

func applyOptions(opts []Option) *Options {
	o := &Options{
		Logger: NoopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

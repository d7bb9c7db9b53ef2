package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/sync/errgroup"
)

// Codec selects the container compression applied to blob payloads.
// This is transport framing, independent of the weight codecs: NUQ/SFP
// payloads are high-entropy and usually ship uncompressed, while f32 and
// bf16 tensors often shrink noticeably.
type Codec uint8

const (
	// CodecNone stores payloads verbatim.
	CodecNone Codec = iota
	// CodecZstd wraps payloads in a zstd frame.
	CodecZstd
	// CodecLZ4 wraps payloads in an lz4 frame.
	CodecLZ4
)

// Payload header: 4-byte magic (its last byte is the format version),
// then one codec byte.
var payloadMagic = [4]byte{'W', 'P', 'B', '1'}

const payloadHeaderSize = len(payloadMagic) + 1

// Writer accumulates named payloads and writes them to a store in one
// parallel pass. Add, Keys, Len and WriteAll are safe for concurrent use;
// WriteAll writes the payloads registered at the moment it is called.
type Writer struct {
	mu      sync.Mutex
	entries map[string][]byte
	codec   Codec
}

// NewWriter creates a Writer with the given container codec.
func NewWriter(codec Codec) *Writer {
	return &Writer{
		entries: make(map[string][]byte),
		codec:   codec,
	}
}

// Add registers a payload under key, replacing any previous payload for
// the same key. The data is not copied; callers must not mutate it
// before WriteAll returns.
func (w *Writer) Add(key string, data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[key] = data
}

// Keys returns the registered keys in sorted order.
func (w *Writer) Keys() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	keys := make([]string, 0, len(w.entries))
	for k := range w.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered payloads.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// WriteAll encodes and uploads every payload. Uploads run concurrently;
// the first error cancels the rest.
func (w *Writer) WriteAll(ctx context.Context, store WritableStore) error {
	w.mu.Lock()
	entries := make(map[string][]byte, len(w.entries))
	for k, v := range w.entries {
		entries[k] = v
	}
	codec := w.codec
	w.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for key, data := range entries {
		g.Go(func() error {
			framed, err := frame(data, codec)
			if err != nil {
				return fmt.Errorf("blobstore: framing %q: %w", key, err)
			}
			if err := store.Put(ctx, key, framed); err != nil {
				return fmt.Errorf("blobstore: writing %q: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func frame(data []byte, codec Codec) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(payloadHeaderSize + len(data))
	buf.Write(payloadMagic[:])
	buf.WriteByte(byte(codec))

	switch codec {
	case CodecNone:
		buf.Write(data)
	case CodecZstd:
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		if _, err := enc.Write(data); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	case CodecLZ4:
		enc := lz4.NewWriter(&buf)
		if _, err := enc.Write(data); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown codec %d", codec)
	}
	return buf.Bytes(), nil
}

// Fetch reads a blob written by Writer and returns the decoded payload.
func Fetch(ctx context.Context, store BlobStore, key string) ([]byte, error) {
	blob, err := store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	raw, err := ReadAll(blob)
	if err != nil {
		return nil, err
	}
	return unframe(raw)
}

func unframe(raw []byte) ([]byte, error) {
	if len(raw) < payloadHeaderSize || !bytes.Equal(raw[:len(payloadMagic)], payloadMagic[:]) {
		return nil, fmt.Errorf("blobstore: missing payload header")
	}
	codec := Codec(raw[len(payloadMagic)])
	body := raw[payloadHeaderSize:]

	switch codec {
	case CodecNone:
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	case CodecZstd:
		dec, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return io.ReadAll(dec)
	case CodecLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(body)))
	default:
		return nil, fmt.Errorf("blobstore: unknown codec %d", codec)
	}
}

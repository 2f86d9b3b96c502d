// core/async.go
package core

// Asynchronous surface (spec §6): cooperative tasks producing Result
// values, a bounded CPU-bound worker pool, and chunked I/O for streaming
// save/load without peak memory spikes. Logged through zap rather than the
// logrus used by the synchronous core, mirroring the teacher repo's split
// between its primary logrus logging and a dedicated zap logger for its
// async/worker subsystem.

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// defaultChunkSize is the streaming I/O unit (spec §6: "default 64 KiB").
const defaultChunkSize = 64 * 1024

// workerPool bounds concurrent CPU-bound async tasks (serialize/deserialize)
// to GOMAXPROCS in flight, process-wide. Sized inside init() below, after
// automaxprocs.Set has had a chance to adjust GOMAXPROCS from the cgroup
// quota — a package-level var initializer would run first and capture the
// pre-adjustment value.
var workerPool *semaphore.Weighted

func init() {
	// Adjusts GOMAXPROCS to the container's cgroup CPU quota, if any, before
	// the worker-pool semaphore is sized from runtime.GOMAXPROCS. A no-op
	// logger discards the informational "no quota" message that
	// automaxprocs logs on machines without cgroup limits.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
	workerPool = semaphore.NewWeighted(int64(maxInt(runtime.GOMAXPROCS(0), 1)))
}

var asyncLoggerOnce sync.Once
var asyncLogger *zap.Logger

func getAsyncLogger() *zap.Logger {
	asyncLoggerOnce.Do(func() {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		asyncLogger = l.Named("container.async")
	})
	return asyncLogger
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// AsyncResult is the Result<T> payload delivered on an async task's
// channel, mirroring spec §7's {value, error} Result shape.
type AsyncResult[T any] struct {
	Value T
	Err   error
}

// runAsync dispatches fn on the bounded worker pool and delivers its result
// on the returned channel, honoring ctx cancellation both before dispatch
// and before delivery. If ctx is already done when a worker slot is
// requested, fn never runs and the Acquire error (ctx.Err()) is delivered.
// If ctx becomes done while fn runs, the result may be dropped and the
// channel closed without a value.
func runAsync[T any](ctx context.Context, fn func() (T, error)) <-chan AsyncResult[T] {
	out := make(chan AsyncResult[T], 1)
	go func() {
		defer close(out)
		if err := workerPool.Acquire(ctx, 1); err != nil {
			out <- AsyncResult[T]{Err: err}
			return
		}
		defer workerPool.Release(1)

		val, err := fn()

		select {
		case <-ctx.Done():
			return // dropped: caller stopped waiting before resumption
		case out <- AsyncResult[T]{Value: val, Err: err}:
		}
	}()
	return out
}

// SerializeAsync encodes c to canonical binary on the worker pool.
func SerializeAsync(ctx context.Context, c *Container) <-chan AsyncResult[[]byte] {
	return runAsync(ctx, func() ([]byte, error) { return EncodeBinary(c) })
}

// SerializeStringAsync encodes c to JSON text on the worker pool, for
// callers that want a string-based transport rather than raw bytes.
func SerializeStringAsync(ctx context.Context, c *Container) <-chan AsyncResult[string] {
	return runAsync(ctx, func() (string, error) {
		b, err := EncodeJSON(c)
		if err != nil {
			return "", err
		}
		return string(b), nil
	})
}

// DeserializeAsync decodes data on the worker pool, auto-detecting its wire
// format (codec_detect.go).
func DeserializeAsync(ctx context.Context, data []byte) <-chan AsyncResult[*Container] {
	return runAsync(ctx, func() (*Container, error) {
		c, _, err := DecodeAuto(data)
		return c, err
	})
}

// ProgressFunc reports (bytes_done, bytes_total) during a chunked I/O
// operation (spec §6).
type ProgressFunc func(done, total int64)

// SaveAsync serializes c to canonical binary and writes it to path in
// defaultChunkSize chunks, reporting progress as it goes.
func SaveAsync(ctx context.Context, c *Container, path string, progress ProgressFunc) <-chan AsyncResult[struct{}] {
	return runAsync(ctx, func() (struct{}, error) {
		data, err := EncodeBinary(c)
		if err != nil {
			return struct{}{}, err
		}
		f, err := os.Create(path)
		if err != nil {
			getAsyncLogger().Error("save_async: open failed", zap.String("path", path), zap.Error(err))
			return struct{}{}, errInvalidFormat("async", fmt.Sprintf("open %s: %v", path, err))
		}
		defer f.Close()

		total := int64(len(data))
		var done int64
		for done < total {
			if err := ctx.Err(); err != nil {
				return struct{}{}, err
			}
			end := done + defaultChunkSize
			if end > total {
				end = total
			}
			n, err := f.Write(data[done:end])
			if err != nil {
				getAsyncLogger().Error("save_async: write failed", zap.String("path", path), zap.Error(err))
				return struct{}{}, errInvalidFormat("async", fmt.Sprintf("write %s: %v", path, err))
			}
			done += int64(n)
			if progress != nil {
				progress(done, total)
			}
		}
		return struct{}{}, nil
	})
}

// LoadAsync reads path in defaultChunkSize chunks, reporting progress, then
// decodes the accumulated bytes with format auto-detection.
func LoadAsync(ctx context.Context, path string, progress ProgressFunc) <-chan AsyncResult[*Container] {
	return runAsync(ctx, func() (*Container, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, errInvalidFormat("async", fmt.Sprintf("open %s: %v", path, err))
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, errInvalidFormat("async", fmt.Sprintf("stat %s: %v", path, err))
		}
		total := info.Size()

		buf := make([]byte, 0, total)
		chunk := make([]byte, defaultChunkSize)
		var done int64
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			n, readErr := f.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
				done += int64(n)
				if progress != nil {
					progress(done, total)
				}
			}
			if readErr != nil {
				break
			}
		}
		c, _, err := DecodeAuto(buf)
		return c, err
	})
}

// SerializeChunked encodes c once, then emits the result in chunkSize
// pieces over the returned channel — a lazy finite sequence per spec §6,
// used to bound peak memory when writing to a slow downstream consumer.
// chunkSize <= 0 uses defaultChunkSize.
func SerializeChunked(c *Container, chunkSize int) (<-chan []byte, error) {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	data, err := EncodeBinary(c)
	if err != nil {
		return nil, err
	}
	out := make(chan []byte)
	go func() {
		defer close(out)
		for offset := 0; offset < len(data); offset += chunkSize {
			end := offset + chunkSize
			if end > len(data) {
				end = len(data)
			}
			out <- data[offset:end]
		}
	}()
	return out, nil
}

// DeserializeStreaming consumes chunks as they arrive and decodes the
// accumulated buffer once the channel closes — an incremental parse in the
// sense that memory is filled progressively rather than requiring the
// caller to hold one contiguous buffer up front.
func DeserializeStreaming(chunks <-chan []byte) (*Container, error) {
	var buf []byte
	for chunk := range chunks {
		buf = append(buf, chunk...)
	}
	c, _, err := DecodeAuto(buf)
	return c, err
}

// ValidateBatchAsync validates many containers against schema concurrently,
// bounded by the same worker pool semaphore as the rest of this file, and
// cancels the remaining work on the first failure. Built with
// golang.org/x/sync/errgroup, the natural fit for "fan out N independent
// tasks, stop at the first error" — the same shape as serialize_chunked's
// emit loop but across containers instead of byte ranges.
func ValidateBatchAsync(ctx context.Context, schema *Schema, containers []*Container) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range containers {
		c := c
		g.Go(func() error {
			if err := workerPool.Acquire(gctx, 1); err != nil {
				return err
			}
			defer workerPool.Release(1)
			return schema.ValidateResult(c)
		})
	}
	return g.Wait()
}

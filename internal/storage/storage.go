// Package storage persists in-memory collections to JSONL files in the
// background.
//
// A collection hands its [Storage] a snapshot function once, then only
// signals that its state changed with [Storage.QueueUpForSave]. A background
// writer coalesces bursts of requests into one write, waiting
// [Config.SaveDelay] after the first request and never writing more often than
// [Config.MinSaveInterval]. The owning process calls [Storage.Close] before
// exiting so that the last changes reach the disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maruel/walletdb/internal/jsonldb"
	"golang.org/x/time/rate"
)

var errAlreadyInitialized = errors.New("storage already initialized")

// Storage persists one collection of T to a JSONL file.
type Storage[T any] struct {
	dir     string
	cfg     Config
	limiter *rate.Limiter

	mu     sync.Mutex // guards file, source and the writer lifecycle.
	file   *jsonldb.File[T]
	source func() []T
	cancel context.CancelFunc
	done   chan struct{}
	closed bool

	// loadErr is set when the file exists but could not be opened. Saves are
	// refused while it is set.
	loadErr error

	writeMu sync.Mutex // serializes writes.
	dirty   atomic.Bool
	saves   atomic.Int64
	wake    chan struct{}
}

// New returns a Storage writing into dir.
func New[T any](dir string, cfg Config) *Storage[T] {
	limit := rate.Inf
	if d := cfg.MinSaveInterval(); d > 0 {
		limit = rate.Every(d)
	}
	return &Storage[T]{
		dir:     dir,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		wake:    make(chan struct{}, 1),
	}
}

// InitAndGetPersisted binds the storage to dir/fileName.jsonl and returns the
// rows saved by a previous run.
//
// source is called from the writer goroutine whenever a save is due and must
// return the current state of the collection; it must be safe to call
// concurrently with the collection's mutations.
//
// A missing file returns no rows and no error. A file that cannot be decoded
// is renamed aside and the decode error is returned; the next save writes a
// fresh file. When the file cannot even be opened, the error is returned and
// every later save fails instead of overwriting it.
func (s *Storage[T]) InitAndGetPersisted(source func() []T, fileName string) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		return nil, errAlreadyInitialized
	}
	f, err := jsonldb.NewFile[T](FilePath(s.dir, fileName))
	if err != nil {
		return nil, err
	}
	s.file = f
	s.source = source
	if !s.closed {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.done = make(chan struct{})
		go s.run(ctx)
	}

	rows, err := f.Load()
	switch {
	case err == nil:
		return rows, nil
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case errors.Is(err, jsonldb.ErrCorrupt):
		dst, qerr := f.Quarantine()
		if qerr != nil {
			return nil, errors.Join(err, qerr)
		}
		slog.Warn("Moved unreadable file aside", "path", f.Path(), "backup", dst)
		return nil, err
	default:
		s.loadErr = err
		return nil, err
	}
}

// FilePath returns the path of the file storing fileName in dir.
func FilePath(dir, fileName string) string {
	return filepath.Join(dir, fileName+".jsonl")
}

// QueueUpForSave requests that the current state be written eventually.
//
// It never blocks; requests made before the pending write happens are
// merged into it.
func (s *Storage[T]) QueueUpForSave() {
	s.dirty.Store(true)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Flush writes the current state now if a save was requested since the last
// write.
func (s *Storage[T]) Flush(ctx context.Context) error {
	s.mu.Lock()
	initialized := s.file != nil
	s.mu.Unlock()
	if !initialized {
		return nil
	}
	return s.write(ctx)
}

// Close stops the background writer and flushes outstanding changes.
//
// It is safe to call more than once.
func (s *Storage[T]) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.Flush(ctx)
}

// Saves returns the number of successful writes.
func (s *Storage[T]) Saves() int64 {
	return s.saves.Load()
}

// Path returns the bound file path, or "" before InitAndGetPersisted.
func (s *Storage[T]) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ""
	}
	return s.file.Path()
}

func (s *Storage[T]) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}
		if d := s.cfg.SaveDelay(); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		// Requests that arrived while waiting are served by this write.
		select {
		case <-s.wake:
		default:
		}
		_ = s.write(ctx)
	}
}

func (s *Storage[T]) write(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	loadErr := s.loadErr
	s.mu.Unlock()
	if loadErr != nil {
		if !s.dirty.Load() {
			return nil
		}
		slog.WarnContext(ctx, "Not saving over unreadable file", "path", s.file.Path(), "err", loadErr)
		return fmt.Errorf("refusing to overwrite %s: %w", s.file.Path(), loadErr)
	}
	// Clear before taking the snapshot so that a mutation racing with the
	// write marks the state dirty again.
	if !s.dirty.Swap(false) {
		return nil
	}
	rows := s.source()
	if err := s.file.Save(rows); err != nil {
		s.dirty.Store(true)
		slog.WarnContext(ctx, "Failed to save", "path", s.file.Path(), "err", err)
		return fmt.Errorf("failed to save %s: %w", s.file.Path(), err)
	}
	s.saves.Add(1)
	slog.DebugContext(ctx, "Saved", "path", s.file.Path(), "rows", len(rows))
	return nil
}

package stt

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by a Handle after Close.
var ErrClosed = errors.New("speech-to-text handle is closed")

// Handle defers construction of the underlying Transcriber until the first
// Transcribe call, then reuses it for the rest of the process lifetime.
type Handle struct {
	factory func() (Transcriber, error)

	once    sync.Once
	mu      sync.Mutex
	inner   Transcriber
	initErr error
	closed  bool
}

// NewHandle creates a handle that builds its Transcriber with factory.
func NewHandle(factory func() (Transcriber, error)) *Handle {
	return &Handle{factory: factory}
}

func (h *Handle) get() (Transcriber, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	h.once.Do(func() {
		t, err := h.factory()
		h.mu.Lock()
		h.inner, h.initErr = t, err
		h.mu.Unlock()
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	return h.inner, h.initErr
}

func (h *Handle) Transcribe(ctx context.Context, audio Audio) (*Result, error) {
	t, err := h.get()
	if err != nil {
		return nil, err
	}
	return t.Transcribe(ctx, audio)
}

// Initialized reports whether the underlying Transcriber has been built.
func (h *Handle) Initialized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inner != nil
}

// Close releases the underlying Transcriber if it was ever built.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if h.inner != nil {
		return h.inner.Close()
	}
	return nil
}

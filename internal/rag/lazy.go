package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ConnectFunc opens a [VectorIndex].
type ConnectFunc func(ctx context.Context) (VectorIndex, error)

// DefaultReconnectInterval is the minimum gap between connection attempts
// after a failure.
const DefaultReconnectInterval = 5 * time.Second

var errIndexClosed = errors.New("rag: index closed")

var _ VectorIndex = (*LazyIndex)(nil)

// LazyIndex connects to its backend on first use and keeps trying after a
// failed attempt, at most once per interval. A backend that is down when
// the process starts is picked up as soon as it answers.
type LazyIndex struct {
	connect  ConnectFunc
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	index     VectorIndex
	lastTry   time.Time
	lastErr   error
	connected bool
	closed    bool
}

// NewLazyIndex returns an index that calls connect when first needed. A
// non-positive interval uses DefaultReconnectInterval.
func NewLazyIndex(connect ConnectFunc, interval time.Duration) *LazyIndex {
	if interval <= 0 {
		interval = DefaultReconnectInterval
	}
	return &LazyIndex{connect: connect, interval: interval, now: time.Now}
}

// Connect attempts the connection now unless one is already open or the
// last failure is more recent than the interval.
func (l *LazyIndex) Connect(ctx context.Context) error {
	_, err := l.get(ctx)
	return err
}

// Connected reports whether the backend is open.
func (l *LazyIndex) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *LazyIndex) get(ctx context.Context) (VectorIndex, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.closed:
		return nil, errIndexClosed
	case l.connected:
		return l.index, nil
	case l.lastErr != nil && l.now().Sub(l.lastTry) < l.interval:
		return nil, fmt.Errorf("rag: index unavailable: %w", l.lastErr)
	}

	l.lastTry = l.now()
	idx, err := l.connect(ctx)
	if err != nil {
		l.lastErr = err
		return nil, fmt.Errorf("rag: connect index: %w", err)
	}
	l.index, l.connected, l.lastErr = idx, true, nil
	return idx, nil
}

// Query connects if needed and delegates to the backend.
func (l *LazyIndex) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	idx, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Query(ctx, vector, k)
}

// Ping connects if needed and pings the backend when it supports it.
func (l *LazyIndex) Ping(ctx context.Context) error {
	idx, err := l.get(ctx)
	if err != nil {
		return err
	}
	if p, ok := idx.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes the backend if it was opened. Later calls fail.
func (l *LazyIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.connected {
		l.connected = false
		return l.index.Close()
	}
	return nil
}

// Package logbuf provides an in-memory broadcast buffer of process log
// lines. Lines are addressed by a monotonically increasing logical offset;
// multiple readers can attach concurrently and each receive every retained
// line in append order.
package logbuf

import (
	"errors"
	"sync"
)

// DefaultRetention is the number of lines retained when no explicit cap is
// given. A few thousand lines covers a full training run comfortably while
// keeping a runaway process bounded in memory.
const DefaultRetention = 4000

var (
	// ErrTruncated is returned once by Reader.Next when the reader's offset
	// fell behind the retention window. The reader is repositioned to the
	// oldest retained line and subsequent calls continue normally.
	ErrTruncated = errors.New("log reader fell behind retention window")

	// ErrClosed is returned by Reader.Next after the reader has been closed.
	ErrClosed = errors.New("log reader closed")
)

// Buffer is an append-only, broadcastable buffer of log lines produced by
// one process. Appends stop permanently once the Buffer is frozen. Safe for
// concurrent use.
type Buffer struct {
	mu   sync.Mutex
	cond sync.Cond

	// lines holds the retained window; start is the logical offset of
	// lines[0]. Offsets are never reused after eviction, so a reader can
	// detect the gap when it falls behind.
	lines  []string
	start  int
	frozen bool

	retention int
}

// New creates an empty Buffer retaining at most retention lines. A
// non-positive retention selects DefaultRetention.
func New(retention int) *Buffer {
	if retention <= 0 {
		retention = DefaultRetention
	}

	b := &Buffer{retention: retention}
	b.cond.L = &b.mu

	return b
}

// Append adds a line and wakes all blocked readers. Appends to a frozen
// Buffer are dropped silently; the draining goroutine may race the freeze by
// a line and there is nobody left to deliver to.
func (b *Buffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return
	}

	b.lines = append(b.lines, line)

	// Evict in chunks rather than one line per append so the copy cost is
	// amortised. The slack of a quarter window keeps Append effectively
	// constant-time.
	if len(b.lines) > b.retention+b.retention/4 {
		drop := len(b.lines) - b.retention
		kept := make([]string, b.retention)
		copy(kept, b.lines[drop:])
		b.lines = kept
		b.start += drop
	}

	b.cond.Broadcast()
}

// Freeze permanently closes the Buffer for writes. Pending and future reads
// drain the retained window and then observe end-of-stream. Idempotent.
func (b *Buffer) Freeze() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return
	}

	b.frozen = true
	b.cond.Broadcast()
}

// Frozen reports whether the Buffer has been frozen.
func (b *Buffer) Frozen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.frozen
}

// Len returns the total number of lines ever appended, including lines
// already evicted from the retention window.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.start + len(b.lines)
}

// NewReader attaches a reader to the Buffer. With fromTail false the reader
// starts at the oldest retained line and replays history; with fromTail true
// it starts at the current end and only observes lines appended afterwards.
func (b *Buffer) NewReader(fromTail bool) *Reader {
	b.mu.Lock()
	defer b.mu.Unlock()

	offset := b.start
	if fromTail {
		offset = b.start + len(b.lines)
	}

	return &Reader{b: b, offset: offset}
}

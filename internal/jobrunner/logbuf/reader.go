package logbuf

import "io"

// Reader consumes lines from a Buffer, tracking its own position in the
// logical offset sequence. Readers never mutate the Buffer and are
// independent of each other; closing one has no effect on the rest.
type Reader struct {
	b *Buffer

	// offset and closed are guarded by b.mu.
	offset int
	closed bool
}

// Next blocks until lines past the reader's offset are available, then
// returns them in append order. It returns io.EOF once the Buffer is frozen
// and fully drained, ErrClosed after Close, and ErrTruncated (once, with the
// reader repositioned to the oldest retained line) when the reader fell
// behind the retention window.
func (r *Reader) Next() ([]string, error) {
	b := r.b

	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if r.closed {
			return nil, ErrClosed
		}

		if r.offset < b.start {
			r.offset = b.start
			return nil, ErrTruncated
		}

		if idx := r.offset - b.start; idx < len(b.lines) {
			batch := make([]string, len(b.lines)-idx)
			copy(batch, b.lines[idx:])

			r.offset += len(batch)

			return batch, nil
		}

		if b.frozen {
			return nil, io.EOF
		}

		b.cond.Wait()
	}
}

// Offset returns the logical offset of the next line the reader will see.
func (r *Reader) Offset() int {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()

	return r.offset
}

// Close detaches the reader and unblocks any in-flight Next call. Safe to
// call from a goroutine other than the one calling Next; that is how stream
// cancellation is delivered.
func (r *Reader) Close() error {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()

	r.closed = true
	r.b.cond.Broadcast()

	return nil
}

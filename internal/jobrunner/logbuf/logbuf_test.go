package logbuf_test

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nixpig/botpanel/internal/jobrunner/logbuf"
)

// collect drains a reader until end-of-stream.
func collect(t *testing.T, r *logbuf.Reader) []string {
	t.Helper()

	var got []string

	for {
		lines, err := r.Next()
		if err != nil {
			if err == io.EOF {
				return got
			}

			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		got = append(got, lines...)
	}
}

func numberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}

	return lines
}

func TestBufferBroadcast(t *testing.T) {
	t.Parallel()

	scenarios := map[string]struct {
		lines      []string
		readers    int
		attachLate bool
	}{
		"Single reader": {
			lines:   []string{"Epoch 1", "Epoch 2"},
			readers: 1,
		},
		"Multiple readers": {
			lines:   numberedLines(50),
			readers: 5,
		},
		"Reader attaching after freeze": {
			lines:      numberedLines(50),
			readers:    3,
			attachLate: true,
		},
		"No lines": {
			lines:   nil,
			readers: 1,
		},
	}

	for scenario, config := range scenarios {
		t.Run(scenario, func(t *testing.T) {
			t.Parallel()

			b := logbuf.New(0)

			var readers []*logbuf.Reader

			if !config.attachLate {
				for range config.readers {
					readers = append(readers, b.NewReader(false))
				}
			}

			var wg sync.WaitGroup

			results := make([][]string, config.readers)

			if !config.attachLate {
				for i, r := range readers {
					wg.Go(func() {
						results[i] = collect(t, r)
					})
				}
			}

			for _, line := range config.lines {
				b.Append(line)
			}

			b.Freeze()

			if config.attachLate {
				for i := range config.readers {
					r := b.NewReader(false)
					results[i] = collect(t, r)
				}
			}

			wg.Wait()

			for i, got := range results {
				if strings.Join(got, "\n") != strings.Join(config.lines, "\n") {
					t.Errorf(
						"expected reader %d to see all lines in order: got %d lines, want %d",
						i,
						len(got),
						len(config.lines),
					)
				}
			}
		})
	}
}

func TestBufferReplayAfterFreeze(t *testing.T) {
	t.Parallel()

	b := logbuf.New(0)

	b.Append("Epoch 1")
	b.Append("Epoch 2")
	b.Freeze()

	first := collect(t, b.NewReader(false))
	second := collect(t, b.NewReader(false))

	if strings.Join(first, "\n") != strings.Join(second, "\n") {
		t.Errorf(
			"expected repeated attaches to replay identically: got '%v' and '%v'",
			first,
			second,
		)
	}
}

func TestBufferTailReader(t *testing.T) {
	t.Parallel()

	b := logbuf.New(0)

	b.Append("history 1")
	b.Append("history 2")

	r := b.NewReader(true)

	b.Append("live 1")
	b.Append("live 2")
	b.Freeze()

	got := collect(t, r)

	want := []string{"live 1", "live 2"}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("expected tail reader to see live lines only: got '%v'", got)
	}
}

func TestBufferRetention(t *testing.T) {
	t.Parallel()

	const retention = 8

	b := logbuf.New(retention)
	r := b.NewReader(false)

	lines := numberedLines(100)
	for _, line := range lines {
		b.Append(line)
	}

	b.Freeze()

	if _, err := r.Next(); !errors.Is(err, logbuf.ErrTruncated) {
		t.Fatalf("expected truncated error for reader that fell behind: got '%v'", err)
	}

	got := collect(t, r)

	if len(got) == 0 || len(got) >= len(lines) {
		t.Fatalf("expected a strict suffix of lines after truncation: got %d lines", len(got))
	}

	want := lines[len(lines)-len(got):]
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("expected the retained suffix in order: got '%v', want '%v'", got, want)
	}

	if b.Len() != len(lines) {
		t.Errorf("expected logical length to count evicted lines: got %d, want %d", b.Len(), len(lines))
	}
}

func TestBufferAppendAfterFreeze(t *testing.T) {
	t.Parallel()

	b := logbuf.New(0)

	b.Append("before")
	b.Freeze()
	b.Append("after")

	if b.Len() != 1 {
		t.Errorf("expected appends after freeze to be dropped: got length %d", b.Len())
	}

	got := collect(t, b.NewReader(false))
	if len(got) != 1 || got[0] != "before" {
		t.Errorf("expected only lines appended before freeze: got '%v'", got)
	}
}

func TestReaderClose(t *testing.T) {
	t.Parallel()

	b := logbuf.New(0)
	r := b.NewReader(false)

	errCh := make(chan error, 1)

	go func() {
		_, err := r.Next()
		errCh <- err
	}()

	// Give the reader a moment to block on the empty buffer.
	time.Sleep(50 * time.Millisecond)

	r.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, logbuf.ErrClosed) {
			t.Errorf("expected ErrClosed from closed reader: got '%v'", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected Close to unblock the pending read")
	}

	// Other readers are unaffected.
	b.Append("still flowing")
	b.Freeze()

	got := collect(t, b.NewReader(false))
	if len(got) != 1 {
		t.Errorf("expected remaining readers to keep working: got '%v'", got)
	}
}

// Package relay drains a feed of generated text fragments into an outbound
// byte stream.
//
// A Feed is pulled one fragment at a time and every non-empty fragment is
// written to the Sink in arrival order. The sink is closed exactly once on
// every exit path: normal end of the feed, feed failure, sink failure,
// cancellation of the context, or a panic unwinding through Relay.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Fragment is one incremental piece of generated text.
type Fragment string

// Feed is a single-consumer source of fragments.
//
// Next blocks until the next fragment is available. It returns io.EOF once
// the generation has ended normally and any other error on failure.
// Close releases the upstream connection; it may be called at any time.
type Feed interface {
	Next(ctx context.Context) (Fragment, error)
	Close() error
}

// Sink is the outbound byte stream. CloseWithError(nil) ends the stream
// normally; a non-nil error marks the stream as abnormally terminated.
// *io.PipeWriter satisfies Sink.
type Sink interface {
	Write(p []byte) (int, error)
	CloseWithError(err error) error
}

// State is the lifecycle state of one relay invocation.
type State int

const (
	StateIdle State = iota
	StateDraining
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Operations reported by Error.
const (
	OpRecv   = "recv"
	OpSend   = "send"
	OpCancel = "cancel"
)

// ErrAborted is passed to the sink when Relay unwinds without reaching a
// terminal result, e.g. because the feed panicked.
var ErrAborted = errors.New("relay: aborted")

// Error reports a failure that ended a relay before the feed was exhausted.
type Error struct {
	Op        string
	Fragments int
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("relay %s after %d fragments: %v", e.Op, e.Fragments, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Summary describes the outcome of a relay invocation.
type Summary struct {
	State     State
	Fragments int
	Bytes     int64
	// FirstByte is the time from the start of the relay to the first
	// successful write, zero when nothing was written.
	FirstByte time.Duration
}

// Relay drains feed into sink until the feed ends, fails, or ctx is done.
//
// Both the feed and the sink are closed before Relay returns. The returned
// error is nil when the feed ended normally and an *Error otherwise.
func Relay(ctx context.Context, feed Feed, sink Sink) (sum Summary, err error) {
	start := time.Now()
	sum.State = StateDraining
	completed := false

	defer func() {
		cause := err
		if cause == nil && !completed {
			cause = ErrAborted
		}
		_ = feed.Close()
		if cerr := sink.CloseWithError(cause); cerr != nil && err == nil && completed {
			err = &Error{Op: OpSend, Fragments: sum.Fragments, Err: cerr}
		}
		if completed && err == nil {
			sum.State = StateCompleted
		} else {
			sum.State = StateFailed
		}
	}()

	for {
		if cerr := ctx.Err(); cerr != nil {
			return sum, &Error{Op: OpCancel, Fragments: sum.Fragments, Err: cerr}
		}

		frag, nerr := feed.Next(ctx)
		if errors.Is(nerr, io.EOF) {
			completed = true
			return sum, nil
		}
		if nerr != nil {
			op := OpRecv
			if ctx.Err() != nil {
				op = OpCancel
			}
			return sum, &Error{Op: op, Fragments: sum.Fragments, Err: nerr}
		}
		if frag == "" {
			continue
		}

		n, werr := sink.Write([]byte(frag))
		sum.Bytes += int64(n)
		if werr != nil {
			return sum, &Error{Op: OpSend, Fragments: sum.Fragments, Err: werr}
		}
		if sum.Fragments == 0 {
			sum.FirstByte = time.Since(start)
		}
		sum.Fragments++
	}
}

package relay

import (
	"context"
	"io"
	"sync"
)

// Event is one item delivered on a ChanFeed channel.
type Event struct {
	Fragment Fragment
	Err      error
}

// ChanFeed adapts a channel of events into a Feed. The producer closes the
// channel to signal the end of generation.
type ChanFeed struct {
	events <-chan Event
	cancel context.CancelFunc
	once   sync.Once
}

// NewChanFeed wraps events. cancel, if non-nil, is called on Close to stop
// the producer.
func NewChanFeed(events <-chan Event, cancel context.CancelFunc) *ChanFeed {
	return &ChanFeed{events: events, cancel: cancel}
}

// Next returns the next fragment, io.EOF once the channel is closed, or the
// error carried by the event.
func (f *ChanFeed) Next(ctx context.Context) (Fragment, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case ev, ok := <-f.events:
		if !ok {
			return "", io.EOF
		}
		if ev.Err != nil {
			return "", ev.Err
		}
		return ev.Fragment, nil
	}
}

// Close cancels the producer. It is safe to call more than once.
func (f *ChanFeed) Close() error {
	f.once.Do(func() {
		if f.cancel != nil {
			f.cancel()
		}
	})
	return nil
}

// SliceFeed returns a Feed yielding frags in order and then io.EOF.
func SliceFeed(frags ...Fragment) Feed {
	ch := make(chan Event, len(frags))
	for _, f := range frags {
		ch <- Event{Fragment: f}
	}
	close(ch)
	return NewChanFeed(ch, nil)
}

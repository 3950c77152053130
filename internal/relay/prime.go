package relay

import (
	"context"
	"errors"
	"io"
)

// Prime pulls from feed until it yields a non-empty fragment, ends, or fails.
//
// Upstream failures that happen before any text is produced are returned as
// an error, with the feed already closed, so the caller can still answer
// with a regular error response. On success the returned Feed replays the
// pulled fragment before continuing with the rest of feed.
func Prime(ctx context.Context, feed Feed) (Feed, error) {
	for {
		frag, err := feed.Next(ctx)
		if errors.Is(err, io.EOF) {
			return &primedFeed{Feed: feed, eof: true}, nil
		}
		if err != nil {
			_ = feed.Close()
			return nil, err
		}
		if frag != "" {
			return &primedFeed{Feed: feed, head: frag, pending: true}, nil
		}
	}
}

type primedFeed struct {
	Feed
	head    Fragment
	pending bool
	eof     bool
}

func (f *primedFeed) Next(ctx context.Context) (Fragment, error) {
	if f.pending {
		f.pending = false
		return f.head, nil
	}
	if f.eof {
		return "", io.EOF
	}
	return f.Feed.Next(ctx)
}

package relay

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type step struct {
	frag Fragment
	err  error
}

// scriptedFeed replays steps and then returns io.EOF.
type scriptedFeed struct {
	steps   []step
	calls   int
	closed  int
	panicAt int
}

func (f *scriptedFeed) Next(ctx context.Context) (Fragment, error) {
	f.calls++
	if f.panicAt > 0 && f.calls == f.panicAt {
		panic("feed exploded")
	}
	if f.calls > len(f.steps) {
		return "", io.EOF
	}
	s := f.steps[f.calls-1]
	return s.frag, s.err
}

func (f *scriptedFeed) Close() error {
	f.closed++
	return nil
}

// recordingSink records writes and closes in call order.
type recordingSink struct {
	writes      []string
	log         []string
	closed      int
	closeErr    error
	afterClose  int
	failWriteAt int
	onWrite     func(n int)
}

func (s *recordingSink) Write(p []byte) (int, error) {
	if s.closed > 0 {
		s.afterClose++
	}
	s.writes = append(s.writes, string(p))
	s.log = append(s.log, "write")
	if s.failWriteAt > 0 && len(s.writes) == s.failWriteAt {
		return 0, errors.New("client went away")
	}
	if s.onWrite != nil {
		s.onWrite(len(s.writes))
	}
	return len(p), nil
}

func (s *recordingSink) CloseWithError(err error) error {
	s.closed++
	s.closeErr = err
	s.log = append(s.log, "close")
	return nil
}

func frags(ss ...string) []step {
	out := make([]step, len(ss))
	for i, s := range ss {
		out[i] = step{frag: Fragment(s)}
	}
	return out
}

func TestRelay_ConcatenationMatchesFeedOrder(t *testing.T) {
	cases := []struct {
		name  string
		input []string
	}{
		{name: "single", input: []string{"hello"}},
		{name: "many", input: []string{"Dr. ", "Smith ", "explains ", "recursion ", "clearly."}},
		{name: "unicode", input: []string{"Prof. Müller ", "是", " ⭐⭐⭐⭐"}},
		{name: "with empties", input: []string{"", "a", "", "", "b", ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			feed := &scriptedFeed{steps: frags(tc.input...)}
			sink := &recordingSink{}
			sum, err := Relay(context.Background(), feed, sink)
			if err != nil {
				t.Fatalf("Relay: %v", err)
			}
			want := strings.Join(tc.input, "")
			if got := strings.Join(sink.writes, ""); got != want {
				t.Fatalf("got %q, want %q", got, want)
			}
			if sum.Bytes != int64(len(want)) {
				t.Fatalf("bytes = %d, want %d", sum.Bytes, len(want))
			}
			if sum.State != StateCompleted {
				t.Fatalf("state = %v", sum.State)
			}
			if sink.closed != 1 || sink.closeErr != nil {
				t.Fatalf("closed=%d closeErr=%v", sink.closed, sink.closeErr)
			}
			if feed.closed != 1 {
				t.Fatalf("feed closed %d times", feed.closed)
			}
		})
	}
}

func TestRelay_SkipsEmptyFragment(t *testing.T) {
	feed := &scriptedFeed{steps: frags("Prof. A teaches", " well.", "")}
	sink := &recordingSink{}

	sum, err := Relay(context.Background(), feed, sink)
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if len(sink.writes) != 2 || sink.writes[0] != "Prof. A teaches" || sink.writes[1] != " well." {
		t.Fatalf("unexpected writes: %q", sink.writes)
	}
	if got := strings.Join(sink.log, ","); got != "write,write,close" {
		t.Fatalf("call order = %s", got)
	}
	if sum.Fragments != 2 {
		t.Fatalf("fragments = %d", sum.Fragments)
	}
	// Three fragments plus the EOF pull.
	if feed.calls != 4 {
		t.Fatalf("feed pulled %d times", feed.calls)
	}
}

func TestRelay_FeedFailure(t *testing.T) {
	cause := errors.New("upstream disconnected")
	feed := &scriptedFeed{steps: []step{{frag: "partial"}, {err: cause}, {frag: "never"}}}
	sink := &recordingSink{}

	sum, err := Relay(context.Background(), feed, sink)
	if err == nil {
		t.Fatal("expected error")
	}
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("error type %T", err)
	}
	if rerr.Op != OpRecv || rerr.Fragments != 1 {
		t.Fatalf("unexpected relay error: %+v", rerr)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost: %v", err)
	}
	if sum.State != StateFailed {
		t.Fatalf("state = %v", sum.State)
	}
	if got := strings.Join(sink.log, ","); got != "write,close" {
		t.Fatalf("call order = %s", got)
	}
	if !errors.Is(sink.closeErr, cause) {
		t.Fatalf("sink closed with %v", sink.closeErr)
	}
	if feed.calls != 2 {
		t.Fatalf("feed pulled %d times after failure", feed.calls)
	}
}

func TestRelay_EmptyFeed(t *testing.T) {
	feed := &scriptedFeed{}
	sink := &recordingSink{}

	sum, err := Relay(context.Background(), feed, sink)
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if len(sink.writes) != 0 {
		t.Fatalf("unexpected writes: %q", sink.writes)
	}
	if sink.closed != 1 || sink.closeErr != nil {
		t.Fatalf("closed=%d err=%v", sink.closed, sink.closeErr)
	}
	if sum.State != StateCompleted || sum.FirstByte != 0 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRelay_CancelAfterFirstWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := &scriptedFeed{steps: frags("one", "two", "three")}
	sink := &recordingSink{onWrite: func(n int) {
		if n == 1 {
			cancel()
		}
	}}

	sum, err := Relay(ctx, feed, sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Op != OpCancel {
		t.Fatalf("unexpected error: %v", err)
	}
	if feed.calls != 1 {
		t.Fatalf("feed pulled %d times after cancel", feed.calls)
	}
	if sink.closed != 1 || sink.afterClose != 0 {
		t.Fatalf("closed=%d writesAfterClose=%d", sink.closed, sink.afterClose)
	}
	if sum.State != StateFailed || sum.Fragments != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRelay_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	feed := &scriptedFeed{steps: frags("x")}
	sink := &recordingSink{}
	if _, err := Relay(ctx, feed, sink); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if feed.calls != 0 {
		t.Fatalf("feed pulled %d times", feed.calls)
	}
	if sink.closed != 1 || feed.closed != 1 {
		t.Fatalf("sink closed %d, feed closed %d", sink.closed, feed.closed)
	}
}

func TestRelay_SinkWriteFailure(t *testing.T) {
	feed := &scriptedFeed{steps: frags("a", "b", "c")}
	sink := &recordingSink{failWriteAt: 2}

	_, err := Relay(context.Background(), feed, sink)
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Op != OpSend {
		t.Fatalf("err = %v", err)
	}
	if feed.calls != 2 {
		t.Fatalf("feed pulled %d times", feed.calls)
	}
	if sink.closed != 1 || sink.afterClose != 0 {
		t.Fatalf("closed=%d afterClose=%d", sink.closed, sink.afterClose)
	}
}

func TestRelay_ClosesOnPanic(t *testing.T) {
	feed := &scriptedFeed{steps: frags("a", "b"), panicAt: 2}
	sink := &recordingSink{}

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_, _ = Relay(context.Background(), feed, sink)
	}()

	if sink.closed != 1 {
		t.Fatalf("sink closed %d times", sink.closed)
	}
	if !errors.Is(sink.closeErr, ErrAborted) {
		t.Fatalf("sink closed with %v", sink.closeErr)
	}
	if feed.closed != 1 {
		t.Fatalf("feed closed %d times", feed.closed)
	}
}

func TestRelay_IntoPipe(t *testing.T) {
	pr, pw := io.Pipe()
	done := make(chan string, 1)
	go func() {
		b, _ := io.ReadAll(pr)
		done <- string(b)
	}()

	if _, err := Relay(context.Background(), SliceFeed("Top ", "pick: ", "Dr. Lee"), pw); err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if got := <-done; got != "Top pick: Dr. Lee" {
		t.Fatalf("got %q", got)
	}
}

func TestRelay_IntoPipeFailure(t *testing.T) {
	cause := errors.New("malformed chunk")
	ch := make(chan Event, 2)
	ch <- Event{Fragment: "start"}
	ch <- Event{Err: cause}
	close(ch)

	pr, pw := io.Pipe()
	type result struct {
		body string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		b, err := io.ReadAll(pr)
		done <- result{string(b), err}
	}()

	if _, err := Relay(context.Background(), NewChanFeed(ch, nil), pw); !errors.Is(err, cause) {
		t.Fatalf("err = %v", err)
	}
	res := <-done
	if res.body != "start" {
		t.Fatalf("body = %q", res.body)
	}
	if !errors.Is(res.err, cause) {
		t.Fatalf("reader err = %v", res.err)
	}
}

func TestChanFeed_CloseCancelsProducer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan Event)
	feed := NewChanFeed(ch, cancel)

	if err := feed.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_ = feed.Close()
	if ctx.Err() == nil {
		t.Fatal("producer context not cancelled")
	}
}

func TestChanFeed_NextHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	feed := NewChanFeed(make(chan Event), nil)
	if _, err := feed.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		StateIdle:      "idle",
		StateDraining:  "draining",
		StateCompleted: "completed",
		StateFailed:    "failed",
		State(9):       "state(9)",
	} {
		if got := s.String(); got != want {
			t.Fatalf("%d: got %q want %q", int(s), got, want)
		}
	}
}

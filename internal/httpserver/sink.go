package httpserver

import (
	"errors"
	"net/http"
)

var errSinkClosed = errors.New("response stream already closed")

// responseSink writes relayed bytes to an HTTP response, flushing after every
// write so each fragment reaches the client as its own chunk.
type responseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
	err     error
}

func newResponseSink(w http.ResponseWriter) *responseSink {
	f, _ := w.(http.Flusher)
	return &responseSink{w: w, flusher: f}
}

func (s *responseSink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, errSinkClosed
	}
	n, err := s.w.Write(p)
	if err != nil {
		return n, err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return n, nil
}

// CloseWithError marks the stream finished. A non-nil err is recorded so the
// handler can abort the connection instead of ending the body cleanly.
func (s *responseSink) CloseWithError(err error) error {
	if s.closed {
		return errSinkClosed
	}
	s.closed = true
	s.err = err
	if err == nil && s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Aborted reports whether the stream was closed abnormally.
func (s *responseSink) Aborted() bool {
	return s.closed && s.err != nil
}

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"profrag/internal/domain"
	"profrag/internal/relay"
	"profrag/internal/service"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	reqStart := time.Now()
	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}
	logger := s.logger.With("request_id", middleware.GetReqID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	conversation, err := decodeConversation(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("%w: body exceeds %d bytes", service.ErrProtocol, tooLarge.Limit))
			return
		}
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("%w: decode body: %v", service.ErrProtocol, err))
		return
	}

	feed, err := s.service.Answer(ctx, conversation)
	if err != nil {
		logger.WarnContext(ctx, "chat request rejected", "error", err)
		s.respondError(w, statusFor(err), err)
		return
	}
	feed, err = relay.Prime(ctx, feed)
	if err != nil {
		logger.WarnContext(ctx, "generation failed before first token", "error", err)
		s.respondError(w, statusFor(fmt.Errorf("%w: %w", service.ErrGeneration, err)), err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sink := newResponseSink(w)
	sum, err := relay.Relay(ctx, feed, sink)
	attrs := []any{
		"state", sum.State.String(),
		"fragments", sum.Fragments,
		"bytes", sum.Bytes,
		"ttfb_ms", sum.FirstByte.Milliseconds(),
		"total_ms", time.Since(reqStart).Milliseconds(),
	}
	if err != nil {
		logger.Log(ctx, levelFor(err), "chat stream terminated", append(attrs, "error", err)...)
	} else {
		logger.InfoContext(ctx, "chat stream completed", attrs...)
	}
	if sink.Aborted() {
		// Headers are already sent; dropping the connection without the
		// terminating chunk is the only way to tell the client the body is
		// incomplete.
		panic(http.ErrAbortHandler)
	}
}

// decodeConversation reads exactly one JSON array of turns. Anything but
// whitespace after it is rejected.
func decodeConversation(body io.Reader) ([]domain.Message, error) {
	dec := json.NewDecoder(body)
	var conversation []domain.Message
	if err := dec.Decode(&conversation); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, errors.New("trailing data after conversation")
	}
	return conversation, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrProtocol):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, service.ErrUpstreamResolution), errors.Is(err, service.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func levelFor(err error) slog.Level {
	var rerr *relay.Error
	if errors.As(err, &rerr) && rerr.Op == relay.OpCancel {
		return slog.LevelInfo
	}
	return slog.LevelError
}

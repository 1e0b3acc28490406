package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"agenda/internal/agent"
	"agenda/internal/logger"
)

type chatRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
}

// responseSink streams answer fragments as a chunked text/plain body.
// Headers go out with the first fragment so that failures before any
// content can still be reported as JSON errors.
type responseSink struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newResponseSink(w http.ResponseWriter) *responseSink {
	return &responseSink{w: w, rc: http.NewResponseController(w)}
}

func (s *responseSink) start() {
	if s.started {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

func (s *responseSink) Emit(ctx context.Context, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.start()
	if _, err := io.WriteString(s.w, content); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("flush response: %w", err)
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	log := logger.FromContext(r.Context())

	if ok, retry := s.deps.Limiter.Allow(actor); !ok {
		seconds := int(math.Ceil(retry.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeJSON(w, http.StatusTooManyRequests, apiErrorResponse{
			Error:      apiError{Code: errorCodeRateLimited, Message: "rate limit reached, try again later"},
			RetryAfter: seconds,
		})
		return
	}

	var req chatRequest
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeInvalidRequest(w, validationMessage(err))
		return
	}

	sink := newResponseSink(w)
	_, err := s.deps.Chat.Reply(r.Context(), actor, req.ConversationID, sink)
	switch {
	case err == nil:
		sink.start()
	case errors.Is(err, agent.ErrAborted):
		log.Info("chat stream aborted by client", "conversation", req.ConversationID)
	case !sink.started:
		log.Error("chat failed", "conversation", req.ConversationID, "error", err)
		writeMappedError(w, err)
	default:
		// Part of the answer is already on the wire. Dropping the connection
		// is the only way left to signal failure.
		log.Error("chat failed mid-stream", "conversation", req.ConversationID, "error", err)
		panic(http.ErrAbortHandler)
	}
}

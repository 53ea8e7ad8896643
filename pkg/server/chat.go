package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"heliox-hq/charon/pkg/bridge"
	"heliox-hq/charon/pkg/events"
	"heliox-hq/charon/pkg/server/api"
	"heliox-hq/charon/pkg/translate"
	"heliox-hq/charon/pkg/wire"
)

// errClientGone marks a failed write to a disconnected client.
var errClientGone = errors.New("client disconnected")

// handleChatCompletions serves POST /v1/chat/completions, streaming and
// unary.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, api.NewInvalidRequestError(
			fmt.Sprintf("Method %s not allowed. Use POST instead.", r.Method),
			"method", "method_not_allowed"))
		return
	}

	req, errResp := s.parseChatRequest(r)
	if errResp != nil {
		writeError(w, errResp)
		return
	}

	// Unknown models fall back to the default rather than failing; the
	// catalog names upstream ids, and clients often send their own.
	model := req.Model
	if model == "" || !slices.Contains(s.config.Models.Catalog, model) {
		model = s.config.Models.Default
	}

	slog.InfoContext(r.Context(), "processing chat completion",
		"model", model,
		"messages", len(req.Messages),
		"stream", req.Stream,
	)

	if req.Stream {
		s.handleStreamCompletion(w, r, req, model)
		return
	}
	s.handleUnaryCompletion(w, r, req, model)
}

// handleStreamCompletion bridges one exchange and relays chunks as
// server-sent events. The response stays uncommitted until the first
// upstream event so credential and route failures still map to proper
// HTTP errors.
func (s *Server) handleStreamCompletion(w http.ResponseWriter, r *http.Request, req *api.ChatCompletionRequest, model string) {
	ctx := r.Context()
	startTime := time.Now()

	state := &bridge.State{}
	pkt := buildPacket(req, model, state.ConversationID, state.TaskID)
	tr := translate.New(model)
	started := false

	handler := func(ev *wire.Event) error {
		s.recordEvent(events.Classify(ev).String())

		if !started {
			setSSEHeaders(w)
			if err := writeSSEChunk(w, tr.Preamble()); err != nil {
				return errClientGone
			}
			started = true
		}
		for _, chunk := range tr.Feed(ev) {
			if err := writeSSEChunk(w, chunk); err != nil {
				return errClientGone
			}
		}
		return nil
	}

	err := s.deps.Bridge.Stream(ctx, pkt, state, handler)
	s.recordExchange(model, outcomeLabel(err), time.Since(startTime))

	switch {
	case err == nil:
		writeSSEDone(w)
	case errors.Is(err, errClientGone):
		slog.WarnContext(ctx, "client disconnected during streaming", "model", model)
		return
	default:
		var streamErr *bridge.StreamError
		if !started && !errors.As(err, &streamErr) {
			// Nothing committed yet; a plain HTTP error is kinder to
			// SDKs than a synthetic SSE stream.
			slog.ErrorContext(ctx, "exchange failed before first event", "model", model, "error", err)
			writeError(w, mapExchangeError(err))
			return
		}

		s.recordInterruption()
		slog.ErrorContext(ctx, "stream interrupted", "model", model, "error", err)
		if !started {
			setSSEHeaders(w)
			if writeSSEChunk(w, tr.Preamble()) != nil {
				return
			}
		}
		for _, chunk := range tr.Fail(err) {
			if writeSSEChunk(w, chunk) != nil {
				return
			}
		}
		writeSSEDone(w)
	}

	slog.DebugContext(ctx, "exchange finished",
		"conversation_id", state.ConversationID,
		"task_id", state.TaskID,
	)
}

// handleUnaryCompletion collects the full event stream and answers with
// one aggregated completion. Identical requests inside the dedup window
// are served from cache without touching the pool.
func (s *Server) handleUnaryCompletion(w http.ResponseWriter, r *http.Request, req *api.ChatCompletionRequest, model string) {
	ctx := r.Context()
	startTime := time.Now()

	var dedupKey string
	if s.dedup != nil {
		key, err := s.dedup.key(req)
		if err == nil {
			dedupKey = key
			if cached := s.dedup.get(key); cached != nil {
				slog.InfoContext(ctx, "serving duplicate request from cache", "model", model)
				writeJSON(w, http.StatusOK, cached)
				return
			}
		}
	}

	state := &bridge.State{}
	pkt := buildPacket(req, model, state.ConversationID, state.TaskID)

	evs, err := s.deps.Bridge.Collect(ctx, pkt, state)
	s.recordExchange(model, outcomeLabel(err), time.Since(startTime))
	for _, ev := range evs {
		s.recordEvent(events.Classify(ev).String())
	}

	if err != nil {
		var streamErr *bridge.StreamError
		if errors.As(err, &streamErr) && len(evs) > 0 {
			// Partial stream: aggregate what arrived rather than
			// discarding delivered output.
			s.recordInterruption()
			slog.WarnContext(ctx, "aggregating interrupted stream",
				"model", model,
				"events", len(evs),
				"error", err,
			)
		} else {
			slog.ErrorContext(ctx, "unary exchange failed", "model", model, "error", err)
			writeError(w, mapExchangeError(err))
			return
		}
	}

	completion := translate.Aggregate(evs, model)
	if s.dedup != nil && dedupKey != "" && err == nil {
		s.dedup.put(dedupKey, completion)
	}

	writeJSON(w, http.StatusOK, completion)
}

func (s *Server) recordExchange(model, outcome string, d time.Duration) {
	if s.deps.Collector != nil {
		s.deps.Collector.RecordExchange(model, outcome, d)
	}
}

func (s *Server) recordEvent(kind string) {
	if s.deps.Collector != nil {
		s.deps.Collector.RecordEvent(kind)
	}
}

func (s *Server) recordInterruption() {
	if s.deps.Collector != nil {
		s.deps.Collector.RecordInterruption()
	}
}

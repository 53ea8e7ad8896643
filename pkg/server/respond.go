package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"heliox-hq/charon/pkg/failover"
	"heliox-hq/charon/pkg/server/api"
	"heliox-hq/charon/pkg/telemetry/metrics"
	"heliox-hq/charon/pkg/wire"

	json "github.com/goccy/go-json"
)

// parseChatRequest reads and validates a chat completion request body,
// enforcing the configured size limit.
func (s *Server) parseChatRequest(r *http.Request) (*api.ChatCompletionRequest, *api.ErrorResponse) {
	limit := s.config.Server.MaxRequestBytes
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, api.NewInvalidRequestError(
			fmt.Sprintf("failed to read request body: %v", err), "body", api.CodeInvalidJSON)
	}
	if int64(len(body)) > limit {
		return nil, api.NewInvalidRequestError(
			fmt.Sprintf("request body exceeds maximum size of %d bytes", limit),
			"body", api.CodeRequestTooLarge)
	}

	var req api.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, api.NewInvalidRequestError(
			fmt.Sprintf("invalid JSON: %v", err), "body", api.CodeInvalidJSON)
	}
	if err := req.Validate(); err != nil {
		var valErr *api.ValidationError
		if errors.As(err, &valErr) {
			return nil, api.NewInvalidRequestError(valErr.Message, valErr.Field, api.CodeInvalidValue)
		}
		return nil, api.NewInvalidRequestError(err.Error(), "", api.CodeInvalidValue)
	}

	return &req, nil
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an OpenAI-format error with its mapped HTTP status.
func writeError(w http.ResponseWriter, resp *api.ErrorResponse) {
	writeJSON(w, resp.Error.HTTPStatusCode(), resp)
}

// mapExchangeError converts core errors into OpenAI error envelopes.
// Internal detail (credential emails, route labels) stays out of the
// client-facing message.
func mapExchangeError(err error) *api.ErrorResponse {
	var (
		noCreds   *failover.NoCredentialsError
		exhausted *failover.ExhaustedError
		noEvents  *failover.NoEventsError
		encErr    *wire.EncodeError
	)
	switch {
	case errors.As(err, &noCreds):
		return api.NewServiceUnavailableError(
			"No credentials available to serve the request.", api.CodeNoCredentials)
	case errors.As(err, &exhausted):
		return api.NewServiceUnavailableError(
			"All credentials and routes exhausted. Try again later.", api.CodePoolExhausted)
	case errors.As(err, &noEvents):
		return api.NewBadGatewayError(
			"Upstream accepted the request but sent no events.", api.CodeUpstreamNoEvents)
	case errors.As(err, &encErr):
		return api.NewServerError("Failed to encode the upstream request.")
	default:
		return api.NewBadGatewayError(
			"Upstream request failed.", api.CodeUpstreamError)
	}
}

// outcomeLabel maps an exchange result to a metrics outcome label.
func outcomeLabel(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var (
		noCreds   *failover.NoCredentialsError
		exhausted *failover.ExhaustedError
		noEvents  *failover.NoEventsError
	)
	switch {
	case errors.As(err, &noCreds):
		return metrics.OutcomeNoCredentials
	case errors.As(err, &exhausted):
		return metrics.OutcomeExhausted
	case errors.As(err, &noEvents):
		return metrics.OutcomeNoEvents
	default:
		return metrics.OutcomeError
	}
}

// setSSEHeaders prepares the response for server-sent events.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeSSEChunk writes one data frame and flushes it.
func writeSSEChunk(w http.ResponseWriter, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// writeSSEDone writes the stream terminator.
func writeSSEDone(w http.ResponseWriter) {
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

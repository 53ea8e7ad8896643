// Package upstream provides a mock agent endpoint for exercising the
// exchange path: scripted HTTP responses and binary-framed SSE streams.
package upstream

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"heliox-hq/charon/pkg/wire"
)

// Script defines one scripted response. Scripts are consumed in request
// order; the last script repeats once the queue is drained.
type Script struct {
	// StatusCode of the response. Zero means 200 with an event stream.
	StatusCode int

	// Body is the response body for non-200 scripts.
	Body string

	// Events are encoded into SSE frames, in order.
	Events []*wire.Event

	// RawFrames are pre-encoded payload strings streamed verbatim,
	// before any Events.
	RawFrames []string

	// Hex emits event frames hex-encoded instead of base64.
	Hex bool

	// FragmentAt splits each frame payload into data: lines of at most
	// this many bytes. Zero means one line per frame.
	FragmentAt int

	// Hang sleeps after the events, before the [DONE] marker, to
	// simulate a stalled stream.
	Hang time.Duration

	// OmitDone ends the stream without the [DONE] marker.
	OmitDone bool

	// Delay sleeps before responding at all.
	Delay time.Duration
}

// RecordedRequest captures what one request carried.
type RecordedRequest struct {
	Authorization string
	ContentType   string
	Accept        string
	Body          int // body length in bytes
}

// MockUpstream is a scripted agent endpoint for tests.
type MockUpstream struct {
	server   *httptest.Server
	mu       sync.Mutex
	scripts  []Script
	requests []RecordedRequest
}

// NewMockUpstream creates a mock endpoint serving the given scripts.
func NewMockUpstream(scripts ...Script) *MockUpstream {
	mu := &MockUpstream{scripts: scripts}
	mu.server = httptest.NewServer(http.HandlerFunc(mu.handler))
	return mu
}

// URL returns the endpoint URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts the endpoint down.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Append adds scripts to the end of the queue.
func (m *MockUpstream) Append(scripts ...Script) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, scripts...)
}

// Requests returns a copy of the recorded requests.
func (m *MockUpstream) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns how many requests were served.
func (m *MockUpstream) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockUpstream) pop(r *http.Request) Script {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, RecordedRequest{
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
		Accept:        r.Header.Get("Accept"),
		Body:          int(r.ContentLength),
	})

	if len(m.scripts) == 0 {
		return Script{StatusCode: http.StatusInternalServerError, Body: "no script"}
	}
	s := m.scripts[0]
	if len(m.scripts) > 1 {
		m.scripts = m.scripts[1:]
	}
	return s
}

func (m *MockUpstream) handler(w http.ResponseWriter, r *http.Request) {
	s := m.pop(r)

	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}

	if s.StatusCode != 0 && s.StatusCode != http.StatusOK {
		w.WriteHeader(s.StatusCode)
		fmt.Fprint(w, s.Body)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for _, payload := range s.RawFrames {
		writeFrame(w, payload, s.FragmentAt)
		flusher.Flush()
	}

	for _, ev := range s.Events {
		frame, err := wire.EncodeEvent(ev)
		if err != nil {
			// A bad fixture is a test bug; surface it in the stream.
			fmt.Fprintf(w, "data: !encode error: %v\n\n", err)
			flusher.Flush()
			continue
		}
		payload := wire.EncodePayload(frame)
		if s.Hex {
			payload = hex.EncodeToString(frame)
		}
		writeFrame(w, payload, s.FragmentAt)
		flusher.Flush()
	}

	if s.Hang > 0 {
		time.Sleep(s.Hang)
	}
	if !s.OmitDone {
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}
}

// writeFrame emits one frame payload as data: lines closed by a blank
// line, optionally fragmented across multiple data: lines.
func writeFrame(w http.ResponseWriter, payload string, fragmentAt int) {
	if fragmentAt <= 0 || fragmentAt >= len(payload) {
		fmt.Fprintf(w, "data: %s\n\n", payload)
		return
	}
	for len(payload) > 0 {
		n := fragmentAt
		if n > len(payload) {
			n = len(payload)
		}
		fmt.Fprintf(w, "data: %s\n", payload[:n])
		payload = payload[n:]
	}
	fmt.Fprint(w, "\n")
}

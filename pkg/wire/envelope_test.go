package wire

import (
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func TestServerMessageDataRoundTrip(t *testing.T) {
	created := time.Date(2025, 6, 14, 10, 30, 0, 0, time.UTC)
	in := &ServerMessageData{ID: "msg-abc-123", CreatedAt: created}

	encoded := EncodeServerMessageData(in)
	got, err := DecodeServerMessageData(encoded)
	if err != nil {
		t.Fatalf("DecodeServerMessageData() error = %v", err)
	}
	if got.ID != in.ID {
		t.Errorf("id = %q, want %q", got.ID, in.ID)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, created)
	}
}

func TestExpandEnvelopes(t *testing.T) {
	envelope := EncodeServerMessageData(&ServerMessageData{ID: "nested-id"})

	doc := `{
		"task": {
			"messages": [
				{"text": "hi", "server_message_data": "` + envelope + `"},
				{"text": "camel", "serverMessageData": "` + envelope + `"}
			]
		},
		"unrelated": "left alone"
	}`

	out, err := ExpandEnvelopes([]byte(doc))
	if err != nil {
		t.Fatalf("ExpandEnvelopes() error = %v", err)
	}

	parsed := gjson.ParseBytes(out)
	if got := parsed.Get("task.messages.0.server_message_data.id").String(); got != "nested-id" {
		t.Errorf("snake-case envelope id = %q, want %q", got, "nested-id")
	}
	if got := parsed.Get("task.messages.1.serverMessageData.id").String(); got != "nested-id" {
		t.Errorf("camel-case envelope id = %q, want %q", got, "nested-id")
	}
	if got := parsed.Get("unrelated").String(); got != "left alone" {
		t.Errorf("unrelated = %q", got)
	}
}

func TestExpandEnvelopesLeavesUndecodableValues(t *testing.T) {
	doc := `{"server_message_data": "!!not-an-envelope!!"}`
	out, err := ExpandEnvelopes([]byte(doc))
	if err != nil {
		t.Fatalf("ExpandEnvelopes() error = %v", err)
	}
	if !strings.Contains(string(out), "!!not-an-envelope!!") {
		t.Errorf("undecodable value was altered: %s", out)
	}
}

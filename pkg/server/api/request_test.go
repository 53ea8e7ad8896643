package api

import (
	"testing"

	json "github.com/goccy/go-json"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     ChatCompletionRequest
		wantErr bool
	}{
		{
			name: "valid",
			req: ChatCompletionRequest{
				Model:    "auto",
				Messages: []ChatMessage{{Role: "user", Content: "hi"}},
			},
		},
		{
			name:    "no messages",
			req:     ChatCompletionRequest{Model: "auto"},
			wantErr: true,
		},
		{
			name: "bad role",
			req: ChatCompletionRequest{
				Messages: []ChatMessage{{Role: "narrator", Content: "hi"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestContentTextString(t *testing.T) {
	m := ChatMessage{Role: "user", Content: "hello"}
	if got := m.ContentText(); got != "hello" {
		t.Errorf("ContentText() = %q", got)
	}
}

func TestContentTextParts(t *testing.T) {
	raw := `{"role":"user","content":[{"type":"text","text":"first"},{"type":"image_url","image_url":{"url":"x"}},{"type":"text","text":"second"}]}`

	var m ChatMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := m.ContentText(); got != "first\nsecond" {
		t.Errorf("ContentText() = %q", got)
	}
}

func TestContentTextNil(t *testing.T) {
	m := ChatMessage{Role: "assistant"}
	if got := m.ContentText(); got != "" {
		t.Errorf("ContentText() = %q", got)
	}
}

func TestErrorStatusCodes(t *testing.T) {
	tests := []struct {
		errType string
		want    int
	}{
		{ErrorTypeInvalidRequest, 400},
		{ErrorTypeAuthentication, 401},
		{ErrorTypeRateLimitExceeded, 429},
		{ErrorTypeBadGateway, 502},
		{ErrorTypeServiceUnavailable, 503},
		{"something_else", 500},
	}
	for _, tt := range tests {
		d := ErrorDetail{Type: tt.errType}
		if got := d.HTTPStatusCode(); got != tt.want {
			t.Errorf("HTTPStatusCode(%s) = %d, want %d", tt.errType, got, tt.want)
		}
	}
}

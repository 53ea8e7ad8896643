package logging

import (
	"context"
	"testing"
)

func TestContextRoundTrips(t *testing.T) {
	ctx := context.Background()

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithModel(ctx, "auto")
	ctx = WithLeaseID(ctx, "lease-9")
	ctx = WithConversationID(ctx, "conv-3")

	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID = %q", got)
	}
	if got := GetModel(ctx); got != "auto" {
		t.Errorf("GetModel = %q", got)
	}
	if got := GetLeaseID(ctx); got != "lease-9" {
		t.Errorf("GetLeaseID = %q", got)
	}
	if got := GetConversationID(ctx); got != "conv-3" {
		t.Errorf("GetConversationID = %q", got)
	}
}

func TestGettersOnEmptyContext(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetModel(ctx) != "" || GetLeaseID(ctx) != "" || GetConversationID(ctx) != "" {
		t.Error("getters on an empty context should return empty strings")
	}
}

func TestExtractContextFields(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithModel(ctx, "agent-planning")

	fields := extractContextFields(ctx)
	if len(fields) != 4 {
		t.Fatalf("fields = %v", fields)
	}
	if fields[0] != "request_id" || fields[1] != "req-1" {
		t.Errorf("request_id pair = %v %v", fields[0], fields[1])
	}
	if fields[2] != "model" || fields[3] != "agent-planning" {
		t.Errorf("model pair = %v %v", fields[2], fields[3])
	}
}

func TestExtractContextFieldsEmpty(t *testing.T) {
	if fields := extractContextFields(context.Background()); len(fields) != 0 {
		t.Errorf("expected no fields, got %v", fields)
	}
}

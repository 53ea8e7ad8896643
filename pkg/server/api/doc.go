// Package api defines the OpenAI-compatible request and error types for
// the gateway's HTTP surface.
//
// Request types match the OpenAI Chat Completions API so existing SDKs
// work unmodified. Error responses use the OpenAI error envelope for the
// same reason. Response and chunk types live in pkg/translate, which
// produces them directly from upstream events.
package api

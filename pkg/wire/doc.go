// Package wire implements the binary framing used by the upstream agent
// protocol. Request packets and response events are length-delimited
// protobuf-style messages; this package hand-maps the field layout with
// encoding/protowire rather than relying on generated code, because the
// schema is small, stable, and owned by the upstream service.
//
// The package also handles the transport-level payload encodings (hex and
// base64 variants) and the opaque server-message-data envelope that the
// upstream embeds in JSON documents.
package wire

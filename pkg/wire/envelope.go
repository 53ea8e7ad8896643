package wire

import (
	"encoding/base64"
	"time"

	json "github.com/goccy/go-json"
	"google.golang.org/protobuf/encoding/protowire"
)

// ServerMessageData is the opaque per-message envelope the upstream nests
// inside JSON documents under the key "server_message_data" (snake case)
// or "serverMessageData" (camel case), base64-encoded.
type ServerMessageData struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Envelope key spellings the upstream emits interchangeably.
var envelopeKeys = []string{"server_message_data", "serverMessageData"}

// EncodeServerMessageData renders an envelope as the base64 string the
// upstream expects echoed back.
func EncodeServerMessageData(d *ServerMessageData) string {
	var b []byte
	if d.ID != "" {
		b = appendString(b, fEnvelopeID, d.ID)
	}
	if !d.CreatedAt.IsZero() {
		var ts []byte
		ts = protowire.AppendTag(ts, fTimestampSeconds, protowire.VarintType)
		ts = protowire.AppendVarint(ts, uint64(d.CreatedAt.Unix()))
		if nanos := d.CreatedAt.Nanosecond(); nanos > 0 {
			ts = protowire.AppendTag(ts, fTimestampNanos, protowire.VarintType)
			ts = protowire.AppendVarint(ts, uint64(nanos))
		}
		b = appendMessage(b, fEnvelopeTimestamp, ts)
	}
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeServerMessageData parses a base64 envelope string.
func DecodeServerMessageData(s string) (*ServerMessageData, error) {
	raw, err := DecodePayload(s)
	if err != nil {
		return nil, err
	}

	d := &ServerMessageData{}
	var seconds, nanos int64

	err = walkFields(raw, func(num protowire.Number, payload []byte) error {
		switch num {
		case fEnvelopeID:
			d.ID = string(payload)
		case fEnvelopeTimestamp:
			return walkVarints(payload, func(tn protowire.Number, v uint64) {
				switch tn {
				case fTimestampSeconds:
					seconds = int64(v)
				case fTimestampNanos:
					nanos = int64(v)
				}
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if seconds > 0 || nanos > 0 {
		d.CreatedAt = time.Unix(seconds, nanos).UTC()
	}
	return d, nil
}

// ExpandEnvelopes walks a JSON document and replaces every base64
// server-message-data value, at any depth and under either key spelling,
// with its decoded object form. Values that fail to decode are left
// untouched; the document structure is otherwise preserved.
func ExpandEnvelopes(doc []byte) ([]byte, error) {
	var root any
	if err := json.Unmarshal(doc, &root); err != nil {
		return nil, &DecodeError{Offset: -1, Message: "invalid JSON document", Cause: err}
	}
	expandEnvelopeValue(&root)
	out, err := json.Marshal(root)
	if err != nil {
		return nil, &EncodeError{Message: "re-marshal after envelope expansion", Cause: err}
	}
	return out, nil
}

func expandEnvelopeValue(v *any) {
	switch node := (*v).(type) {
	case map[string]any:
		for key, child := range node {
			if isEnvelopeKey(key) {
				if s, ok := child.(string); ok {
					if decoded, err := DecodeServerMessageData(s); err == nil {
						node[key] = decoded
						continue
					}
				}
			}
			expandEnvelopeValue(&child)
			node[key] = child
		}
	case []any:
		for i := range node {
			expandEnvelopeValue(&node[i])
		}
	}
}

func isEnvelopeKey(key string) bool {
	for _, k := range envelopeKeys {
		if key == k {
			return true
		}
	}
	return false
}

func walkVarints(data []byte, fn func(num protowire.Number, v uint64)) error {
	offset := 0
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return &DecodeError{Offset: offset, Message: "malformed field tag", Cause: protowire.ParseError(n)}
		}
		data = data[n:]
		offset += n

		if typ == protowire.VarintType {
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return &DecodeError{Offset: offset, Message: "truncated varint", Cause: protowire.ParseError(m)}
			}
			fn(num, v)
			data = data[m:]
			offset += m
			continue
		}

		m := protowire.ConsumeFieldValue(num, typ, data)
		if m < 0 {
			return &DecodeError{Offset: offset, Message: "truncated field value", Cause: protowire.ParseError(m)}
		}
		data = data[m:]
		offset += m
	}
	return nil
}

package wire

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// DecodePayload converts one SSE data payload into frame bytes. The
// upstream is inconsistent about payload encoding, so detection is by
// shape: an even-length string of hex digits decodes as hex; anything
// else is tried as standard base64 and then URL-safe base64, tolerating
// missing padding in both. Surrounding whitespace is ignored.
func DecodePayload(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, &PayloadError{Length: 0, Message: "empty payload"}
	}

	if len(s)%2 == 0 && isHex(s) {
		b, err := hex.DecodeString(s)
		if err == nil {
			return b, nil
		}
	}

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}

	return nil, &PayloadError{Length: len(s), Message: "not hex or base64"}
}

// EncodePayload renders frame bytes in the encoding the upstream accepts
// for requests.
func EncodePayload(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

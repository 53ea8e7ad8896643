package logging

import (
	"regexp"
)

// Pattern names for the built-in redaction rules.
const (
	PatternBearerToken  = "bearer_token"
	PatternJWT          = "jwt"
	PatternRefreshToken = "refresh_token"
	PatternAPIKey       = "api_key"
	PatternEmail        = "email"
)

// rule pairs a compiled pattern with its replacement text.
type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Redactor masks credential material in log output. The gateway handles
// bearer tokens, refresh tokens, and account emails on every exchange;
// none of them belong in a log line.
type Redactor struct {
	rules map[string]rule
}

// NewRedactor creates a redactor with the built-in rules.
func NewRedactor() *Redactor {
	r := &Redactor{rules: make(map[string]rule)}
	r.addDefaultRules()
	return r
}

func (r *Redactor) addDefaultRules() {
	// Authorization header values.
	r.rules[PatternBearerToken] = rule{
		pattern:     regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`),
		replacement: "Bearer ***",
	}

	// Bare three-segment JWTs, as carried in access_token fields.
	r.rules[PatternJWT] = rule{
		pattern:     regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
		replacement: "***",
	}

	// refresh_token values in JSON bodies or key=value text.
	r.rules[PatternRefreshToken] = rule{
		pattern:     regexp.MustCompile(`(refresh_token["']?\s*[:=]\s*["']?)[a-zA-Z0-9\-._~+/]+=*`),
		replacement: "${1}***",
	}

	// api_key / apikey values.
	r.rules[PatternAPIKey] = rule{
		pattern:     regexp.MustCompile(`((?:api[_-]?key)["']?\s*[:=]\s*["']?)[a-zA-Z0-9\-._~+/]+=*`),
		replacement: "${1}***",
	}

	// Account emails. The local part is masked, the domain kept so
	// operators can still tell accounts apart by provider.
	r.rules[PatternEmail] = rule{
		pattern:     regexp.MustCompile(`[a-zA-Z0-9._%+-]+@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`),
		replacement: "***@${1}",
	}
}

// RedactString applies all rules to the given string.
func (r *Redactor) RedactString(s string) string {
	for _, ru := range r.rules {
		s = ru.pattern.ReplaceAllString(s, ru.replacement)
	}
	return s
}

// RedactArgs applies all rules to string values in a key/value argument
// list, leaving keys and non-string values untouched.
func (r *Redactor) RedactArgs(args ...any) []any {
	out := make([]any, len(args))
	copy(out, args)
	for i := 1; i < len(out); i += 2 {
		if s, ok := out[i].(string); ok {
			out[i] = r.RedactString(s)
		}
	}
	return out
}

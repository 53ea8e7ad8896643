// Package egress builds and rotates the outbound HTTP paths used to
// reach the upstream service. Each path is either a proxy (HTTP, HTTPS,
// or SOCKS5) or the direct route, and the retry layer walks paths in
// round-robin order when a transport-level failure points at the route
// rather than the credential.
package egress

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Route is one outbound path.
type Route struct {
	// Label identifies the route in logs ("direct" or the proxy host)
	Label string

	// Proxy is nil for the direct route
	Proxy *url.URL
}

// RouteError represents a proxy specification that could not be parsed.
type RouteError struct {
	// Spec is the rejected proxy string
	Spec string

	// Message describes the failure
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	return fmt.Sprintf("invalid proxy spec %q: %s", e.Spec, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *RouteError) Unwrap() error {
	return e.Cause
}

// Rotator hands out routes round-robin. It is safe for concurrent use.
type Rotator struct {
	mu      sync.Mutex
	routes  []Route
	next    int
	timeout time.Duration
	connect time.Duration
}

// Options configures a Rotator.
type Options struct {
	// Proxies are the configured proxy specs, normalized via Normalize
	Proxies []string

	// IncludeDirect appends the direct route after the proxies
	IncludeDirect bool

	// RequestTimeout bounds each outbound request end to end. Zero means
	// no client-level timeout (streaming responses manage their own).
	RequestTimeout time.Duration

	// ConnectTimeout bounds TLS/TCP setup. Zero defaults to 15s.
	ConnectTimeout time.Duration
}

// NewRotator parses the configured proxy specs into routes. With no
// proxies and IncludeDirect false, the rotator still carries the direct
// route so callers always get something to dial with.
func NewRotator(opts Options) (*Rotator, error) {
	connect := opts.ConnectTimeout
	if connect <= 0 {
		connect = 15 * time.Second
	}
	r := &Rotator{timeout: opts.RequestTimeout, connect: connect}

	for _, spec := range opts.Proxies {
		u, err := Normalize(spec)
		if err != nil {
			return nil, err
		}
		r.routes = append(r.routes, Route{Label: u.Host, Proxy: u})
	}
	if opts.IncludeDirect || len(r.routes) == 0 {
		r.routes = append(r.routes, Route{Label: "direct"})
	}
	return r, nil
}

// Normalize turns a proxy spec into a URL. Specs with an explicit scheme
// pass through; bare host:port and user:pass@host:port default to SOCKS5,
// matching how operators usually hand these around.
func Normalize(spec string) (*url.URL, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, &RouteError{Spec: spec, Message: "empty spec"}
	}

	if !strings.Contains(spec, "://") {
		spec = "socks5://" + spec
	}

	u, err := url.Parse(spec)
	if err != nil {
		return nil, &RouteError{Spec: spec, Message: "unparseable URL", Cause: err}
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, &RouteError{Spec: spec, Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &RouteError{Spec: spec, Message: "missing host"}
	}
	return u, nil
}

// Next returns the next route in rotation.
func (r *Rotator) Next() Route {
	r.mu.Lock()
	defer r.mu.Unlock()

	route := r.routes[r.next%len(r.routes)]
	r.next++
	return route
}

// Len returns the number of configured routes.
func (r *Rotator) Len() int {
	return len(r.routes)
}

// Client builds an HTTP client dialing through the given route. Clients
// are built per attempt so a poisoned connection pool never outlives the
// route that poisoned it.
func (r *Rotator) Client(route Route) *http.Client {
	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: r.connect}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: r.connect,
	}
	if route.Proxy != nil {
		proxy := route.Proxy
		transport.Proxy = func(*http.Request) (*url.URL, error) { return proxy, nil }
	}
	return &http.Client{
		Transport: transport,
		Timeout:   r.timeout,
	}
}

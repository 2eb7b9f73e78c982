package httpx

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Doer is the unified HTTP client abstraction used by the backend client.
// Two adapters exist: the net/http default and a fasthttp-backed one; both
// are selected via config so deployments can trade allocations for
// compatibility.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// New returns a Doer for the given transport kind: "std" or "" selects
// net/http, "fast" selects fasthttp.
func New(kind string, timeout time.Duration) (Doer, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "std", "net":
		return NewNetHTTPDoer(timeout), nil
	case "fast", "fasthttp":
		return NewFastHTTPDoer(timeout), nil
	default:
		return nil, fmt.Errorf("unknown http transport: %s", kind)
	}
}

// NewNetHTTPDoer returns the standard library client with the given
// per-request timeout.
func NewNetHTTPDoer(timeout time.Duration) Doer {
	return &http.Client{Timeout: timeout}
}

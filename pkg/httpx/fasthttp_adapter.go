package httpx

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
)

// fastDoer adapts a fasthttp.Client to the Doer interface so the backend
// client can swap transports without caring which one is underneath.
type fastDoer struct {
	c       *fasthttp.Client
	timeout time.Duration
}

// NewFastHTTPDoer returns a fasthttp-backed Doer with the given per-request
// timeout.
func NewFastHTTPDoer(timeout time.Duration) Doer {
	return &fastDoer{
		c: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		timeout: timeout,
	}
}

func (d *fastDoer) Do(req *http.Request) (*http.Response, error) {
	freq := fasthttp.AcquireRequest()
	fresp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(freq)
	defer fasthttp.ReleaseResponse(fresp)

	freq.Header.SetMethod(req.Method)
	freq.SetRequestURI(req.URL.String())
	for k, vals := range req.Header {
		for _, v := range vals {
			freq.Header.Add(k, v)
		}
	}
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		freq.SetBody(b)
	}

	// honor the request context deadline when present, else fall back to
	// the client timeout
	deadline := time.Now().Add(d.timeout)
	if dl, ok := req.Context().Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := d.c.DoDeadline(freq, fresp, deadline); err != nil {
		return nil, err
	}

	hdr := make(http.Header)
	fresp.Header.VisitAll(func(k, v []byte) {
		hdr.Add(string(k), string(v))
	})
	body := append([]byte(nil), fresp.Body()...)
	return &http.Response{
		StatusCode:    fresp.StatusCode(),
		Status:        http.StatusText(fresp.StatusCode()),
		Header:        hdr,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

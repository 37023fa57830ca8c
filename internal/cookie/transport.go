package cookie

import (
	"net/http"
)

// Transport is an http.RoundTripper that applies the jar to outbound
// requests and records cookies from inbound responses.
type Transport struct {
	Jar  *Jar
	Base http.RoundTripper
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(jar *Jar, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Jar: jar, Base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	t.Jar.Apply(out)

	resp, err := t.Base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	t.Jar.Store(resp)
	return resp, nil
}

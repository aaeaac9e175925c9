package forge

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

type options struct {
	verbose bool
	// writer controls where verbose HTTP logs are written (typically stderr) so
	// the verdict on stdout stays clean and tests can capture logs.
	writer    io.Writer
	label     string
	insecure  bool
	timeout   time.Duration
	transport http.RoundTripper
}

type Option func(*options)

func WithVerbose(enabled bool, writer io.Writer) Option {
	return func(o *options) {
		o.verbose = enabled
		o.writer = writer
	}
}

// WithInsecureSkipVerify disables TLS certificate verification. It has no
// effect when WithTransport supplies the base transport.
func WithInsecureSkipVerify(skip bool) Option {
	return func(o *options) {
		o.insecure = skip
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithTransport replaces the base transport. Tests use it to observe or stub
// the network.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

func withLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// loggingRoundTripper wraps an underlying transport and emits one line per
// request and response (including latency) when verbose logging is enabled.
type loggingRoundTripper struct {
	base  http.RoundTripper
	w     io.Writer
	label string
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	if t.w != nil {
		_, _ = fmt.Fprintf(t.w, "[verbose] %s api: %s %s\n", t.label, req.Method, req.URL.Redacted())
	}
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start)
	if t.w != nil {
		if err != nil {
			_, _ = fmt.Fprintf(t.w, "[verbose] %s api: error after %s: %v\n", t.label, dur.Truncate(time.Millisecond), err)
		} else {
			_, _ = fmt.Fprintf(t.w, "[verbose] %s api: %d %s (%s)\n", t.label, resp.StatusCode, http.StatusText(resp.StatusCode), dur.Truncate(time.Millisecond))
		}
	}
	return resp, err
}

// NewHTTPClient builds the client used for the single API call. The token is
// attached as a bearer Authorization header by the oauth2 transport; verbose
// logging prints method and URL only.
func NewHTTPClient(token string, opts ...Option) *http.Client {
	o := &options{label: "forge"}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	if o.verbose && o.writer == nil {
		o.writer = os.Stderr
	}

	transport := o.transport
	if transport == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		if o.insecure {
			if base.TLSClientConfig == nil {
				base.TLSClientConfig = &tls.Config{}
			}
			base.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec // operator opted in via IGNORE_SSL
		}
		transport = base
	}
	if o.verbose {
		transport = &loggingRoundTripper{base: transport, w: o.writer, label: o.label}
	}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}

	return &http.Client{Transport: transport, Timeout: o.timeout, CheckRedirect: sameHostRedirect}
}

// sameHostRedirect refuses redirects to another host. The oauth2 transport
// sets the token on every hop, so the usual header stripping does not apply.
func sameHostRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	if origin := via[0].URL; !strings.EqualFold(req.URL.Host, origin.Host) || req.URL.Scheme != origin.Scheme {
		return fmt.Errorf("refusing redirect from %s to %s", origin.Host, req.URL.Host)
	}
	return nil
}

package fetcher

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fixed request headers sent to every XTRA mirror.
const (
	AcceptHeader     = "*/*, application/vnd.wap.mms-message, application/vnd.wap.sic"
	WapProfileHeader = "http://www.openmobilealliance.org/tech/profiles/UAPROF/ccppschema-20021212#"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	// Timeout bounds a whole attempt, body read included. Default: 30s.
	// Zero (http.timeout_secs: 0 in config) also means 30s, so an attempt
	// without a time limit cannot be configured.
	Timeout time.Duration

	// UserAgent is sent when non-empty. The fixed headers are always sent.
	UserAgent string

	// Transport overrides the default per-attempt transport. Tests use it to
	// observe connections.
	Transport http.RoundTripper
}

// HTTPFetcher implements Fetcher with a single GET per call and no retries.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	transport := opts.Transport
	if transport == nil {
		// Every attempt opens and tears down its own connection.
		transport = &http.Transport{
			Proxy:              http.ProxyFromEnvironment,
			DisableKeepAlives:  true,
			DisableCompression: true,
		}
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts: opts,
	}
}

// Fetch downloads rawURL and returns the whole body on HTTP 200.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) Result {
	start := time.Now()
	res := f.fetch(ctx, rawURL)
	res.URL = rawURL
	res.Elapsed = time.Since(start)

	if !res.OK() {
		zap.L().Debug("xtra fetch failed",
			zap.String("url", rawURL),
			zap.Stringer("reason", res.Reason),
			zap.Int("status", res.StatusCode),
			zap.Error(res.Err),
		)
	}
	return res
}

func (f *HTTPFetcher) fetch(ctx context.Context, rawURL string) Result {
	if err := validateURL(rawURL); err != nil {
		return Result{Reason: ReasonBadAddress, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{Reason: ReasonBadAddress, Err: eris.Wrap(err, "create request")}
	}
	req.Header.Set("Accept", AcceptHeader)
	req.Header.Set("x-wap-profile", WapProfileHeader)
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{Reason: classify(ctx, err, ReasonTransport), Err: eris.Wrap(err, "xtra request")}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return Result{
			StatusCode: resp.StatusCode,
			Reason:     ReasonStatus,
			Err:        eris.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Reason:     classify(ctx, err, ReasonRead),
			Err:        eris.Wrap(err, "read body"),
		}
	}
	return Result{StatusCode: resp.StatusCode, Data: data, Reason: ReasonOK}
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return eris.Wrap(err, "parse url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return eris.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return eris.New("missing host")
	}
	return nil
}

// classify maps a transport or read error onto a Reason, falling back to def.
func classify(ctx context.Context, err error, def Reason) Reason {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ReasonCanceled
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return def
}

package fetcher

import (
	"context"
	"time"
)

// Fetcher downloads a single assistance-data blob from one mirror.
type Fetcher interface {
	// Fetch performs one GET against url. It never returns an error; failures
	// are reported through Result.Reason.
	Fetch(ctx context.Context, url string) Result
}

// FetchFunc adapts a plain function to the Fetcher interface.
type FetchFunc func(ctx context.Context, url string) Result

// Fetch calls f(ctx, url).
func (f FetchFunc) Fetch(ctx context.Context, url string) Result {
	return f(ctx, url)
}

// Reason classifies the outcome of a fetch.
type Reason int

const (
	// ReasonOK means the server answered 200 and the body was read in full.
	ReasonOK Reason = iota
	// ReasonBadAddress means the URL could not be turned into a request.
	ReasonBadAddress
	// ReasonTransport covers DNS, connect and header exchange failures.
	ReasonTransport
	// ReasonTimeout means the request or the body read timed out.
	ReasonTimeout
	// ReasonStatus means the server answered with something other than 200.
	ReasonStatus
	// ReasonRead means the body stream failed part way through.
	ReasonRead
	// ReasonCanceled means the caller's context ended before the fetch finished.
	ReasonCanceled
)

func (r Reason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonBadAddress:
		return "bad_address"
	case ReasonTransport:
		return "transport"
	case ReasonTimeout:
		return "timeout"
	case ReasonStatus:
		return "status"
	case ReasonRead:
		return "read"
	case ReasonCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Result is the outcome of one fetch attempt against one server.
type Result struct {
	URL        string
	Data       []byte
	StatusCode int
	Reason     Reason
	Err        error
	Elapsed    time.Duration
}

// OK reports whether the attempt produced data.
func (r Result) OK() bool {
	return r.Reason == ReasonOK && r.Data != nil
}

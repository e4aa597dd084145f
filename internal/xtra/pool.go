package xtra

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/xtrafetch/internal/fetcher"
)

// ServerKeys are the configuration keys read by NewPool, in priority order.
var ServerKeys = []string{"XTRA_SERVER_1", "XTRA_SERVER_2", "XTRA_SERVER_3"}

// Rand picks the initial cursor. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Observer is told about every fetch attempt a pool makes.
type Observer interface {
	Record(res fetcher.Result)
}

// Result is the outcome of one Download call.
type Result struct {
	// Data is nil when no server produced assistance data.
	Data []byte

	// Attempts holds one entry per server tried, in the order tried.
	Attempts []fetcher.Result
}

// OK reports whether a server produced data.
func (r Result) OK() bool {
	return r.Data != nil
}

// Option configures a Pool.
type Option func(*Pool)

// WithRand sets the randomness source used for the initial cursor.
func WithRand(r Rand) Option {
	return func(p *Pool) { p.rng = r }
}

// WithObserver registers an observer for fetch attempts.
func WithObserver(o Observer) Option {
	return func(p *Pool) { p.observer = o }
}

// WithLogger overrides the global zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pool) { p.log = l }
}

// Pool holds the configured XTRA mirrors and the rotation cursor.
type Pool struct {
	servers  []string
	fetcher  fetcher.Fetcher
	rng      Rand
	observer Observer
	log      *zap.Logger

	mu     sync.Mutex
	cursor int
}

// NewPool builds a pool from the XTRA_SERVER_n entries in props. Missing or
// blank entries are skipped. An empty pool is logged as a configuration error
// but is still usable.
func NewPool(props map[string]string, f fetcher.Fetcher, opts ...Option) *Pool {
	p := &Pool{
		fetcher: f,
		rng:     globalRand{},
		log:     zap.L(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, key := range ServerKeys {
		if addr := strings.TrimSpace(props[key]); addr != "" {
			p.servers = append(p.servers, addr)
		}
	}

	if len(p.servers) == 0 {
		p.log.Error("no XTRA servers were specified in the GPS configuration",
			zap.Strings("keys", ServerKeys),
		)
		return p
	}

	p.cursor = p.rng.IntN(len(p.servers))
	return p
}

// Servers returns the configured server addresses in priority order.
func (p *Pool) Servers() []string {
	out := make([]string, len(p.servers))
	copy(out, p.servers)
	return out
}

// Cursor returns the index of the server the next Download starts from.
func (p *Pool) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Download tries each server at most once, starting at the cursor, and
// returns the first body served with HTTP 200. The lock is not held across
// network I/O; the cursor is only advanced if no concurrent call moved it.
func (p *Pool) Download(ctx context.Context) Result {
	if len(p.servers) == 0 {
		return Result{}
	}

	p.mu.Lock()
	start := p.cursor
	p.mu.Unlock()

	log := p.log.With(zap.String("download_id", uuid.NewString()))
	log.Debug("downloading xtra data",
		zap.Int("servers", len(p.servers)),
		zap.Int("start", start),
	)

	res, next := Rotate(ctx, p.servers, start, fetcher.FetchFunc(p.fetch))

	p.mu.Lock()
	if p.cursor == start {
		p.cursor = next
	}
	p.mu.Unlock()

	if !res.OK() {
		log.Warn("xtra data unavailable from all servers",
			zap.Int("attempts", len(res.Attempts)),
		)
		return res
	}

	last := res.Attempts[len(res.Attempts)-1]
	log.Debug("xtra data downloaded",
		zap.String("url", last.URL),
		zap.Int("bytes", len(res.Data)),
		zap.Int("attempts", len(res.Attempts)),
	)
	return res
}

func (p *Pool) fetch(ctx context.Context, url string) fetcher.Result {
	res := p.fetcher.Fetch(ctx, url)
	if p.observer != nil {
		p.observer.Record(res)
	}
	return res
}

// Rotate walks servers from start, wrapping around, until one fetch succeeds
// or every server has been tried once. It returns the result and the cursor
// for the next call: the succeeding index on success, otherwise the index
// after the last server tried. A cancelled ctx stops the walk early.
func Rotate(ctx context.Context, servers []string, start int, f fetcher.Fetcher) (Result, int) {
	n := len(servers)
	if n == 0 {
		return Result{}, 0
	}
	start = ((start % n) + n) % n

	var res Result
	cursor := start
	for {
		attempt := f.Fetch(ctx, servers[cursor])
		res.Attempts = append(res.Attempts, attempt)
		if attempt.OK() {
			res.Data = attempt.Data
			return res, cursor
		}

		cursor = (cursor + 1) % n
		if cursor == start || ctx.Err() != nil {
			return res, cursor
		}
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/xtrafetch/internal/monitoring"
	"github.com/sells-group/xtrafetch/internal/xtra"
)

var servePort int

// downloader is the part of *xtra.Pool the server needs.
type downloader interface {
	Download(ctx context.Context) xtra.Result
}

// blobCache holds the last assistance data blob served by a mirror.
type blobCache struct {
	mu        sync.RWMutex
	data      []byte
	fetchedAt time.Time
	ttl       time.Duration

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

func newBlobCache(ttl time.Duration) *blobCache {
	return &blobCache{ttl: ttl, nowFunc: time.Now}
}

// get returns the cached blob, whether one exists, and whether it is fresh.
func (c *blobCache) get() (data []byte, fetchedAt time.Time, ok, fresh bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil {
		return nil, time.Time{}, false, false
	}
	return c.data, c.fetchedAt, true, c.nowFunc().Sub(c.fetchedAt) < c.ttl
}

func (c *blobCache) store(data []byte) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.fetchedAt = c.nowFunc()
	return c.fetchedAt
}

// serveDeps are the collaborators of the serve router.
type serveDeps struct {
	pool        downloader
	collector   *monitoring.Collector
	cache       *blobCache
	limiter     *rate.Limiter
	corsOrigins []string
}

// buildMux wires the serve endpoints onto a chi router.
func buildMux(deps serveDeps) http.Handler {
	if deps.cache == nil {
		deps.cache = newBlobCache(0)
	}
	if deps.limiter == nil {
		deps.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if deps.collector == nil {
		deps.collector = monitoring.NewCollector()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(deps.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.collector.Snapshot())
	})

	r.Get("/xtra.bin", func(w http.ResponseWriter, r *http.Request) {
		data, fetchedAt, cached, fresh := deps.cache.get()
		if fresh {
			writeBlob(w, data, fetchedAt, false)
			return
		}

		if !deps.limiter.Allow() {
			if cached {
				writeBlob(w, data, fetchedAt, true)
				return
			}
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "refresh rate exceeded"})
			return
		}

		// The refresh token is already spent, so a client hanging up must not
		// cut the rotation short. Each attempt is bounded by the fetcher timeout.
		res := deps.pool.Download(context.WithoutCancel(r.Context()))
		if res.OK() {
			writeBlob(w, res.Data, deps.cache.store(res.Data), false)
			return
		}

		if cached {
			zap.L().Warn("serving stale xtra data", zap.Time("fetched_at", fetchedAt))
			writeBlob(w, data, fetchedAt, true)
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "assistance data temporarily unavailable"})
	})

	return r
}

func writeBlob(w http.ResponseWriter, data []byte, fetchedAt time.Time, stale bool) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Last-Modified", fetchedAt.UTC().Format(http.TimeFormat))
	if stale {
		w.Header().Set("X-Xtra-Stale", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve cached XTRA assistance data over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		collector := monitoring.NewCollector()
		pool, err := newPool(cfg, xtra.WithObserver(collector))
		if err != nil {
			return eris.Wrap(err, "serve: build pool")
		}

		handler := buildMux(serveDeps{
			pool:        pool,
			collector:   collector,
			cache:       newBlobCache(time.Duration(cfg.Serve.CacheTTLSecs) * time.Second),
			limiter:     rate.NewLimiter(rate.Limit(cfg.Serve.RefreshPerMinute/60), 1),
			corsOrigins: cfg.Serve.CORSOrigins,
		})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server",
				zap.Int("port", cfg.Server.Port),
				zap.Strings("servers", pool.Servers()),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

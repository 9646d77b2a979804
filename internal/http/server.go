package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"moneyflow/internal/cache"
	"moneyflow/internal/dashboard"
	"moneyflow/internal/log"
	"moneyflow/internal/metrics"
	"moneyflow/internal/middleware/ratelimit"
	"moneyflow/internal/middleware/security"
	"moneyflow/internal/middleware/trace"
	appweb "moneyflow/web"
)

const (
	defaultCacheSize = 64
	defaultCacheTTL  = 5 * time.Minute
	cacheSweepEvery  = 10 * time.Minute
	staticMaxAge     = 3600
)

// Options configures a Server. State and Logger are required.
type Options struct {
	Addr    string
	State   *dashboard.State
	Logger  *log.Logger
	Hub     *Hub
	Metrics *metrics.Registry

	RateLimit      ratelimit.Config
	TrustedProxies []string
	CacheSize      int
	CacheTTL       time.Duration

	// Ready, when set, is consulted by /readyz.
	Ready func(context.Context) error
}

// Server serves the dashboard page and its JSON API.
type Server struct {
	http.Server
	state     *dashboard.State
	templates *template.Template
	hub       *Hub
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	metrics   *metrics.Registry
	logger    *log.Logger
	ready     func(context.Context) error
	started   time.Time

	// Rendered responses keyed by "<name>:<revision>". A limit change bumps
	// the revision, so stale entries are never served; they just age out.
	rendered *cache.LRUCache[[]byte]
	caches   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	if opts.State == nil {
		return nil, errors.New("http server: nil dashboard state")
	}
	if opts.Logger == nil {
		return nil, errors.New("http server: nil logger")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", cidr, err)
		}
	}

	hub := opts.Hub
	if hub == nil {
		hub = NewHub(opts.Logger, opts.State.Currency(), opts.Metrics)
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		state:     opts.State,
		templates: t,
		hub:       hub,
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
		detector:  detector,
		metrics:   opts.Metrics,
		logger:    logger,
		ready:     opts.Ready,
		started:   time.Now(),
		rendered:  cache.NewLRUCache[[]byte](opts.CacheSize, opts.CacheTTL),
		caches:    cache.NewManager(opts.Logger),
	}
	s.caches.Register(s.rendered)
	if s.metrics != nil {
		s.metrics.RegisterCache("rendered", s.rendered.Stats)
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err.Error())
	}

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)

	s.route(mux, "GET /{$}", http.HandlerFunc(s.handleIndex))
	s.route(mux, "GET /api/summary", http.HandlerFunc(s.handleSummary))
	s.route(mux, "GET /api/transactions", http.HandlerFunc(s.handleTransactions))
	s.route(mux, "GET /api/limits", http.HandlerFunc(s.handleLimits))
	s.route(mux, "PUT /api/limits/{category}", limited(http.HandlerFunc(s.handleSetLimit)))
	s.route(mux, "POST /api/withdrawals", limited(http.HandlerFunc(s.handleWithdraw)))
	s.route(mux, "GET /api/alerts/ws", s.hub)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var h http.Handler = mux
	h = log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(h)
	h = log.Middleware(opts.Logger)(h)
	h = s.flagSuspicious(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = trace.NewMiddleware(opts.Logger, s.detector.ExtractClientIP).Handler(h)
	s.Handler = h

	return s, nil
}

// route registers h under pattern and records per-route metrics.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.Handler) {
	if s.metrics == nil {
		mux.Handle(pattern, h)
		return
	}
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &trace.ResponseWriter{ResponseWriter: w, Status: http.StatusOK}
		h.ServeHTTP(rw, r)
		s.metrics.ObserveHTTP(r.Method, pattern, rw.Status, time.Since(start))
	}))
}

// flagSuspicious logs requests that look like probes. They are still served.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := s.detector.Suspicious(r); reason != "" {
			if s.metrics != nil {
				s.metrics.SuspiciousRequests.Inc()
			}
			s.logger.WarnContext(r.Context(), "Suspicious request",
				log.FieldComponent, log.ComponentSecurity,
				"reason", reason,
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldPath, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil {
		s.metrics.RateLimited.Inc()
	}
	clientIP := s.detector.ExtractClientIP(r)
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, clientIP,
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)

	secs := int(s.limiter.RetryAfter().Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", fmt.Sprint(secs))
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

// Run serves until ctx is cancelled, then shuts down within timeout.
func (s *Server) Run(ctx context.Context, timeout time.Duration) error {
	go s.caches.Run(ctx, cacheSweepEvery)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", s.Addr)
		errc <- s.ListenAndServe()
	}()

	select {
	case err := <-errc:
		_ = s.Shutdown(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		// Hijacked websocket connections are not tracked by http.Server.
		s.hub.Close()
		shutdownErr = s.Server.Shutdown(ctx)
		s.caches.Stop()
		s.limiter.Stop()
	})
	return shutdownErr
}

// Hub returns the websocket hub alerts are broadcast through.
func (s *Server) Hub() *Hub {
	return s.hub
}

package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	taskAuth "github.com/MrEthical07/taskAuth"
	"github.com/MrEthical07/taskAuth/tasks"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"
)

// RouterConfig wires NewRouter.
type RouterConfig struct {
	Logger *slog.Logger
	Engine *taskAuth.Engine
	Tasks  *tasks.Service
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	// Production turns on the HTTPS redirect.
	Production     bool
	RequestTimeout time.Duration
}

// NewRouter returns the full HTTP surface.
func NewRouter(cfg RouterConfig) http.Handler {
	h := NewHandler(cfg.Logger, cfg.Engine, cfg.Tasks)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           cfg.Production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !cfg.Production,
	})

	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		chimw.RequestID,
		chimw.Recoverer,
		chimw.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if err := secureMiddleware.Process(w, req); err != nil {
					h.logger.Warn("secure headers blocked request", slog.Any("error", err))
					return
				}
				next.ServeHTTP(w, req)
			})
		},
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	h.MountRoutes(r)
	return r
}

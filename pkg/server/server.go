package server

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/adfharrison1/go-users/pkg/api"
	"github.com/adfharrison1/go-users/pkg/config"
	"github.com/adfharrison1/go-users/pkg/domain"
)

// ServiceName names the service in traces and default headers.
const ServiceName = "go-users"

const timeoutBody = `{"error":"Service Unavailable","message":"request timed out","code":503}`

// Server holds the router and the wrapped handler chain.
type Server struct {
	router  *mux.Router
	api     *api.Handler
	handler http.Handler
}

// NewServer creates a new instance of Server. pinger may be nil, in which
// case /health always reports healthy.
func NewServer(users domain.Store[domain.User], pinger api.Pinger, cfg config.Config) *Server {
	opts := []api.HandlerOption{api.WithDatabase(cfg.Database)}
	if pinger != nil {
		opts = append(opts, api.WithPinger(pinger))
	}

	s := &Server{
		router: mux.NewRouter(),
		api:    api.NewHandler(users, opts...),
	}
	s.api.RegisterRoutes(s.router)

	s.router.Use(requestIDMiddleware, requestLoggerMiddleware)

	// Customize NotFoundHandler to log 404s
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Warn().Str("method", r.Method).Str("path", r.URL.Path).Msg("no route found")
		api.WriteJSONError(w, http.StatusNotFound, "Route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Warn().Str("method", r.Method).Str("path", r.URL.Path).Msg("method not allowed")
		api.WriteJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.handler = s.wrap(cfg)
	return s
}

// wrap builds the outer middleware chain, outermost first: tracing, the
// Server header, CORS, the per-request deadline, compression and panic recovery.
func (s *Server) wrap(cfg config.Config) http.Handler {
	var h http.Handler = s.router

	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(false),
	)(h)
	h = handlers.CompressHandler(h)

	if cfg.RequestTimeout > 0 {
		h = jsonTimeoutHandler(h, cfg.RequestTimeout)
	}

	h = handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)(h)

	serverHeader := cfg.ServerHeader
	if serverHeader == "" {
		serverHeader = ServiceName
	}
	h = serverHeaderMiddleware(serverHeader)(h)

	return otelhttp.NewHandler(h, ServiceName)
}

// jsonTimeoutHandler answers 503 with timeoutBody once dt elapses. The preset
// Content-Type is replaced by the handler's own headers when it finishes in time.
func jsonTimeoutHandler(h http.Handler, dt time.Duration) http.Handler {
	th := http.TimeoutHandler(h, dt, timeoutBody)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		th.ServeHTTP(w, r)
	})
}

// Router exposes the full handler chain.
func (s *Server) Router() http.Handler {
	return s.handler
}

// HTTPServer returns an http.Server listening on addr with the handler chain.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

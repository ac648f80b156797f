package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aussiebroadwan/aichef/pkg/apiclient"
	"github.com/aussiebroadwan/aichef/pkg/httpx"
	"github.com/aussiebroadwan/aichef/pkg/metricsx"
	"github.com/aussiebroadwan/aichef/pkg/session"
	"github.com/aussiebroadwan/aichef/pkg/slogx"

	_ "github.com/aussiebroadwan/aichef/api/chef" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// SessionService is what the session endpoints drive (*session.Controller).
type SessionService interface {
	Snapshot() session.Snapshot
	Login(ctx context.Context) (string, error)
	CompleteLogin(ctx context.Context, callbackURL string) error
	Logout(ctx context.Context) string
}

// Proxy sends business API calls with the session credentials
// (*apiclient.Client).
type Proxy interface {
	Do(ctx context.Context, req *apiclient.Request) (*apiclient.Response, error)
}

// Pinger is a readiness dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	Session SessionService
	API     Proxy // Optional: the proxy answers 503 without it

	// Checks are pinged by /readyz, keyed by the name reported.
	Checks   map[string]Pinger
	Gatherer prometheus.Gatherer

	// LoginRedirect is where the browser lands after a completed login.
	LoginRedirect string
}

func NewRouter(buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		buildVersion:  buildVersion,
		startTime:     time.Now(),
		logger:        logger,
		Checks:        map[string]Pinger{},
		Gatherer:      prometheus.DefaultGatherer,
		LoginRedirect: "/v1/session",
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerAPI()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			AI Chef Session Service API
//	@version		0.1.0
//	@description	Local session surface for AI Chef. Signs the user in through Keycloak web SSO or the host app
//	@description	launch assertion, keeps the credentials renewed and forwards business API calls with a bearer token.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/aichef
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSession() {
	h := &SessionHandler{Session: r.Session, LoginRedirect: r.LoginRedirect}

	// Reads are cheap, logins reach the provider
	r.Mux.Handle("GET /v1/session",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(httpx.ProxyLimit),
		),
	)
	r.Mux.Handle("GET /v1/session/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.SessionLimit),
		),
	)
	r.Mux.Handle("POST /v1/session/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.SessionLimit),
		),
	)
	r.Mux.Handle("GET /v1/session/callback",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(httpx.SessionLimit),
		),
	)
	r.Mux.Handle("POST /v1/session/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.SessionLimit),
		),
	)
}

func (r *Router) registerAPI() {
	h := &ProxyHandler{API: r.API}

	// Any method; the business API decides what it accepts
	r.Mux.Handle("/v1/api/{path...}",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.ProxyLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Monitoring systems may poll frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.ProbeLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.Checks, r.Session),
			httpx.RateLimitByIP(httpx.ProbeLimit),
		),
	)
	r.Mux.Handle("GET /metrics",
		httpx.Chain(metricsx.Handler(r.Gatherer),
			httpx.RateLimitByIP(httpx.ProbeLimit),
		),
	)
}

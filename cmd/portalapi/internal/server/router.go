package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/qaportal/portal/cmd/portalapi/internal/httpx"
	portalmiddleware "github.com/qaportal/portal/cmd/portalapi/internal/middleware"
	"github.com/qaportal/portal/cmd/portalapi/internal/services/iam"
	"github.com/qaportal/portal/cmd/portalapi/internal/telemetry"
)

// Default IdP redirect paths.
const (
	DefaultCallbackPath          = "/signin-oidc"
	DefaultSignedOutCallbackPath = "/signout-callback-oidc"
)

// RouterOptions controls the construction of the portal HTTP router.
// Broker, IAMService and Sessions are required; the rest have defaults.
type RouterOptions struct {
	Broker     *Broker
	IAMService iam.Service
	Sessions   portalmiddleware.SessionDependencies
	Logger     *slog.Logger
	Metrics    *telemetry.ServerMetrics

	CallbackPath          string
	SignedOutCallbackPath string
	// CORSOrigins are allowed in addition to the broker's frontend origin.
	CORSOrigins []string
	// LoginRateLimit is requests per minute per client IP on login and callback. Zero disables it.
	LoginRateLimit int
	// SecureOptions overrides the default security headers.
	SecureOptions *secure.Options
	HealthHandler http.HandlerFunc
	ExtraRoutes   func(chi.Router)
}

// CORSOptions returns the CORS policy for a browser client at origin.
func CORSOptions(origin string, extra ...string) cors.Options {
	return cors.Options{
		AllowedOrigins:   append([]string{origin}, extra...),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// DefaultSecureOptions returns the security headers applied to every response.
func DefaultSecureOptions() secure.Options {
	return secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	}
}

// NewRouter assembles a chi.Router with shared middleware, the CORS policy,
// the broker endpoints and the account API mounted.
func NewRouter(opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	callbackPath := opts.CallbackPath
	if callbackPath == "" {
		callbackPath = DefaultCallbackPath
	}
	signedOutPath := opts.SignedOutCallbackPath
	if signedOutPath == "" {
		signedOutPath = DefaultSignedOutCallbackPath
	}
	secureOpts := DefaultSecureOptions()
	if opts.SecureOptions != nil {
		secureOpts = *opts.SecureOptions
	}
	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = HandleHealth
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger, opts.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(secure.New(secureOpts).Handler)
	r.Use(cors.Handler(CORSOptions(opts.Broker.FrontendOrigin(), opts.CORSOrigins...)))
	r.Use(portalmiddleware.NewSessionMiddleware(opts.Sessions))

	r.Get("/health", healthHandler)

	loginLimiter := loginRateLimiter(opts.LoginRateLimit)
	r.With(loginLimiter).Get(callbackPath, opts.Broker.Callback)
	r.Get(signedOutPath, opts.Broker.SignedOut)

	r.Route("/api", func(api chi.Router) {
		api.With(loginLimiter).Get("/login", opts.Broker.Login)
		api.With(portalmiddleware.RequireSession(opts.Broker)).Get("/logout", opts.Broker.Logout)
		api.Get("/me", HandleMe(opts.IAMService, logger))

		api.Group(func(g chi.Router) {
			g.Use(portalmiddleware.RequireSession(opts.Broker))
			g.Use(portalmiddleware.RequirePrincipal(opts.IAMService, logger))

			g.Get("/role-requests", HandleListRoleRequests(opts.IAMService))
			g.Post("/role-requests", HandleSubmitRoleRequest(opts.IAMService, logger))
			g.Post("/role-requests/{id}/review", HandleReviewRoleRequest(opts.IAMService, logger))

			g.With(portalmiddleware.RequireRole(iam.RoleAdmin)).Get("/users", HandleListAccounts(opts.IAMService))
			g.With(portalmiddleware.RequireRole(iam.RoleSuperAdmin)).Put("/users/{id}/role", HandleAssignRole(opts.IAMService, logger))
			g.With(portalmiddleware.RequireRole(iam.RoleAdmin)).Put("/users/{id}/approval", HandleSetApproval(opts.IAMService, logger))
		})

		// Unknown API routes still answer with a readable 401 for anonymous callers.
		api.With(portalmiddleware.RequireSession(opts.Broker)).NotFound(func(w http.ResponseWriter, _ *http.Request) {
			httpx.WriteErrorCode(w, http.StatusNotFound, httpx.CodeNotFound)
		})
	})

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r
}

func loginRateLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			httpx.WriteErrorCode(w, http.StatusTooManyRequests, httpx.CodeRateLimited)
		}),
	)
}

// requestLogger logs one line per request and records the request metrics.
func requestLogger(logger *slog.Logger, metrics *telemetry.ServerMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			metrics.RecordRequest(r.Context(), r.Method, route, status, elapsed)

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"route", route,
				"status", status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

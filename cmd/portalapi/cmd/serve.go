package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	"github.com/qaportal/portal/cmd/portalapi/cmd/cmdutil"
	"github.com/qaportal/portal/cmd/portalapi/internal/auth"
	"github.com/qaportal/portal/cmd/portalapi/internal/config"
	"github.com/qaportal/portal/cmd/portalapi/internal/db/bunx"
	portalmiddleware "github.com/qaportal/portal/cmd/portalapi/internal/middleware"
	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
	"github.com/qaportal/portal/cmd/portalapi/internal/server"
	"github.com/qaportal/portal/cmd/portalapi/internal/services/iam"
	"github.com/qaportal/portal/cmd/portalapi/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Portal API server",
	Long:  `Starts the HTTP server with the sign-in broker, the account API and the session janitor.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.IdP.Validate(); err != nil {
			return fmt.Errorf("invalid identity provider configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()

		serverMetrics, err := telemetry.NewServerMetrics()
		if err != nil {
			return fmt.Errorf("create server metrics: %w", err)
		}
		dbMetrics, err := telemetry.NewDatabaseMetrics()
		if err != nil {
			return fmt.Errorf("create database metrics: %w", err)
		}
		authMetrics, err := telemetry.NewAuthMetrics()
		if err != nil {
			return fmt.Errorf("create auth metrics: %w", err)
		}

		db, err := cmdutil.OpenDB(cfg)
		if err != nil {
			return err
		}
		defer bunx.Close(db)
		db.AddQueryHook(telemetry.NewQueryHook(dbMetrics))
		logger.Info("connected to database", "type", bunx.DetectDatabaseType(cfg.DatabaseURL))

		sessions, closeSessions, err := newSessionRepository(ctx, db, cfg.Session)
		if err != nil {
			return err
		}
		defer closeSessions()

		iamService, err := iam.NewIAMService(iam.IAMServiceDependencies{
			Store:   repository.NewBunStore(db),
			Metrics: authMetrics,
			Logger:  logger,
		}, iam.IAMServiceConfig{})
		if err != nil {
			return fmt.Errorf("create IAM service: %w", err)
		}

		relyingParty, err := auth.NewRelyingParty(ctx, auth.RelyingPartyConfig{
			Issuer:        cfg.IdP.IssuerURL(),
			ClientID:      cfg.IdP.ClientID,
			ClientSecret:  cfg.IdP.ClientSecret,
			RedirectURI:   cfg.RedirectURI(),
			Scopes:        cfg.IdP.Scopes,
			Scheme:        cfg.IdP.Scheme,
			HashKey:       []byte(cfg.Session.HashKey),
			BlockKey:      []byte(cfg.Session.BlockKey),
			SecureCookies: cfg.Session.CookieSecure,
		})
		if err != nil {
			return fmt.Errorf("failed to create relying party: %w", err)
		}

		cookies := auth.CookieOptions{
			Name:     cfg.Session.CookieName,
			Secure:   cfg.Session.CookieSecure,
			SameSite: auth.ParseSameSite(cfg.Session.SameSite),
		}

		broker, err := server.NewBroker(server.BrokerDependencies{
			Provider: relyingParty,
			Sessions: sessions,
			Accounts: iamService,
			Metrics:  authMetrics,
			Logger:   logger,
		}, server.BrokerConfig{
			FrontendURL:           cfg.FrontendURL,
			PostLogoutRedirectURI: cfg.PostLogoutRedirectURI(),
			Cookies:               cookies,
			Lifetime:              cfg.Session.Lifetime,
		})
		if err != nil {
			return fmt.Errorf("create broker: %w", err)
		}

		router := server.NewRouter(server.RouterOptions{
			Broker:     broker,
			IAMService: iamService,
			Sessions: portalmiddleware.SessionDependencies{
				Sessions: sessions,
				Cookies:  cookies,
				Lifetime: cfg.Session.Lifetime,
				Logger:   logger,
				Metrics:  authMetrics,
			},
			Logger:                logger,
			Metrics:               serverMetrics,
			CallbackPath:          cfg.IdP.CallbackPath,
			SignedOutCallbackPath: cfg.IdP.SignedOutCallbackPath,
			CORSOrigins:           cfg.CORSAllowedOrigins,
			LoginRateLimit:        cfg.LoginRateLimit,
		})

		srv := &http.Server{
			Addr:              cfg.ServerAddr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
			ConnState: func(_ net.Conn, state http.ConnState) {
				switch state {
				case http.StateNew:
					serverMetrics.ConnectionOpened(ctx)
				case http.StateClosed, http.StateHijacked:
					serverMetrics.ConnectionClosed(ctx)
				}
			},
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			logger.Info("starting server", "addr", cfg.ServerAddr, "server_url", cfg.ServerURL, "frontend_url", cfg.FrontendURL)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down gracefully")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			logger.Info("server stopped")
			return nil
		})

		if cfg.Session.Store == config.SessionStoreDatabase {
			janitor := server.NewSessionJanitor(sessions, cfg.Session.JanitorInterval, logger)
			g.Go(func() error { return janitor.Run(gctx) })
		}

		return g.Wait()
	},
}

// newSessionRepository selects the configured session backend. The returned
// close function releases backend resources.
func newSessionRepository(ctx context.Context, db *bun.DB, sc config.SessionConfig) (repository.SessionRepository, func(), error) {
	if sc.Store != config.SessionStoreRedis {
		return repository.NewBunSessionRepository(db), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     sc.RedisAddr,
		Password: sc.RedisPassword,
		DB:       sc.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("using redis session store", "addr", sc.RedisAddr)
	return repository.NewRedisSessionRepository(client), func() { _ = client.Close() }, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

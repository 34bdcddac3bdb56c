// Package app wires the configuration into a runnable application.
package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/idbridge/idbridge/internal/cache"
	"github.com/idbridge/idbridge/internal/config"
	"github.com/idbridge/idbridge/internal/email"
	"github.com/idbridge/idbridge/internal/events"
	"github.com/idbridge/idbridge/internal/federation"
	internalhttp "github.com/idbridge/idbridge/internal/http"
	signinctrl "github.com/idbridge/idbridge/internal/http/controllers/signin"
	"github.com/idbridge/idbridge/internal/http/router"
	signinsvc "github.com/idbridge/idbridge/internal/http/services/signin"
	"github.com/idbridge/idbridge/internal/identity"
	identitymem "github.com/idbridge/idbridge/internal/identity/memory"
	identitypg "github.com/idbridge/idbridge/internal/identity/pg"
	"github.com/idbridge/idbridge/internal/observability/logger"
	"github.com/idbridge/idbridge/internal/providers"
	"github.com/idbridge/idbridge/internal/session"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds the wired components and owns their lifecycles.
type App struct {
	Config  *config.Config
	Handler http.Handler

	cache   cache.Client
	pgStore *identitypg.Store
}

// Build wires everything from config. No server is started; the caller owns
// the listener.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	cacheClient, err := cache.New(cache.Config{
		Driver:     cfg.Cache.Driver,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Prefix,
		DefaultTTL: cfg.CacheDefaultTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	a := &App{Config: cfg, cache: cacheClient}

	var store identity.AccountStore
	var healthChecks []router.HealthChecker
	var pool func() *pgxpool.Pool

	switch cfg.Storage.Driver {
	case "postgres":
		pgStore, err := identitypg.New(ctx, identitypg.Config{
			DSN:             cfg.Storage.DSN,
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			ConnMaxLifetime: cfg.PgConnMaxLifetime(),
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.pgStore = pgStore
		store = pgStore
		healthChecks = append(healthChecks, pgStore.Ping)
		pool = pgStore.Pool
	case "memory":
		store = identitymem.New()
	default:
		a.Close()
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	healthChecks = append(healthChecks, cacheClient.Ping)

	secret, err := stateSecret(cfg.State.Secret)
	if err != nil {
		a.Close()
		return nil, err
	}
	codec := federation.NewStateCodec(secret, cfg.App.Name, cfg.StateTTL())

	exchange := federation.NewExchange(codec)
	regEntries := make([]providers.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		client, err := buildProviderClient(cfg, p)
		if err != nil {
			a.Close()
			return nil, err
		}
		display := p.DisplayName
		if display == "" {
			display = p.AuthenticationType
		}
		exchange.Register(p.AuthenticationType, display, client)
		regEntries = append(regEntries, providers.Provider{
			AuthenticationType: p.AuthenticationType,
			DisplayName:        p.DisplayName,
			LogoURL:            p.LogoURL,
		})
	}
	registry := providers.NewRegistry(regEntries)

	sessions := session.NewCacheAuthority(cacheClient, session.Config{
		CookieName:   cfg.Session.CookieName,
		CookieDomain: cfg.Session.Domain,
		Secure:       cfg.Session.Secure,
		SameSite:     parseSameSite(cfg.Session.SameSite),
		TTL:          cfg.SessionTTL(),
	})

	bus := events.NewBus()
	if cfg.SMTP.Enabled {
		sender := email.NewSMTPSender(email.SMTPConfig{
			Host:               cfg.SMTP.Host,
			Port:               cfg.SMTP.Port,
			From:               cfg.SMTP.From,
			User:               cfg.SMTP.User,
			Pass:               cfg.SMTP.Pass,
			TLSMode:            cfg.SMTP.TLS,
			InsecureSkipVerify: cfg.SMTP.Insecure,
		})
		bus.Subscribe(email.WelcomeHandler(sender, cfg.App.Name))
	}

	linker := identity.NewLinker(store)
	orchestrator := signinsvc.NewOrchestrator(exchange, linker, sessions, bus, registry, cfg.App.HomePath)
	controllers := signinctrl.NewControllers(orchestrator, sessions, cfg.App.ErrorPath)

	metricsHandler, err := internalhttp.RegisterMetrics(internalhttp.MetricsConfig{Pool: pool})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	a.Handler = router.New(router.Config{
		Controllers: controllers,
		Metrics:     metricsHandler,
		Health:      healthChecks,
	})

	logger.L().Info("application wired",
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Driver),
		logger.Count(len(cfg.Providers)),
	)
	return a, nil
}

// Close releases the cache and database resources. Idempotent.
func (a *App) Close() {
	if a.pgStore != nil {
		a.pgStore.Close()
		a.pgStore = nil
	}
	if a.cache != nil {
		_ = a.cache.Close()
		a.cache = nil
	}
}

func buildProviderClient(cfg *config.Config, p config.ProviderConfig) (federation.Client, error) {
	redirectURL := callbackURL(cfg.App.BaseURL, p.AuthenticationType)

	switch p.Kind {
	case "oidc":
		return federation.NewOIDC(federation.OIDCConfig{
			Issuer:       p.Issuer,
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       p.Scopes,
		}), nil
	case "github":
		return federation.NewGitHub(federation.GitHubConfig{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       p.Scopes,
		}), nil
	default:
		return nil, fmt.Errorf("provider %s: unknown kind %q", p.AuthenticationType, p.Kind)
	}
}

// callbackURL builds the registered redirect URL for a provider. The
// authentication type travels as a query param so one callback route serves
// every scheme.
func callbackURL(baseURL, authenticationType string) string {
	return strings.TrimRight(baseURL, "/") + "/signin/callback?authenticationType=" + authenticationType
}

// stateSecret accepts base64 (std or url-safe) and falls back to the raw
// bytes for ad-hoc dev secrets.
func stateSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("state secret is empty")
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return []byte(s), nil
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

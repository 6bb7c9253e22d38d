package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/jrsteele09/dropzone-client/api"
	"github.com/jrsteele09/dropzone-client/apiclient"
	"github.com/jrsteele09/dropzone-client/entitlement"
	"github.com/jrsteele09/dropzone-client/internal/config"
	"github.com/jrsteele09/dropzone-client/oidclogin"
	"github.com/jrsteele09/dropzone-client/querycache"
	"github.com/jrsteele09/dropzone-client/resources"
	"github.com/jrsteele09/dropzone-client/securestore"
	"github.com/jrsteele09/dropzone-client/securestore/filestore"
	"github.com/jrsteele09/dropzone-client/securestore/memstore"
	"github.com/jrsteele09/dropzone-client/securestore/redisstore"
	"github.com/jrsteele09/dropzone-client/session"
	"github.com/jrsteele09/dropzone-client/token"
)

const sessionFile = "session.enc"

var proMonthly = entitlement.Package{ID: "pro_monthly", Title: "Dropzone Pro", Price: "$4.99", Entitlement: "pro"}

// app is every service the commands use, built once per invocation.
type app struct {
	cfg       config.Config
	logger    zerolog.Logger
	registry  *prometheus.Registry
	provider  *session.Provider
	resources *resources.Resources
	gate      *entitlement.Gate
	oidc      *oidclogin.Client

	closers []func()
}

func newApp(ctx context.Context, v *viper.Viper, demo bool, logOut io.Writer) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}

	if demo {
		srv := startDemoServer()
		a.closers = append(a.closers, srv.Close)
		v.Set(config.KeyBaseURL, srv.URL)
		v.Set(config.KeyAPIKey, demoAPIKey)
		v.Set(config.KeyStoreBackend, config.StoreBackendMemory)
	}

	a.cfg = config.NewFromViper(v)
	if err := config.Validate(a.cfg); err != nil {
		a.Close()
		return nil, err
	}
	a.logger = newLogger(logOut, a.cfg.GetLogLevel())

	backend, err := a.openStore()
	if err != nil {
		a.Close()
		return nil, err
	}
	store := session.NewStore(backend)

	client, err := apiclient.New(a.cfg.GetBaseURL(), a.cfg.GetAPIKey(), store,
		apiclient.WithTimeout(a.cfg.GetRequestTimeout()),
		apiclient.WithRetry(a.cfg.GetMaxGetAttempts(), a.cfg.GetRetryInitialInterval()),
		apiclient.WithMetrics(a.registry),
		apiclient.WithLogger(a.logger),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	remote := api.New(client)

	var refresher token.Refresher = token.NewAPIRefresher(remote)
	if issuer := a.cfg.GetIssuerURL(); issuer != "" {
		a.oidc, err = oidclogin.Discover(ctx, issuer, a.cfg.GetClientID(), a.cfg.GetRedirectURL(), a.cfg.GetScopes())
		if err != nil {
			a.Close()
			return nil, err
		}
		refresher = a.oidc.Refresher()
	}
	tokens := token.NewUtility(store, refresher,
		token.WithSkew(a.cfg.GetTokenExpirySkew()),
		token.WithRevoker(remote),
		token.WithLogger(a.logger),
	)
	a.provider = session.NewProvider(store, tokens, session.WithLogger(a.logger))

	cache := querycache.New(
		querycache.WithGCTime(a.cfg.GetGCTime()),
		querycache.WithQueryRetries(a.cfg.GetQueryRetries()),
		querycache.WithMutationRetries(a.cfg.GetMutationRetries()),
		querycache.WithRetryPredicate(apiclient.IsRetryable),
		querycache.WithMetrics(a.registry),
		querycache.WithLogger(a.logger),
	)
	a.closers = append(a.closers, cache.Close)
	go cache.RunGC(ctx, a.cfg.GetGCTime())

	a.gate = entitlement.NewGate(entitlement.NewStatic(false, proMonthly), entitlement.WithLogger(a.logger))
	a.closers = append(a.closers, a.gate.Bind(a.provider))

	a.resources = resources.New(remote, a.provider, cache,
		resources.WithProGate(a.gate),
		resources.WithLogger(a.logger),
	)

	if err := a.provider.Start(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if demo && !a.provider.IsAuthenticated() {
		if _, err := a.resources.SignIn(ctx, api.Credentials{Email: demoEmail, Password: demoPassword}); err != nil {
			a.Close()
			return nil, fmt.Errorf("[dropzone] demo sign-in failed: %w", err)
		}
	}
	return a, nil
}

func (a *app) openStore() (securestore.Store, error) {
	switch a.cfg.GetStoreBackend() {
	case config.StoreBackendMemory:
		return memstore.New(), nil
	case config.StoreBackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: a.cfg.GetRedisAddr()})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		return redisstore.New(rdb, a.cfg.GetAppName()), nil
	default:
		path := filepath.Join(a.cfg.GetDataFolder(), sessionFile)
		s, err := filestore.Open(path, a.cfg.GetStorePassphrase())
		if err != nil {
			return nil, fmt.Errorf("[dropzone] failed to open session store %s: %w", path, err)
		}
		return s, nil
	}
}

// Close releases everything in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(lvl).With().Timestamp().Logger()
	log.Logger = l
	return l
}

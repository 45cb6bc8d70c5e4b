package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/MrSnakeDoc/tripsync/internal/bookings"
	"github.com/MrSnakeDoc/tripsync/internal/checkout"
	"github.com/MrSnakeDoc/tripsync/internal/config"
	"github.com/MrSnakeDoc/tripsync/internal/credentials"
	"github.com/MrSnakeDoc/tripsync/internal/favorites"
	"github.com/MrSnakeDoc/tripsync/internal/gateway"
	"github.com/MrSnakeDoc/tripsync/internal/httpserver"
	"github.com/MrSnakeDoc/tripsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tripsync/internal/listings"
	"github.com/MrSnakeDoc/tripsync/internal/logger"
	"github.com/MrSnakeDoc/tripsync/internal/normalize"
	"github.com/MrSnakeDoc/tripsync/internal/scheduler"
	"github.com/MrSnakeDoc/tripsync/internal/store"
	redisstore "github.com/MrSnakeDoc/tripsync/internal/store/redis"
	"github.com/MrSnakeDoc/tripsync/internal/store/sqlite"
	"github.com/MrSnakeDoc/tripsync/internal/utils"
	"github.com/MrSnakeDoc/tripsync/internal/version"
)

// App wires the engines to one gateway and one durable store.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	store  store.Store
	closer io.Closer

	Bookings  *bookings.Cache
	Favorites *favorites.Engine
	Listings  *listings.Aggregator
	Checkout  *checkout.Flow

	reloadTrigger chan struct{}
}

// New builds every component. Nothing is fetched yet; call Load to hydrate
// favorites and Run to serve.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	creds := newCredentials(cfg)

	rules := normalize.DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := normalize.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load extraction rules: %w", err)
		}
		rules = loaded
		loggerClient.Info("extraction rules loaded", logger.String("file", cfg.RulesFile))
	}
	n := normalize.New(rules)

	gw, err := gateway.NewHTTP(gateway.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		UserAgent: cfg.UserAgent + "/" + version.Version,
	}, creds, loggerClient.Named("gateway"))
	if err != nil {
		return nil, err
	}

	st, closer, err := openStore(ctx, cfg, loggerClient.Named("store"))
	if err != nil {
		return nil, err
	}
	st = scopeStore(ctx, st, creds, loggerClient)

	cache := bookings.New(gw, st, creds, n, loggerClient.Named("bookings"), bookings.Options{Window: cfg.BookingsCacheWindow})

	return &App{
		cfg:           cfg,
		logger:        loggerClient,
		store:         st,
		closer:        closer,
		Bookings:      cache,
		Favorites:     favorites.New(gw, st, creds, loggerClient.Named("favorites"), nil),
		Listings:      listings.New(gw, n, loggerClient.Named("listings"), cfg.ListingsPageSize),
		Checkout:      checkout.NewFlow(gw, checkout.NewGuard(loggerClient.Named("checkout")), cache, n, loggerClient.Named("checkout"), nil),
		reloadTrigger: make(chan struct{}, 1),
	}, nil
}

func newCredentials(cfg *config.Config) credentials.Provider {
	if cfg.TokenFile != "" {
		return credentials.NewFile(cfg.TokenFile)
	}
	return credentials.NewStatic(cfg.APIToken)
}

// openStore opens the configured durable store and what must be closed
// with it.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Store, io.Closer, error) {
	switch cfg.StoreDriver {
	case config.StoreRedis:
		client, err := redisstore.Connect(ctx, redisstore.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return redisstore.NewStore(client), client, nil

	case config.StoreMemory:
		log.Warn("memory store selected, nothing survives a restart")
		return store.NewMemory(), nil, nil

	default:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		log.Info("sqlite store opened", logger.String("path", cfg.SQLitePath))
		return db, db, nil
	}
}

// scopeStore keys the store by the signed-in user, so that two accounts
// on the same device never see each other's snapshots.
func scopeStore(ctx context.Context, st store.Store, creds credentials.Provider, log logger.Logger) store.Store {
	token, err := creds.Token(ctx)
	if err != nil {
		return st
	}
	sub := credentials.Subject(token)
	if sub == "" {
		return st
	}
	log.Debug("store scoped to user", logger.String("subject", sub))
	return store.Scoped(st, "user:"+sub)
}

// Load hydrates in-memory state from the durable store.
func (a *App) Load(ctx context.Context) error {
	return scheduler.NewStoreSyncer(a.Favorites, a.logger).Sync(ctx)
}

// Run serves the status API and refreshes bookings in the background
// until ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("🚀 Starting tripsync v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	if err := a.Load(ctx); err != nil {
		a.logger.Warn("failed to sync from store on startup, starting empty", logger.Error(err))
	}

	refresher := scheduler.NewBookingsRefresher(a.Bookings, a.logger.Named("scheduler"), a.cfg.RefreshSchedule, a.reloadTrigger)
	if err := refresher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bookings refresher: %w", err)
	}

	server := httpserver.New(a.cfg, a.logger, deps.Deps{
		Logger:         a.logger,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedOrigins: a.cfg.AllowedOrigins,
		Store:          a.store,
		StoreDriver:    a.cfg.StoreDriver,
		Bookings:       a.Bookings,
		Favorites:      a.Favorites,
		Listings:       a.Listings,
		ReloadTrigger:  a.reloadTrigger,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	refresher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	a.logger.Info("✅ tripsync stopped cleanly")
	return runErr
}

// Close waits for pending favorite mutations, then closes the store.
func (a *App) Close() {
	a.Favorites.Settle()
	if a.closer != nil {
		utils.CloseLogged(a.closer, a.logger, a.cfg.StoreDriver+" store")
	}
}

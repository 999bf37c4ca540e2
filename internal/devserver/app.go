package devserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/storage/postgres"
)

// Run creates all dependencies, serves the API and shuts down gracefully
// when ctx is cancelled.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	tokens, err := NewTokens(cfg.Tokens)
	if err != nil {
		return errors.Wrap(err, "tokens")
	}

	health := NewHealth()
	health.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	health.Start(ctx, 10*time.Second)
	health.SetReady(true)

	var loginLimit *Limiter
	if cfg.LoginLimit.Enabled() {
		loginLimit, err = NewLimiter(cfg.LoginLimit)
		if err != nil {
			return errors.Wrap(err, "login limit")
		}
		go loginLimit.Run(ctx)
	}

	products := postgres.NewProductRepository(pool)
	carts := postgres.NewCartRepository(pool)
	orders := postgres.NewOrderRepository(pool)

	srv := NewServer(Deps{
		Users:    postgres.NewUserRepository(pool),
		Products: products,
		Carts:    carts,
		Orders:   order.NewService(products, carts, orders),
		Tokens:   tokens,
	}, Options{
		PageSize:   cfg.PageSize,
		BcryptCost: cfg.BcryptCost,
		LoginLimit: loginLimit,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", health.Live)
	mux.HandleFunc("GET /readyz", health.Ready)
	srv.Routes(mux, cfg.PathPrefix)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: Wrap(
			otelhttp.NewHandler(mux, "storefront-dev",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			RequestID(),
			InjectLogger(lg),
			Recovery(),
			CORS(cfg.CORS),
			LogRequests(),
		),
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		health.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr), zap.String("prefix", cfg.PathPrefix))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

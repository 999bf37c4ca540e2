package app

import (
	"context"
	"io"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/notify"
	"github.com/xenking/kart-storefront/internal/shell"
	"github.com/xenking/kart-storefront/internal/shopapi"
	"github.com/xenking/kart-storefront/internal/storage/local"
)

// Run creates all dependencies and runs the terminal storefront on in and
// out until the user quits or ctx is cancelled. It is the single wiring
// point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config, in *os.File, out io.Writer) error {
	storage, err := newStorage(cfg)
	if err != nil {
		return errors.Wrap(err, "session storage")
	}

	session := auth.NewStore(storage, lg.Named("auth"))
	restoreSession(session, lg)

	client, err := shopapi.New(shopapi.Config{
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		UserAgent:      cfg.UserAgent,
		Logger:         lg.Named("api"),
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "api client")
	}

	printer := notify.NewWriter(out)

	carts, err := cart.NewStore(client, session, cart.Options{
		Notifier:       printer,
		Logger:         lg.Named("cart"),
		MeterProvider:  m.MeterProvider(),
		TracerProvider: m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "cart store")
	}

	history, err := order.NewHistory(client, order.HistoryOptions{
		Logger:         lg.Named("orders"),
		MeterProvider:  m.MeterProvider(),
		TracerProvider: m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "order history")
	}

	sh := shell.New(shell.Deps{
		API:     client,
		Auth:    session,
		Cart:    carts,
		History: history,
		In:      in,
		Out:     printer,
		Logger:  lg.Named("shell"),
		Serial:  !isTerminal(in),
	})
	return sh.Run(ctx)
}

// restoreSession loads the persisted session. An unreadable session is not
// fatal: the client starts logged out.
func restoreSession(session *auth.Store, lg *zap.Logger) {
	if err := session.Rehydrate(); err != nil {
		lg.Warn("Cannot restore session, starting logged out", zap.Error(err))
		return
	}
	if sess := session.Session(); sess != nil {
		lg.Info("Session restored", zap.String("username", sess.User.Username))
	}
}

func newStorage(cfg *Config) (auth.Storage, error) {
	if cfg.Ephemeral {
		return local.NewMemoryStorage(), nil
	}
	dir := cfg.StateDir
	if dir == "" {
		d, err := local.DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return local.NewFileStorage(dir)
}

// isTerminal reports whether f is an interactive character device.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

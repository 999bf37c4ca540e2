// Package shell is an interactive terminal storefront.
//
// The shell runs a single event loop. Input lines are dispatched as they
// arrive; network operations run in the background and hand a completion
// back to the loop, so rendering always happens on the loop goroutine.
package shell

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/notify"
	"github.com/xenking/kart-storefront/internal/wire"
)

// API is the part of the REST client the shell calls directly.
type API interface {
	Login(ctx context.Context, username, password string) (*wire.Tokens, error)
	Register(ctx context.Context, creds wire.Credentials) error
	Products(ctx context.Context, category string) ([]product.Product, error)
	AddToCart(ctx context.Context, token, productID string, qty int) error
}

// Deps are the collaborators of a Shell.
type Deps struct {
	API     API
	Auth    *auth.Store
	Cart    *cart.Store
	History *order.History
	In      io.Reader
	// Out receives all output. Notifications of the stores should be
	// routed to the same Writer.
	Out    *notify.Writer
	Logger *zap.Logger
	// Serial runs network operations inline, one input line at a time.
	// Used for scripted input.
	Serial bool
}

// Shell is the terminal storefront.
type Shell struct {
	api     API
	auth    *auth.Store
	cart    *cart.Store
	history *order.History
	in      io.Reader
	out     *notify.Writer
	lg      *zap.Logger
	serial  bool

	// Owned by the loop goroutine.
	done chan func()
	g    *errgroup.Group
	gctx context.Context
}

// New creates a Shell.
func New(d Deps) *Shell {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Shell{
		api:     d.API,
		auth:    d.Auth,
		cart:    d.Cart,
		history: d.History,
		in:      d.In,
		out:     d.Out,
		lg:      d.Logger,
		serial:  d.Serial,
		done:    make(chan func()),
	}
}

var errQuit = errors.New("quit")

// Run reads commands until quit, end of input or ctx cancellation. A
// restored session gets its cart loaded right away. On exit the stores are
// disposed and in-flight operations are awaited.
func (s *Shell) Run(ctx context.Context) error {
	opCtx, cancel := context.WithCancel(ctx)
	s.g, s.gctx = errgroup.WithContext(opCtx)

	defer func() {
		s.cart.Dispose()
		s.history.Dispose()
		cancel()
		_ = s.g.Wait()
	}()

	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	go s.readLines(lines, stop)

	if s.auth.IsAuthenticated() {
		_ = s.loadCart(nil)
	}
	s.prompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case complete := <-s.done:
			complete()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := s.dispatch(line); errors.Is(err, errQuit) {
				return nil
			}
			s.prompt()
		}
	}
}

func (s *Shell) readLines(lines chan<- string, stop <-chan struct{}) {
	defer close(lines)

	sc := bufio.NewScanner(s.in)
	for sc.Scan() {
		select {
		case lines <- sc.Text():
		case <-stop:
			return
		}
	}
	if err := sc.Err(); err != nil {
		s.lg.Warn("Read input", zap.Error(err))
	}
}

// async runs op in the background and applies the completion it returns on
// the loop goroutine. In serial mode op runs inline.
func (s *Shell) async(name string, op func(ctx context.Context) func()) {
	if s.serial {
		op(s.gctx)()
		return
	}
	s.g.Go(func() error {
		s.lg.Debug("Operation started", zap.String("op", name))
		complete := op(s.gctx)
		select {
		case s.done <- complete:
		case <-s.gctx.Done():
		}
		return nil
	})
}

func (s *Shell) dispatch(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	cmd, ok := commands[name]
	if !ok {
		s.printf("unknown command %q, type help for a list\n", name)
		return nil
	}
	if len(args) < cmd.minArgs {
		s.printf("usage: %s\n", cmd.usage)
		return nil
	}
	return cmd.run(s, args)
}

func (s *Shell) prompt() {
	if s.serial {
		return
	}
	who := "guest"
	if sess := s.auth.Session(); sess != nil {
		who = sess.User.Username
	}
	s.printf("%s> ", who)
}

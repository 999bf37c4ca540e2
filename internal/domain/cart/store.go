package cart

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/fault"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/notify"
)

const instrumentationName = "github.com/xenking/kart-storefront/internal/domain/cart"

// Sentinel errors returned by Store.
var (
	ErrItemNotFound       = errors.New("cart item not found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrSuperseded         = errors.New("cart response superseded by a newer change")
	ErrDisposed           = errors.New("cart store disposed")
)

// Options holds optional collaborators of a Store. Zero values are replaced
// by no-op implementations.
type Options struct {
	Notifier       notify.Notifier
	Logger         *zap.Logger
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

type storeMetrics struct {
	checkouts metric.Int64Counter
	clamps    metric.Int64Counter
	stale     metric.Int64Counter
}

func newStoreMetrics(mp metric.MeterProvider) (storeMetrics, error) {
	meter := mp.Meter(instrumentationName)

	var (
		m   storeMetrics
		err error
	)
	if m.checkouts, err = meter.Int64Counter("storefront.cart.checkouts",
		metric.WithDescription("Checkout attempts by result"),
	); err != nil {
		return m, errors.Wrap(err, "checkouts counter")
	}
	if m.clamps, err = meter.Int64Counter("storefront.cart.quantity_clamps",
		metric.WithDescription("Quantities corrected into the orderable range"),
	); err != nil {
		return m, errors.Wrap(err, "clamps counter")
	}
	if m.stale, err = meter.Int64Counter("storefront.cart.stale_responses",
		metric.WithDescription("Cart responses discarded because a newer change superseded them"),
	); err != nil {
		return m, errors.Wrap(err, "stale counter")
	}
	return m, nil
}

// Store holds the cart snapshot of the current session.
//
// Local mutations apply immediately. Load and Checkout suspend on the
// network; every Load records the load sequence number and the mutation
// generation at issue time, and its response is applied only if neither has
// moved since. A response that lost the race is dropped with ErrSuperseded.
type Store struct {
	backend  Backend
	tokens   TokenSource
	notifier notify.Notifier
	lg       *zap.Logger
	tracer   trace.Tracer
	metrics  storeMetrics

	mu          sync.Mutex
	items       []Item
	loadSeq     uint64
	gen         uint64
	checkingOut bool
	disposed    bool
}

// NewStore creates an empty Store.
func NewStore(backend Backend, tokens TokenSource, opts Options) (*Store, error) {
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}

	m, err := newStoreMetrics(opts.MeterProvider)
	if err != nil {
		return nil, errors.Wrap(err, "cart metrics")
	}

	return &Store{
		backend:  backend,
		tokens:   tokens,
		notifier: opts.Notifier,
		lg:       opts.Logger,
		tracer:   opts.TracerProvider.Tracer(instrumentationName),
		metrics:  m,
	}, nil
}

// Load replaces the snapshot with the cart held by the backend.
func (s *Store) Load(ctx context.Context) error {
	token := s.tokens.AccessToken()

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if token == "" {
		s.mu.Unlock()
		return &fault.FetchError{Op: "load cart", Err: &fault.AuthError{Op: "load cart"}}
	}
	s.loadSeq++
	seq, gen := s.loadSeq, s.gen
	s.mu.Unlock()

	items, err := s.backend.FetchCart(ctx, token)
	if err != nil {
		var fetchErr *fault.FetchError
		if errors.As(err, &fetchErr) {
			return err
		}
		return &fault.FetchError{Op: "load cart", Err: err}
	}

	s.mu.Lock()
	if s.disposed || seq != s.loadSeq || gen != s.gen {
		s.mu.Unlock()
		s.metrics.stale.Add(ctx, 1)
		s.lg.Debug("Discarding stale cart response",
			zap.Uint64("seq", seq),
			zap.Uint64("gen", gen),
		)
		return ErrSuperseded
	}

	loaded := make([]Item, 0, len(items))
	var corrections []*fault.ValidationError
	for _, item := range items {
		qty, verr := clamp(item, item.Quantity)
		if verr != nil {
			corrections = append(corrections, verr)
			item.Quantity = qty
		}
		loaded = append(loaded, item)
	}
	s.items = loaded
	s.gen++
	s.mu.Unlock()

	for _, verr := range corrections {
		s.warn(ctx, verr)
	}
	return nil
}

// SetQuantity sets the quantity of a line, clamped to [1, stock]. A clamped
// request emits one warning and is not an error. It returns the applied
// quantity.
func (s *Store) SetQuantity(itemID string, qty int) (int, error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return 0, ErrDisposed
	}
	idx := s.indexOf(itemID)
	if idx < 0 {
		s.mu.Unlock()
		return 0, ErrItemNotFound
	}

	applied, verr := clamp(s.items[idx], qty)
	s.setLocked(idx, applied)
	s.mu.Unlock()

	if verr != nil {
		s.warn(context.Background(), verr)
	}
	return applied, nil
}

// Increment adds one unit. At the stock limit it only warns.
func (s *Store) Increment(itemID string) (int, error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return 0, ErrDisposed
	}
	idx := s.indexOf(itemID)
	if idx < 0 {
		s.mu.Unlock()
		return 0, ErrItemNotFound
	}

	item := s.items[idx]
	applied, verr := clamp(item, item.Quantity+1)
	s.setLocked(idx, applied)
	s.mu.Unlock()

	if verr != nil {
		s.warn(context.Background(), verr)
	}
	return applied, nil
}

// Decrement removes one unit. At quantity 1 it does nothing.
func (s *Store) Decrement(itemID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return 0, ErrDisposed
	}
	idx := s.indexOf(itemID)
	if idx < 0 {
		return 0, ErrItemNotFound
	}

	qty := s.items[idx].Quantity
	if qty <= 1 {
		return qty, nil
	}
	s.setLocked(idx, qty-1)
	return qty - 1, nil
}

// RemoveItem drops a line. Removing an absent line is a no-op; the result
// reports whether anything was removed.
func (s *Store) RemoveItem(itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(itemID)
	if idx < 0 {
		return false
	}
	s.items = slices.Delete(s.items, idx, idx+1)
	s.gen++
	return true
}

// Checkout submits the snapshot as a new order. On success the snapshot is
// cleared and in-flight loads are superseded. On failure the snapshot is
// left untouched so the user can retry.
func (s *Store) Checkout(ctx context.Context) (*order.Order, error) {
	ctx, span := s.tracer.Start(ctx, "cart.Checkout")
	defer span.End()

	token := s.tokens.AccessToken()

	s.mu.Lock()
	switch {
	case s.disposed:
		s.mu.Unlock()
		return nil, ErrDisposed
	case s.checkingOut:
		s.mu.Unlock()
		return nil, ErrCheckoutInProgress
	case len(s.items) == 0:
		s.mu.Unlock()
		return nil, ErrEmptyCart
	case token == "":
		s.mu.Unlock()
		return nil, &fault.AuthError{Op: "checkout"}
	}
	snapshot := slices.Clone(s.items)
	s.checkingOut = true
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("cart.lines", len(snapshot)))

	o, err := s.backend.PlaceOrder(ctx, token, snapshot)

	s.mu.Lock()
	s.checkingOut = false
	if err != nil {
		s.mu.Unlock()
		err = classifyCheckoutError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		s.metrics.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", checkoutResult(err))))
		return nil, err
	}
	s.items = nil
	s.gen++
	s.loadSeq++
	s.mu.Unlock()

	s.metrics.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	if o != nil {
		s.lg.Info("Order placed", zap.String("order_id", o.ID), zap.String("total", o.Total.StringFixed(2)))
	}
	return o, nil
}

// ClearLocal empties the snapshot without contacting the backend.
func (s *Store) ClearLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.gen++
	s.loadSeq++
}

// Dispose clears the snapshot and stops the store from accepting responses
// or further network operations.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disposed = true
	s.items = nil
}

// Items returns a copy of the snapshot.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Item returns a single line by id.
func (s *Store) Item(itemID string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(itemID)
	if idx < 0 {
		return Item{}, false
	}
	return s.items[idx], true
}

// Total derives the cart total from the current snapshot.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Total(s.items)
}

// Count returns the number of units across all lines.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, item := range s.items {
		n += item.Quantity
	}
	return n
}

func (s *Store) indexOf(itemID string) int {
	return slices.IndexFunc(s.items, func(item Item) bool {
		return item.ID == itemID
	})
}

// setLocked must be called with s.mu held.
func (s *Store) setLocked(idx, qty int) {
	if s.items[idx].Quantity == qty {
		return
	}
	s.items[idx].Quantity = qty
	s.gen++
}

func (s *Store) warn(ctx context.Context, verr *fault.ValidationError) {
	s.metrics.clamps.Add(ctx, 1)
	notify.Warn(s.notifier, "%s", verr.Reason)
}

// classifyCheckoutError keeps taxonomy errors as they are and treats
// everything else as a transport failure.
func classifyCheckoutError(err error) error {
	var (
		businessErr *fault.BusinessError
		authErr     *fault.AuthError
		fetchErr    *fault.FetchError
	)
	switch {
	case errors.As(err, &businessErr), errors.As(err, &authErr), errors.As(err, &fetchErr):
		return err
	default:
		return &fault.FetchError{Op: "checkout", Err: err}
	}
}

func checkoutResult(err error) string {
	var (
		businessErr *fault.BusinessError
		authErr     *fault.AuthError
	)
	switch {
	case errors.As(err, &businessErr):
		return "rejected"
	case errors.As(err, &authErr):
		return "unauthenticated"
	default:
		return "failed"
	}
}

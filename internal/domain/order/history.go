package order

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/fault"
)

const instrumentationName = "github.com/xenking/kart-storefront/internal/domain/order"

// Sentinel errors returned by History.
var (
	ErrPageOutOfOrder = errors.New("order pages must be fetched in sequence")
	ErrNoMorePages    = errors.New("no more order pages")
	ErrSuperseded     = errors.New("order page superseded by a newer request")
	ErrDisposed       = errors.New("order history disposed")
)

// Fetcher loads one page of the order history.
type Fetcher interface {
	ListOrders(ctx context.Context, token string, page int) (*Page, error)
}

// Numbered pairs an order with its display number. The oldest order is 1.
type Numbered struct {
	Order
	Number int
}

// HistoryOptions holds optional collaborators of a History.
type HistoryOptions struct {
	Logger         *zap.Logger
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// History accumulates the order history page by page, starting at page 1.
// Pages are appended in server order and never re-fetched. Only the most
// recently issued fetch may apply its response.
type History struct {
	fetcher Fetcher
	lg      *zap.Logger
	tracer  trace.Tracer
	pages   metric.Int64Counter

	mu       sync.Mutex
	orders   []Order
	count    int
	next     int
	hasMore  bool
	seq      uint64
	disposed bool
}

// NewHistory creates an empty History.
func NewHistory(fetcher Fetcher, opts HistoryOptions) (*History, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}

	pages, err := opts.MeterProvider.Meter(instrumentationName).Int64Counter("storefront.orders.pages",
		metric.WithDescription("Order history pages fetched by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "pages counter")
	}

	return &History{
		fetcher: fetcher,
		lg:      opts.Logger,
		tracer:  opts.TracerProvider.Tracer(instrumentationName),
		pages:   pages,
		next:    1,
		hasMore: true,
	}, nil
}

// FetchPage requests page and appends its orders. page must be the next
// unfetched page.
func (h *History) FetchPage(ctx context.Context, sess *auth.Session, page int) error {
	ctx, span := h.tracer.Start(ctx, "orders.FetchPage", trace.WithAttributes(attribute.Int("page", page)))
	defer span.End()

	if sess == nil || sess.AccessToken == "" {
		return &fault.AuthError{Op: "fetch orders"}
	}

	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return ErrDisposed
	}
	if page != h.next {
		next := h.next
		h.mu.Unlock()
		return errors.Wrapf(ErrPageOutOfOrder, "requested page %d, next is %d", page, next)
	}
	if !h.hasMore {
		h.mu.Unlock()
		return ErrNoMorePages
	}
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	p, err := h.fetcher.ListOrders(ctx, sess.AccessToken, page)
	if err != nil {
		var (
			authErr  *fault.AuthError
			fetchErr *fault.FetchError
		)
		if !errors.As(err, &authErr) && !errors.As(err, &fetchErr) {
			err = &fault.FetchError{Op: "fetch orders", Err: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		h.pages.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "failed")))
		return err
	}

	h.mu.Lock()
	if h.disposed || seq != h.seq || page != h.next {
		h.mu.Unlock()
		h.pages.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "stale")))
		h.lg.Debug("Discarding stale order page", zap.Int("page", page), zap.Uint64("seq", seq))
		return ErrSuperseded
	}
	h.orders = append(h.orders, p.Results...)
	h.count = p.Count
	h.hasMore = p.HasNext
	h.next++
	h.mu.Unlock()

	h.pages.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	return nil
}

// FetchNext fetches the next unfetched page.
func (h *History) FetchNext(ctx context.Context, sess *auth.Session) error {
	h.mu.Lock()
	next := h.next
	h.mu.Unlock()

	return h.FetchPage(ctx, sess, next)
}

// Orders returns the accumulated orders with their display numbers.
func (h *History) Orders() []Numbered {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Numbered, len(h.orders))
	for i, o := range h.orders {
		out[i] = Numbered{Order: o, Number: h.count - i}
	}
	return out
}

// Len returns the number of accumulated orders.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.orders)
}

// TotalCount returns the total number of orders reported by the server.
func (h *History) TotalCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// HasMore reports whether another page can be fetched.
func (h *History) HasMore() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasMore
}

// Reset forgets accumulated pages and supersedes in-flight fetches.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.orders = nil
	h.count = 0
	h.next = 1
	h.hasMore = true
	h.seq++
}

// Dispose drops accumulated pages and rejects further fetches.
func (h *History) Dispose() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.disposed = true
	h.orders = nil
	h.seq++
}

package dashboard

// Package dashboard keeps an operator's working copy of the order set and
// applies status changes to it optimistically.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/promoshop/promoshop/internal/logging"
	"github.com/promoshop/promoshop/internal/models"
	"github.com/promoshop/promoshop/internal/orders"
)

var (
	ErrRemoteFetch        = errors.New("failed to fetch orders")
	ErrRemoteMutation     = errors.New("failed to persist status change")
	ErrTransitionInFlight = errors.New("status change already in progress")
	ErrDiscarded          = errors.New("result discarded")
	ErrUnknownOrder       = errors.New("order is not on the board")
	ErrNotLoaded          = errors.New("orders have not been loaded")
)

// Remote is the order store as seen from the dashboard.
type Remote interface {
	ListOrders(ctx context.Context) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (models.Order, error)
}

type transitioner interface {
	Transition(ctx context.Context, order models.Order, target models.OrderStatus, now time.Time) (models.Order, error)
}

// Board is safe for concurrent use.
type Board struct {
	remote  Remote
	machine transitioner
	loc     *time.Location
	now     func() time.Time
	logger  *slog.Logger

	mu       sync.Mutex
	orders   []models.Order
	loaded   bool
	err      error
	loadSeq  uint64
	inFlight map[string]models.Order
	// mutSeq counts confirmed status changes. confirmedAt maps an order to
	// the mutSeq of its latest confirmation.
	mutSeq      uint64
	confirmedAt map[string]uint64
	closed      bool
}

func New(remote Remote, machine transitioner, loc *time.Location, logger *slog.Logger) *Board {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Board{
		remote:      remote,
		machine:     machine,
		loc:         loc,
		now:         time.Now,
		logger:      logger.With("component", "dashboard"),
		inFlight:    map[string]models.Order{},
		confirmedAt: map[string]uint64{},
	}
}

type View struct {
	// Loading is true until the first successful load.
	Loading bool
	Stats   orders.Stats
	Orders  []models.Order
	Filter  orders.Filter
	// Pending lists orders whose status change is not yet confirmed.
	Pending []string
	// Err is the last fetch failure, if any.
	Err error
}

// Load replaces the working set with the remote's current orders. Orders
// with a status change in flight keep their optimistic status, and orders
// whose change was confirmed after the fetch started keep the confirmed
// record.
func (b *Board) Load(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrDiscarded
	}
	b.loadSeq++
	seq := b.loadSeq
	startMut := b.mutSeq
	b.mu.Unlock()

	list, fetchErr := b.remote.ListOrders(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrDiscarded
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDiscarded, err)
	}
	if seq != b.loadSeq {
		return fmt.Errorf("%w: superseded by a newer load", ErrDiscarded)
	}
	if fetchErr != nil {
		b.err = fmt.Errorf("%w: %w", ErrRemoteFetch, fetchErr)
		logging.FromContext(ctx, b.logger).Warn("order fetch failed", "error", fetchErr, "loaded", b.loaded)
		return b.err
	}

	next := make([]models.Order, len(list))
	copy(next, list)
	for i, order := range next {
		_, pending := b.inFlight[order.ID]
		if !pending && !b.newerLocally(order, startMut) {
			continue
		}
		if local, ok := b.find(order.ID); ok {
			next[i] = b.orders[local]
		}
	}
	// Later loads start at or after mutSeq, so older confirmations are
	// covered by their snapshots.
	for id, version := range b.confirmedAt {
		if version <= startMut {
			delete(b.confirmedAt, id)
		}
	}

	b.orders = next
	b.loaded = true
	b.err = nil
	return nil
}

// View returns a snapshot: stats over the whole set, rows for filter.
func (b *Board) View(filter orders.Filter) View {
	b.mu.Lock()
	defer b.mu.Unlock()

	filter = filter.Normalized()
	view := View{
		Loading: !b.loaded,
		Filter:  filter,
		Err:     b.err,
	}
	if !b.loaded {
		return view
	}

	view.Stats = orders.Aggregate(b.orders)
	view.Orders = orders.Query(b.orders, filter)
	for id := range b.inFlight {
		view.Pending = append(view.Pending, id)
	}
	slices.Sort(view.Pending)
	return view
}

// Transition checks target against the status machine, applies it locally,
// then persists it. The local change is replaced by the remote's record on
// success and rolled back on failure.
func (b *Board) Transition(ctx context.Context, orderID string, target models.OrderStatus) (models.Order, error) {
	logger := logging.FromContext(ctx, b.logger).With("order_id", orderID, "target", target)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return models.Order{}, ErrDiscarded
	}
	idx, ok := b.find(orderID)
	if !ok {
		b.mu.Unlock()
		return models.Order{}, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	if _, busy := b.inFlight[orderID]; busy {
		b.mu.Unlock()
		return models.Order{}, fmt.Errorf("%w: %s", ErrTransitionInFlight, orderID)
	}

	prior := b.orders[idx]
	optimistic, err := b.machine.Transition(ctx, prior, target, b.now())
	if err != nil {
		b.mu.Unlock()
		return models.Order{}, err
	}
	b.orders[idx] = optimistic
	b.inFlight[orderID] = prior
	b.mu.Unlock()

	confirmed, remoteErr := b.remote.UpdateStatus(ctx, orderID, target)

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inFlight, orderID)

	if b.closed {
		return models.Order{}, ErrDiscarded
	}
	if remoteErr != nil {
		b.rollback(prior)
		logger.Warn("status change rolled back", "error", remoteErr, "restored", prior.Status)
		if err := ctx.Err(); err != nil {
			return models.Order{}, fmt.Errorf("%w: %w", ErrDiscarded, err)
		}
		return models.Order{}, fmt.Errorf("%w: %w", ErrRemoteMutation, remoteErr)
	}

	// The store committed the change, so the board keeps it even when the
	// caller has gone away.
	if idx, ok := b.find(orderID); ok {
		b.orders[idx] = confirmed
	}
	b.mutSeq++
	b.confirmedAt[orderID] = b.mutSeq
	logger.Info("status change confirmed", "from", prior.Status)
	return confirmed, nil
}

// Export writes the filtered view and returns the suggested file name.
func (b *Board) Export(ctx context.Context, w io.Writer, format orders.ExportFormat, filter orders.Filter, now time.Time) (string, error) {
	b.mu.Lock()
	if !b.loaded {
		b.mu.Unlock()
		return "", ErrNotLoaded
	}
	rows := orders.Query(b.orders, filter.Normalized())
	b.mu.Unlock()

	if err := orders.WriteExport(ctx, w, format, rows, b.loc); err != nil {
		return "", err
	}
	return orders.ExportFilename(format, now.In(b.loc)), nil
}

// Close tears the board down. Results that arrive afterwards are dropped.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.orders = nil
	b.loaded = false
	b.inFlight = map[string]models.Order{}
	b.confirmedAt = map[string]uint64{}
}

// newerLocally reports whether the board holds a record of order that is
// newer than a snapshot fetched when mutSeq was startMut.
func (b *Board) newerLocally(order models.Order, startMut uint64) bool {
	if b.confirmedAt[order.ID] > startMut {
		return true
	}
	idx, ok := b.find(order.ID)
	return ok && b.orders[idx].UpdatedAt.After(order.UpdatedAt)
}

func (b *Board) rollback(prior models.Order) {
	if idx, ok := b.find(prior.ID); ok {
		b.orders[idx] = prior
	}
}

func (b *Board) find(orderID string) (int, bool) {
	for i := range b.orders {
		if b.orders[i].ID == orderID {
			return i, true
		}
	}
	return -1, false
}

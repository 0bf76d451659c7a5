package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/orders"
)

var ErrNotReady = errors.New("orders are not loaded")

// ReadinessReporter is told whether the initial fetch succeeded.
type ReadinessReporter interface {
	SetReady(ready bool)
}

// Store owns the session's order collection. Mutations go to the backend
// first and reach the cache only once the backend acknowledged them, so
// callers see their own writes without refetching and a failed write leaves
// the previous state untouched.
type Store struct {
	backend   Backend
	cache     *cache.OrderCache
	validator *orders.Validator
	logger    *zap.Logger
	readiness ReadinessReporter

	mu      sync.Mutex
	ready   bool
	loadErr error
}

type Option func(*Store)

func WithReadinessReporter(r ReadinessReporter) Option {
	return func(s *Store) { s.readiness = r }
}

func NewStore(backend Backend, validator *orders.Validator, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		cache:     cache.NewOrderCache(logger),
		validator: validator,
		logger:    logger,
		loadErr:   ErrNotReady,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) fail(op string, err error) error {
	metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
	if orders.IsValidation(err) || errors.Is(err, orders.ErrNotFound) {
		s.logger.Info("Order operation rejected", zap.String("operation", op), zap.Error(err))
	} else {
		s.logger.Error("Order operation failed", zap.String("operation", op), zap.Error(err))
	}
	return err
}

func (s *Store) setReady(err error) {
	s.ready = err == nil
	s.loadErr = err
	if s.readiness != nil {
		s.readiness.SetReady(s.ready)
	}
}

// Load fetches the full collection into memory. Until it succeeds the store
// reports ErrNotReady from Orders and Buckets.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.backend.ListAll(ctx)
	if err != nil {
		s.setReady(err)
		return s.fail("load_orders", err)
	}

	s.cache.Replace(list)
	s.setReady(nil)
	s.logger.Info("Orders loaded", zap.Int("orders", len(list)))
	return nil
}

// Reload is the manual retry after a failed initial fetch.
func (s *Store) Reload(ctx context.Context) error {
	s.logger.Info("Reloading orders")
	return s.Load(ctx)
}

func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// ListAll refetches from the backend and returns the collection sorted by
// delivery date.
func (s *Store) ListAll(ctx context.Context) ([]orders.Order, error) {
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	list := s.cache.All()
	orders.SortByDeliveryDate(list)
	return list, nil
}

// Orders returns the cached collection sorted by delivery date.
func (s *Store) Orders() ([]orders.Order, error) {
	s.mu.Lock()
	ready, loadErr := s.ready, s.loadErr
	s.mu.Unlock()

	if !ready {
		if errors.Is(loadErr, ErrNotReady) {
			return nil, loadErr
		}
		return nil, fmt.Errorf("%w: %w", ErrNotReady, loadErr)
	}

	list := s.cache.All()
	orders.SortByDeliveryDate(list)
	return list, nil
}

// Buckets derives the Today/Tomorrow views from the live collection. It is
// recomputed on every call.
func (s *Store) Buckets(now time.Time) (orders.Buckets, error) {
	list, err := s.Orders()
	if err != nil {
		return orders.Buckets{}, err
	}
	return orders.Bucket(list, now), nil
}

func (s *Store) Get(ctx context.Context, id string) (orders.Order, error) {
	if o, ok := s.cache.Get(id); ok {
		return o, nil
	}
	o, err := s.backend.Get(ctx, id)
	if err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func (s *Store) Insert(ctx context.Context, in orders.Input) (orders.Order, error) {
	if err := s.validator.ValidateInput(in); err != nil {
		return orders.Order{}, s.fail("create_order", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.backend.Insert(ctx, in)
	if err != nil {
		return orders.Order{}, s.fail("create_order", err)
	}

	s.cache.Set(order)
	metrics.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created", zap.String("order_id", order.ID), zap.Time("delivery_date", order.DeliveryDate))
	return order, nil
}

// Update overwrites every mutable field of the order, status included.
func (s *Store) Update(ctx context.Context, order orders.Order) (orders.Order, error) {
	if err := s.validator.ValidateOrder(order); err != nil {
		return orders.Order{}, s.fail("update_order", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.backend.Update(ctx, order)
	if err != nil {
		return orders.Order{}, s.fail("update_order", err)
	}

	s.cache.Set(updated)
	metrics.OrdersUpdatedTotal.Inc()
	s.logger.Info("Order updated", zap.String("order_id", updated.ID))
	return updated, nil
}

// Remove deletes the order. Removing an id that does not exist succeeds.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Remove(ctx, id); err != nil {
		return s.fail("delete_order", err)
	}

	s.cache.Delete(id)
	metrics.OrdersDeletedTotal.Inc()
	s.logger.Info("Order deleted", zap.String("order_id", id))
	return nil
}

// ToggleStatus reads the current order, flips its status and persists only
// the status.
func (s *Store) ToggleStatus(ctx context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.backend.Get(ctx, id)
	if err != nil {
		return orders.Order{}, s.fail("toggle_status", err)
	}

	next := orders.Toggle(current.Status)
	updated, err := s.backend.SetStatus(ctx, id, next)
	if err != nil {
		return orders.Order{}, s.fail("toggle_status", err)
	}

	s.cache.Set(updated)
	metrics.StatusTogglesTotal.WithLabelValues(string(next)).Inc()
	s.logger.Info("Order status toggled",
		zap.String("order_id", id),
		zap.String("old_status", string(current.Status)),
		zap.String("new_status", string(next)),
	)
	return updated, nil
}

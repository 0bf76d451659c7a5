package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/orders"
)

// OrdersKey is the key the local variant keeps its JSON array under.
const OrdersKey = "orders"

// LocalStorage keeps the whole collection as one JSON array in a key-value
// store. Order in the array is insertion order, not delivery order.
type LocalStorage struct {
	kv      KeyValue
	logger  *zap.Logger
	mu      sync.Mutex
	timeNow func() time.Time
}

func NewLocalStorage(kv KeyValue, logger *zap.Logger) *LocalStorage {
	return &LocalStorage{
		kv:      kv,
		logger:  logger.With(zap.String("backend", "local"), zap.String("key", OrdersKey)),
		timeNow: time.Now,
	}
}

// read never fails: a missing or unreadable entry is an empty collection.
func (s *LocalStorage) read() []orders.Order {
	raw, ok, err := s.kv.Get(OrdersKey)
	if err != nil {
		s.logger.Warn("Failed to read stored orders, starting empty", zap.Error(err))
		return []orders.Order{}
	}
	if !ok {
		return []orders.Order{}
	}

	var list []orders.Order
	if err := json.Unmarshal(raw, &list); err != nil {
		s.logger.Warn("Stored orders are malformed, starting empty", zap.Error(err))
		return []orders.Order{}
	}
	if list == nil {
		list = []orders.Order{}
	}
	return list
}

func (s *LocalStorage) write(list []orders.Order) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return orders.Persistence("encode orders", err)
	}
	if err := s.kv.Set(OrdersKey, raw); err != nil {
		return orders.Persistence("save orders", err)
	}
	return nil
}

func (s *LocalStorage) ListAll(ctx context.Context) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(), nil
}

func (s *LocalStorage) Get(ctx context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.read() {
		if o.ID == id {
			return o, nil
		}
	}
	return orders.Order{}, orders.ErrNotFound
}

// newID mimics a client-side timestamp id, bumped until it is unique.
func (s *LocalStorage) newID(list []orders.Order) string {
	taken := make(map[string]struct{}, len(list))
	for _, o := range list {
		taken[o.ID] = struct{}{}
	}
	n := s.timeNow().UnixMilli()
	for {
		id := strconv.FormatInt(n, 10)
		if _, ok := taken[id]; !ok {
			return id
		}
		n++
	}
}

func (s *LocalStorage) Insert(ctx context.Context, in orders.Input) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.read()
	order := in.WithID(s.newID(list))
	list = append(list, order)
	if err := s.write(list); err != nil {
		return orders.Order{}, err
	}
	return order, nil
}

func (s *LocalStorage) Update(ctx context.Context, order orders.Order) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.read()
	for i := range list {
		if list[i].ID == order.ID {
			order.Status = orders.NewStatus(order.Status)
			// the local variant never carries audit timestamps
			order.CreatedAt, order.UpdatedAt = list[i].CreatedAt, list[i].UpdatedAt
			list[i] = order
			if err := s.write(list); err != nil {
				return orders.Order{}, err
			}
			return order, nil
		}
	}
	return orders.Order{}, orders.ErrNotFound
}

func (s *LocalStorage) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.read()
	for i, o := range list {
		if o.ID == id {
			list = append(list[:i], list[i+1:]...)
			return s.write(list)
		}
	}
	return nil
}

func (s *LocalStorage) SetStatus(ctx context.Context, id string, status orders.Status) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.read()
	for i := range list {
		if list[i].ID == id {
			list[i].Status = status
			if err := s.write(list); err != nil {
				return orders.Order{}, err
			}
			return list[i], nil
		}
	}
	return orders.Order{}, orders.ErrNotFound
}

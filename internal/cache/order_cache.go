package cache

import (
	"sync"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/orders"
)

// OrderCache is the in-memory copy of the live order collection. It keeps
// insertion order so callers relying on stable ordering see the backend's
// order for orders with equal delivery dates.
type OrderCache struct {
	mu     sync.RWMutex
	cache  map[string]orders.Order
	order  []string
	logger *zap.Logger
}

func NewOrderCache(logger *zap.Logger) *OrderCache {
	return &OrderCache{
		cache:  make(map[string]orders.Order),
		logger: logger,
	}
}

// Replace swaps the whole collection, e.g. after a fresh fetch.
func (c *OrderCache) Replace(list []orders.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]orders.Order, len(list))
	c.order = make([]string, 0, len(list))
	for _, o := range list {
		if _, dup := c.cache[o.ID]; !dup {
			c.order = append(c.order, o.ID)
		}
		c.cache[o.ID] = o
	}
	metrics.OrderCacheItems.Set(float64(len(c.cache)))
	c.logger.Debug("Cache: replaced collection", zap.Int("orders", len(c.cache)))
}

func (c *OrderCache) Get(orderID string) (orders.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	order, found := c.cache[orderID]
	return order, found
}

// Set inserts or overwrites an order. New orders go to the end.
func (c *OrderCache) Set(order orders.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, found := c.cache[order.ID]; !found {
		c.order = append(c.order, order.ID)
	}
	c.cache[order.ID] = order
	metrics.OrderCacheItems.Set(float64(len(c.cache)))
	c.logger.Debug("Cache: set order", zap.String("order_id", order.ID), zap.String("status", string(order.Status)))
}

func (c *OrderCache) Delete(orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, found := c.cache[orderID]; !found {
		return
	}
	delete(c.cache, orderID)
	for i, id := range c.order {
		if id == orderID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	metrics.OrderCacheItems.Set(float64(len(c.cache)))
	c.logger.Debug("Cache: deleted order", zap.String("order_id", orderID))
}

// All returns a copy of the collection in insertion order.
func (c *OrderCache) All() []orders.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]orders.Order, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.cache[id])
	}
	return out
}

func (c *OrderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

//go:generate mockgen -source ./storage.go -destination=./mocks/storage.go -package=mock_storage
package storage

import (
	"context"

	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/orders"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/repository"
)

// Backend is the persistence contract both variants implement. The variant
// is chosen once, when the Store is constructed.
type Backend interface {
	ListAll(ctx context.Context) ([]orders.Order, error)
	Get(ctx context.Context, id string) (orders.Order, error)
	Insert(ctx context.Context, in orders.Input) (orders.Order, error)
	Update(ctx context.Context, order orders.Order) (orders.Order, error)
	Remove(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status orders.Status) (orders.Order, error)
}

type OrderRepository interface {
	List(ctx context.Context) ([]*repository.Order, error)
	GetByID(ctx context.Context, id string) (*repository.Order, error)
	Create(ctx context.Context, order *repository.Order) error
	Update(ctx context.Context, order *repository.Order) error
	UpdateStatus(ctx context.Context, id, status string) (*repository.Order, error)
	Delete(ctx context.Context, id string) error
}

type KeyValue interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}

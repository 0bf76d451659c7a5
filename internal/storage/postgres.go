package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/orders"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/repository"
)

// PostgresStorage is the remote variant: one row per order in the orders
// table, ids and audit timestamps assigned by the database.
type PostgresStorage struct {
	orderRepo OrderRepository
	logger    *zap.Logger

	migrate  func(ctx context.Context) error
	schemaMu sync.Mutex
	migrated bool
}

type PostgresOption func(*PostgresStorage)

// WithMigration runs migrate before the first query. A failed run is retried
// on the next call, so an unreachable database at startup can recover.
func WithMigration(migrate func(ctx context.Context) error) PostgresOption {
	return func(s *PostgresStorage) { s.migrate = migrate }
}

func NewPostgresStorage(orderRepo OrderRepository, logger *zap.Logger, opts ...PostgresOption) *PostgresStorage {
	s := &PostgresStorage{
		orderRepo: orderRepo,
		logger:    logger.With(zap.String("backend", "postgres")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PostgresStorage) ensureSchema(ctx context.Context) error {
	if s.migrate == nil {
		return nil
	}

	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	if s.migrated {
		return nil
	}
	if err := s.migrate(ctx); err != nil {
		return orders.Persistence("prepare schema", err)
	}
	s.migrated = true
	s.logger.Info("Schema ready")
	return nil
}

func toDomain(row *repository.Order) orders.Order {
	createdAt, updatedAt := row.CreatedAt, row.UpdatedAt
	o := orders.Order{
		ID:            row.ID,
		CustomerName:  row.CustomerName,
		Company:       row.Company,
		ContainerSize: orders.ContainerSize(row.ContainerSize),
		Quantity:      row.Quantity,
		DeliveryDate:  row.DeliveryDate,
		Status:        orders.Status(row.Status),
	}
	if !createdAt.IsZero() {
		o.CreatedAt = &createdAt
	}
	if !updatedAt.IsZero() {
		o.UpdatedAt = &updatedAt
	}
	return o
}

func toRow(o orders.Order) *repository.Order {
	row := &repository.Order{
		ID:            o.ID,
		CustomerName:  o.CustomerName,
		Company:       o.Company,
		ContainerSize: string(o.ContainerSize),
		Quantity:      o.Quantity,
		DeliveryDate:  o.DeliveryDate.UTC(),
		Status:        string(orders.NewStatus(o.Status)),
	}
	if o.CreatedAt != nil {
		row.CreatedAt = *o.CreatedAt
	}
	if o.UpdatedAt != nil {
		row.UpdatedAt = *o.UpdatedAt
	}
	return row
}

func mapRepoErr(op string, err error) error {
	if errors.Is(err, repository.ErrObjectNotFound) {
		return fmt.Errorf("failed to %s: %w", op, orders.ErrNotFound)
	}
	return orders.Persistence(op, err)
}

func (s *PostgresStorage) ListAll(ctx context.Context) ([]orders.Order, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	rows, err := s.orderRepo.List(ctx)
	if err != nil {
		return nil, orders.Persistence("list orders", err)
	}

	list := make([]orders.Order, len(rows))
	for i, row := range rows {
		list[i] = toDomain(row)
	}
	s.logger.Debug("Fetched orders", zap.Int("orders", len(list)))
	return list, nil
}

func (s *PostgresStorage) Get(ctx context.Context, id string) (orders.Order, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return orders.Order{}, err
	}

	row, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return orders.Order{}, mapRepoErr("get order", err)
	}
	return toDomain(row), nil
}

func (s *PostgresStorage) Insert(ctx context.Context, in orders.Input) (orders.Order, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return orders.Order{}, err
	}

	row := toRow(in.WithID(""))
	row.CreatedAt, row.UpdatedAt = time.Time{}, time.Time{}

	if err := s.orderRepo.Create(ctx, row); err != nil {
		return orders.Order{}, orders.Persistence("add order", err)
	}
	return toDomain(row), nil
}

func (s *PostgresStorage) Update(ctx context.Context, order orders.Order) (orders.Order, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return orders.Order{}, err
	}

	row := toRow(order)
	if err := s.orderRepo.Update(ctx, row); err != nil {
		return orders.Order{}, mapRepoErr("update order", err)
	}
	return toDomain(row), nil
}

func (s *PostgresStorage) Remove(ctx context.Context, id string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	if err := s.orderRepo.Delete(ctx, id); err != nil {
		return orders.Persistence("delete order", err)
	}
	return nil
}

func (s *PostgresStorage) SetStatus(ctx context.Context, id string, status orders.Status) (orders.Order, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return orders.Order{}, err
	}

	row, err := s.orderRepo.UpdateStatus(ctx, id, string(status))
	if err != nil {
		return orders.Order{}, mapRepoErr("update order status", err)
	}
	return toDomain(row), nil
}

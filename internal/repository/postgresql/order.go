package postgresql

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/storage"
)

const orderColumns = `id, customer_name, company, container_size, quantity, delivery_date, status, created_at, updated_at`

type OrderRepo struct {
	db db.DB
}

func NewOrderRepo(db db.DB) storage.OrderRepository {
	return &OrderRepo{db: db}
}

// validID filters out ids that can never match the uuid primary key, so
// they behave like absent rows instead of failing the query.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *OrderRepo) List(ctx context.Context) ([]*repository.Order, error) {
	var orders []*repository.Order
	err := r.db.Select(ctx, &orders, `SELECT `+orderColumns+` FROM orders ORDER BY delivery_date ASC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*repository.Order, error) {
	if !validID(id) {
		return nil, repository.ErrObjectNotFound
	}

	var order repository.Order
	err := r.db.Get(ctx, &order, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &order, nil
}

// Create inserts order and fills in the id and audit columns assigned by
// the database.
func (r *OrderRepo) Create(ctx context.Context, order *repository.Order) error {
	return r.db.Get(ctx, order, `
        INSERT INTO orders (
            customer_name, company, container_size, quantity, delivery_date, status
        ) VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+orderColumns,
		order.CustomerName, order.Company, order.ContainerSize, order.Quantity, order.DeliveryDate, order.Status)
}

func (r *OrderRepo) Update(ctx context.Context, order *repository.Order) error {
	if !validID(order.ID) {
		return repository.ErrObjectNotFound
	}

	err := r.db.Get(ctx, order, `
        UPDATE orders
        SET
            customer_name = $1,
            company = $2,
            container_size = $3,
            quantity = $4,
            delivery_date = $5,
            status = $6,
            updated_at = now()
        WHERE id = $7
        RETURNING `+orderColumns,
		order.CustomerName, order.Company, order.ContainerSize, order.Quantity, order.DeliveryDate, order.Status, order.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrObjectNotFound
		}
		return err
	}
	return nil
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, id, status string) (*repository.Order, error) {
	if !validID(id) {
		return nil, repository.ErrObjectNotFound
	}

	var order repository.Order
	err := r.db.Get(ctx, &order, `
        UPDATE orders
        SET status = $1, updated_at = now()
        WHERE id = $2
        RETURNING `+orderColumns, status, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &order, nil
}

// Delete removes the order; deleting an absent id is not an error.
func (r *OrderRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}
	_, err := r.db.Exec(ctx, "DELETE FROM orders WHERE id = $1", id)
	return err
}

package repository

import (
	"errors"
	"time"
)

var ErrObjectNotFound = errors.New("not found")

// Order is a row of the orders table.
type Order struct {
	ID            string    `db:"id"`
	CustomerName  string    `db:"customer_name"`
	Company       string    `db:"company"`
	ContainerSize string    `db:"container_size"`
	Quantity      int       `db:"quantity"`
	DeliveryDate  time.Time `db:"delivery_date"`
	Status        string    `db:"status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

package orders

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("order not found")
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError reports the fields of an Input or Order that violate
// their constraints. Fields maps the JSON field name to a message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Persistence joins ErrPersistence with the backend cause so callers can
// match on either.
func Persistence(op string, cause error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, ErrPersistence, cause)
}

type Order struct {
	ID            string        `json:"id"`
	CustomerName  string        `json:"customerName" validate:"min=2"`
	Company       string        `json:"company" validate:"min=2"`
	ContainerSize ContainerSize `json:"containerSize" validate:"required,container_size"`
	Quantity      int           `json:"quantity" validate:"min=1"`
	DeliveryDate  time.Time     `json:"deliveryDate"`
	Status        Status        `json:"status" validate:"omitempty,oneof=pending completed"`
	CreatedAt     *time.Time    `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time    `json:"updatedAt,omitempty"`
}

// Input is an Order without identity and audit metadata, as submitted by
// the create form.
type Input struct {
	CustomerName  string        `json:"customerName" validate:"min=2"`
	Company       string        `json:"company" validate:"min=2"`
	ContainerSize ContainerSize `json:"containerSize" validate:"required,container_size"`
	Quantity      int           `json:"quantity" validate:"min=1"`
	DeliveryDate  time.Time     `json:"deliveryDate"`
	Status        Status        `json:"status,omitempty" validate:"omitempty,oneof=pending completed"`
}

// Input returns the mutable fields of o.
func (o Order) Input() Input {
	return Input{
		CustomerName:  o.CustomerName,
		Company:       o.Company,
		ContainerSize: o.ContainerSize,
		Quantity:      o.Quantity,
		DeliveryDate:  o.DeliveryDate,
		Status:        o.Status,
	}
}

// WithID builds a new Order from in, applying the creation defaults.
func (in Input) WithID(id string) Order {
	return Order{
		ID:            id,
		CustomerName:  in.CustomerName,
		Company:       in.Company,
		ContainerSize: in.ContainerSize,
		Quantity:      in.Quantity,
		DeliveryDate:  in.DeliveryDate,
		Status:        NewStatus(in.Status),
	}
}

// SortByDeliveryDate orders s ascending by delivery date, keeping the input
// order of equal dates.
func SortByDeliveryDate(s []Order) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].DeliveryDate.Before(s[j].DeliveryDate)
	})
}

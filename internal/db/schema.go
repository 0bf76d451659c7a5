package db

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    customer_name  TEXT        NOT NULL,
    company        TEXT        NOT NULL,
    container_size TEXT        NOT NULL,
    quantity       INTEGER     NOT NULL CHECK (quantity >= 1),
    delivery_date  TIMESTAMPTZ NOT NULL,
    status         TEXT        NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed')),
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS orders_delivery_date_idx ON orders (delivery_date);
`

// Migrate creates the orders table when it does not exist yet.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

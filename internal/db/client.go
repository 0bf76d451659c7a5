package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/config"
)

// NewDb builds the pool without dialing. Connections are opened by the first
// query, so an unreachable server surfaces as a query error instead of
// failing startup.
func NewDb(ctx context.Context, cfg config.Postgres) (*Database, error) {
	poolCfg, err := pgxpool.ParseConfig(GenerateDsn(cfg))
	if err != nil {
		return nil, err
	}
	poolCfg.LazyConnect = true

	pool, err := pgxpool.ConnectConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	return NewDatabase(pool), nil
}

// GenerateDsn quotes every value so an empty password does not swallow the
// next key.
func GenerateDsn(cfg config.Postgres) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quote(cfg.Host), cfg.Port, quote(cfg.User), quote(cfg.Password), quote(cfg.Name), quote(cfg.SSLMode))
}

func quote(v string) string {
	return "'" + dsnEscaper.Replace(v) + "'"
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

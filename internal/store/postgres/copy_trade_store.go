package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polycopy/internal/domain"
)

// CopyTradeStore mirrors audit records into the copy_trades table so the
// trade history can be queried with SQL. The NDJSON file stays the source of
// truth; this mirror is best-effort. Implements domain.AuditMirror.
type CopyTradeStore struct {
	pool *pgxpool.Pool
}

// NewCopyTradeStore creates a store backed by the given connection pool.
func NewCopyTradeStore(pool *pgxpool.Pool) *CopyTradeStore {
	return &CopyTradeStore{pool: pool}
}

// Insert writes one audit record. The full record is also stored as JSONB in
// the detail column, so schema additions never lose data.
func (s *CopyTradeStore) Insert(ctx context.Context, rec domain.AuditRecord) error {
	detail, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit record: %w", err)
	}

	const query = `
		INSERT INTO copy_trades
			(id, observed_at, status, side, token_id, shares, price,
			 notional_usdc, submit_ms, reason, order_id, tx_hash, log_index, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		rec.ID,
		time.UnixMilli(rec.T),
		string(rec.Status),
		string(rec.Side),
		rec.TokenID,
		rec.Shares,
		rec.Price,
		rec.NotionalUSD,
		rec.SubmitMs,
		rec.Reason,
		rec.OrderID,
		rec.Tx,
		int64(rec.LogIndex),
		detail,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert copy trade %s: %w", rec.ID, err)
	}
	return nil
}

var _ domain.AuditMirror = (*CopyTradeStore)(nil)

package domain

import "context"

// FillStream delivers raw OrderFilled events from the chain. Run blocks until
// the context is cancelled or the underlying transport fails; a transport
// failure ends the process so a supervisor can restart it.
type FillStream interface {
	Run(ctx context.Context, out chan<- RawFill) error
}

// OrderSubmitter places a replica order with the external submission service.
// The raw response body is returned alongside any transport error so the
// result classifier can inspect it; callers must not assume a nil error means
// the order was accepted.
type OrderSubmitter interface {
	Submit(ctx context.Context, req OrderRequest) (raw []byte, err error)
}

// ResultClassifier turns an opaque submission response into a verdict.
type ResultClassifier interface {
	Classify(raw []byte, err error) SubmitVerdict
}

// BalanceSource fetches the collateral token balance of an address, already
// adjusted to decimal USDC.
type BalanceSource interface {
	USDCBalance(ctx context.Context, address string) (float64, error)
}

// AuditSink receives one record per processed attempt. Implementations must
// never block the caller; writes are best-effort.
type AuditSink interface {
	Append(rec AuditRecord)
}

// SnapshotStore persists and restores full ledger snapshots.
type SnapshotStore interface {
	Save(snap LedgerSnapshot)
	Load() (LedgerSnapshot, error)
}

// AuditMirror is an optional secondary destination for audit records (e.g. a
// Postgres table). Failures are logged and swallowed.
type AuditMirror interface {
	Insert(ctx context.Context, rec AuditRecord) error
}

// PriceCache is an optional external mirror of last-seen mark prices.
type PriceCache interface {
	SetPrice(ctx context.Context, tokenID string, price float64) error
}

package domain

// AuditStatus classifies the outcome of one replication attempt.
type AuditStatus string

const (
	AuditSucceeded AuditStatus = "SUCCEED"
	AuditFailed    AuditStatus = "FAILED"
)

// AuditRecord is one immutable line in the audit log: the decoded fill, the
// sizing outcome, the submission result, and (on success) the post-update
// ledger metrics for the token. Records are append-only and never mutated.
type AuditRecord struct {
	ID          string      `json:"id"`
	T           int64       `json:"t"` // unix milliseconds
	Status      AuditStatus `json:"status"`
	Side        FillSide    `json:"side"`
	TokenID     string      `json:"tokenID"`
	Shares      float64     `json:"shares"`
	Price       float64     `json:"price"`
	NotionalUSD float64     `json:"notionalUSDC"`
	SubmitMs    int64       `json:"submitMs"`
	Reason      string      `json:"reason,omitempty"`
	OrderID     string      `json:"orderID,omitempty"`
	Tx          string      `json:"tx"`
	LogIndex    uint        `json:"logIndex"`

	// Balance of the funding wallet at submission time, if known.
	USDCBalanceCached *float64 `json:"usdcBalanceCached,omitempty"`

	// Post-update ledger metrics, populated only on success.
	TokenSharesNow      *float64 `json:"tokenSharesNow,omitempty"`
	TokenAvgPrice       *float64 `json:"tokenAvgPrice,omitempty"`
	TokenCostUSDC       *float64 `json:"tokenCostUSDC,omitempty"`
	TokenLastPrice      *float64 `json:"tokenLastPrice,omitempty"`
	TokenMTMValueUSDC   *float64 `json:"tokenMTMValueUSDC,omitempty"`
	TokenUnrealizedUSDC *float64 `json:"tokenUnrealizedUSDC,omitempty"`
	TokenRealizedUSDC   *float64 `json:"tokenRealizedUSDC,omitempty"`
}

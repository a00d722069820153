package domain

// SizedOrder is the output of the sizing policy: the replica order the copy
// trader will submit. Notional is always Price * Shares.
type SizedOrder struct {
	Price    float64
	Shares   float64
	Notional float64
}

// OrderRequest carries everything the submission service needs to place one
// replica order on the CLOB.
type OrderRequest struct {
	TokenID string
	Side    FillSide
	Price   float64
	Shares  float64
	NegRisk bool
}

// SubmitVerdict is the classifier's judgement of a submission response.
// Ambiguous responses are always classified as failures.
type SubmitVerdict struct {
	OK      bool
	OrderID string
	Reason  string
}

// Package domain defines the core types and store interfaces shared across
// the copy trader: raw and decoded fills, sized orders, the position ledger
// state, and audit records.
package domain

import (
	"strconv"
	"time"
)

// CollateralAssetID is the reserved asset id of the collateral (USDC) leg in
// an OrderFilled event. The side of the fill whose asset id equals this value
// is denominated in USDC; the other side is the traded outcome token.
const CollateralAssetID = "0"

// USDCDecimals is the decimal precision of the USDC collateral token on
// Polygon. Fill amounts and prices are scaled by 10^6.
const USDCDecimals = 6

// RawFill is one OrderFilled event as observed on chain. Amounts and asset
// ids are kept as decimal strings because token ids and filled amounts exceed
// int64 range.
type RawFill struct {
	TxHash            string
	LogIndex          uint
	Maker             string
	Taker             string
	MakerAssetID      string
	TakerAssetID      string
	MakerAmountFilled string
	TakerAmountFilled string
	BlockNumber       uint64
	Timestamp         time.Time

	// NegRisk is true when the event was emitted by the negRisk exchange
	// contract; replica orders must then be signed against that contract's
	// domain.
	NegRisk bool
}

// DedupKey uniquely identifies a RawFill within the chain: the transaction
// hash plus the event's position inside that transaction.
func (f RawFill) DedupKey() string {
	return f.TxHash + ":" + strconv.FormatUint(uint64(f.LogIndex), 10)
}

// FillSide indicates which direction the watched account traded.
type FillSide string

const (
	FillSideBuy  FillSide = "BUY"
	FillSideSell FillSide = "SELL"
)

// DecodedFill is the normalized form of a RawFill made by the watched
// account: the traded token, the share quantity, and the effective price in
// USDC per share (always within [0, 1] for a well-formed outcome token).
type DecodedFill struct {
	Side    FillSide
	TokenID string
	Shares  float64
	Price   float64
	NegRisk bool
}

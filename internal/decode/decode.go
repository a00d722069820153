// Package decode turns raw OrderFilled events into normalized fills for the
// watched account. Decoding is a pure function of its input: no I/O, no
// shared state.
package decode

import (
	"math/big"
	"strings"

	"github.com/alanyoungcy/polycopy/internal/domain"
)

// priceScale is the fixed-point scale applied before the price division so
// the integer quotient carries six decimal places. Matches the USDC decimal
// convention on Polygon.
var priceScale = big.NewInt(1_000_000)

// Fill decodes a RawFill made by the watched account.
//
// The side is inferred from which leg carries the reserved collateral asset
// id: the maker paying collateral means the watched account bought shares,
// the maker delivering shares means it sold. The effective price is
// collateral / shares computed in scaled integer arithmetic to avoid
// floating-point rounding in the division.
//
// ok is false when the event is not applicable: the maker is not the watched
// account, neither leg is collateral, the share amount is zero, or an amount
// fails to parse.
func Fill(raw domain.RawFill, watched string) (fill domain.DecodedFill, ok bool) {
	if !strings.EqualFold(raw.Maker, watched) {
		return domain.DecodedFill{}, false
	}

	makerAmt, ok1 := new(big.Int).SetString(raw.MakerAmountFilled, 10)
	takerAmt, ok2 := new(big.Int).SetString(raw.TakerAmountFilled, 10)
	if !ok1 || !ok2 {
		return domain.DecodedFill{}, false
	}

	switch {
	case raw.MakerAssetID == domain.CollateralAssetID:
		// Maker paid USDC and received outcome tokens: a buy.
		return decodeLeg(domain.FillSideBuy, raw.TakerAssetID, makerAmt, takerAmt, raw.NegRisk)
	case raw.TakerAssetID == domain.CollateralAssetID:
		// Maker delivered outcome tokens for USDC: a sell.
		return decodeLeg(domain.FillSideSell, raw.MakerAssetID, takerAmt, makerAmt, raw.NegRisk)
	default:
		// Token-for-token fill; nothing to copy.
		return domain.DecodedFill{}, false
	}
}

func decodeLeg(side domain.FillSide, tokenID string, usdc, shares *big.Int, negRisk bool) (domain.DecodedFill, bool) {
	if shares.Sign() == 0 {
		return domain.DecodedFill{}, false
	}

	scaled := new(big.Int).Mul(usdc, priceScale)
	scaled.Div(scaled, shares)

	return domain.DecodedFill{
		Side:    side,
		TokenID: tokenID,
		Shares:  formatUnits(shares),
		Price:   formatUnits(scaled),
		NegRisk: negRisk,
	}, true
}

// formatUnits converts a 6-decimal fixed-point integer to its decimal value.
func formatUnits(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f / 1e6
}

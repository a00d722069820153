package decode

import (
	"testing"

	"github.com/alanyoungcy/polycopy/internal/domain"
)

const watched = "0xAbCd000000000000000000000000000000000001"

func rawBuy(usdc, shares string) domain.RawFill {
	return domain.RawFill{
		TxHash:            "0xdead",
		LogIndex:          3,
		Maker:             watched,
		MakerAssetID:      "0",
		TakerAssetID:      "123456789",
		MakerAmountFilled: usdc,
		TakerAmountFilled: shares,
	}
}

func TestFill_BuySide(t *testing.T) {
	// 40 USDC for 100 shares, both 6-decimal fixed point.
	fill, ok := Fill(rawBuy("40000000", "100000000"), watched)
	if !ok {
		t.Fatal("expected fill to decode")
	}
	if fill.Side != domain.FillSideBuy {
		t.Errorf("side = %s, want BUY", fill.Side)
	}
	if fill.TokenID != "123456789" {
		t.Errorf("tokenID = %s, want 123456789", fill.TokenID)
	}
	if fill.Shares != 100 {
		t.Errorf("shares = %v, want 100", fill.Shares)
	}
	if fill.Price != 0.40 {
		t.Errorf("price = %v, want 0.40", fill.Price)
	}
}

func TestFill_SellSide(t *testing.T) {
	raw := domain.RawFill{
		Maker:             watched,
		MakerAssetID:      "987654321",
		TakerAssetID:      "0",
		MakerAmountFilled: "50000000", // 50 shares
		TakerAmountFilled: "30000000", // 30 USDC
	}
	fill, ok := Fill(raw, watched)
	if !ok {
		t.Fatal("expected fill to decode")
	}
	if fill.Side != domain.FillSideSell {
		t.Errorf("side = %s, want SELL", fill.Side)
	}
	if fill.TokenID != "987654321" {
		t.Errorf("tokenID = %s, want 987654321", fill.TokenID)
	}
	if fill.Shares != 50 {
		t.Errorf("shares = %v, want 50", fill.Shares)
	}
	if fill.Price != 0.60 {
		t.Errorf("price = %v, want 0.60", fill.Price)
	}
}

func TestFill_MakerCaseInsensitive(t *testing.T) {
	raw := rawBuy("1000000", "2000000")
	raw.Maker = "0xabcd000000000000000000000000000000000001"
	if _, ok := Fill(raw, watched); !ok {
		t.Error("address comparison should ignore case")
	}
}

func TestFill_NotApplicable(t *testing.T) {
	tests := []struct {
		name string
		raw  domain.RawFill
	}{
		{"wrong maker", domain.RawFill{
			Maker: "0x0000000000000000000000000000000000000002", MakerAssetID: "0",
			TakerAssetID: "1", MakerAmountFilled: "1", TakerAmountFilled: "1",
		}},
		{"no collateral leg", domain.RawFill{
			Maker: watched, MakerAssetID: "7", TakerAssetID: "8",
			MakerAmountFilled: "1", TakerAmountFilled: "1",
		}},
		{"zero shares", rawBuy("40000000", "0")},
		{"unparseable amount", rawBuy("not-a-number", "100000000")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := Fill(tc.raw, watched); ok {
				t.Error("expected decode to reject event")
			}
		})
	}
}

func TestFill_IntegerDivisionTruncates(t *testing.T) {
	// 1 USDC over 3 shares: scaled quotient truncates, no float rounding up.
	fill, ok := Fill(rawBuy("1000000", "3000000"), watched)
	if !ok {
		t.Fatal("expected fill to decode")
	}
	if fill.Price != 0.333333 {
		t.Errorf("price = %v, want 0.333333", fill.Price)
	}
}

package sizing

import (
	"math"
	"testing"

	"github.com/alanyoungcy/polycopy/internal/domain"
)

func defaultPolicy() *Policy {
	return New(Config{SizeMultiplier: 1.0, MinShares: 1, MaxNotionalUSD: 50})
}

func TestSize_BuyNotionalCapped(t *testing.T) {
	// 200 shares at 0.40 is 80 USDC notional; cap at 50 shrinks shares.
	order, ok := defaultPolicy().Size(domain.DecodedFill{
		Side: domain.FillSideBuy, TokenID: "t", Shares: 200, Price: 0.40,
	})
	if !ok {
		t.Fatal("expected order to be accepted")
	}
	if order.Shares != 125 {
		t.Errorf("shares = %v, want 125", order.Shares)
	}
	if math.Abs(order.Notional-50.0) > 1e-9 {
		t.Errorf("notional = %v, want 50.00", order.Notional)
	}
	if order.Price != 0.40 {
		t.Errorf("price = %v, want 0.40 (cap shrinks shares, not price)", order.Price)
	}
}

func TestSize_SellNeverCapped(t *testing.T) {
	// A sell far above the buy cap passes through unchanged: the policy must
	// never prevent realizing an existing position.
	order, ok := defaultPolicy().Size(domain.DecodedFill{
		Side: domain.FillSideSell, TokenID: "t", Shares: 10_000, Price: 0.90,
	})
	if !ok {
		t.Fatal("expected sell to be accepted")
	}
	if order.Shares != 10_000 {
		t.Errorf("shares = %v, want 10000", order.Shares)
	}
}

func TestSize_SmallSellAccepted(t *testing.T) {
	order, ok := defaultPolicy().Size(domain.DecodedFill{
		Side: domain.FillSideSell, TokenID: "t", Shares: 10, Price: 0.02,
	})
	if !ok {
		t.Fatal("expected order to be accepted")
	}
	if order.Shares != 10 {
		t.Errorf("shares = %v, want 10", order.Shares)
	}
}

func TestSize_Rejections(t *testing.T) {
	p := defaultPolicy()
	tests := []struct {
		name string
		fill domain.DecodedFill
	}{
		{"zero price", domain.DecodedFill{Side: domain.FillSideBuy, Shares: 10, Price: 0}},
		{"negative price clamps to zero", domain.DecodedFill{Side: domain.FillSideBuy, Shares: 10, Price: -0.5}},
		{"zero shares", domain.DecodedFill{Side: domain.FillSideBuy, Shares: 0, Price: 0.5}},
		{"below min shares", domain.DecodedFill{Side: domain.FillSideBuy, Shares: 0.5, Price: 0.5}},
		{"nan shares", domain.DecodedFill{Side: domain.FillSideBuy, Shares: math.NaN(), Price: 0.5}},
		{"inf shares", domain.DecodedFill{Side: domain.FillSideBuy, Shares: math.Inf(1), Price: 0.5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := p.Size(tc.fill); ok {
				t.Error("expected rejection")
			}
		})
	}
}

func TestSize_CapThenBelowMinRejected(t *testing.T) {
	p := New(Config{SizeMultiplier: 1.0, MinShares: 200, MaxNotionalUSD: 50})
	// 300 shares pass the floor, but capping to 50/0.40 = 125 drops below it.
	if _, ok := p.Size(domain.DecodedFill{
		Side: domain.FillSideBuy, Shares: 300, Price: 0.40,
	}); ok {
		t.Error("expected rejection after notional cap shrank below min shares")
	}
}

func TestSize_PriceClampedAboveOne(t *testing.T) {
	order, ok := defaultPolicy().Size(domain.DecodedFill{
		Side: domain.FillSideSell, Shares: 10, Price: 1.7,
	})
	if !ok {
		t.Fatal("expected order to be accepted")
	}
	if order.Price != 1.0 {
		t.Errorf("price = %v, want clamp to 1.0", order.Price)
	}
}

func TestSize_MultiplierApplied(t *testing.T) {
	p := New(Config{SizeMultiplier: 0.5, MinShares: 1, MaxNotionalUSD: 1000})
	order, ok := p.Size(domain.DecodedFill{Side: domain.FillSideBuy, Shares: 100, Price: 0.25})
	if !ok {
		t.Fatal("expected order to be accepted")
	}
	if order.Shares != 50 {
		t.Errorf("shares = %v, want 50", order.Shares)
	}
}

package ledger

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polycopy/internal/domain"
)

const tok = "100200300"

func TestAverageCostScenario(t *testing.T) {
	l := New()

	l.OnBuy(tok, 100, 0.30)
	l.OnBuy(tok, 100, 0.50)

	m := l.Metrics(tok)
	require.InDelta(t, 0.40, m.AvgPrice, 1e-9)
	require.InDelta(t, 200, m.Shares, 1e-9)
	require.InDelta(t, 80, m.CostUSDC, 1e-9)

	l.OnSell(tok, 50, 0.60)

	m = l.Metrics(tok)
	require.InDelta(t, 10.00, m.RealizedUSDC, 1e-9, "(0.60-0.40)*50")
	require.InDelta(t, 150, m.Shares, 1e-9)
	require.InDelta(t, 60, m.CostUSDC, 1e-9)
	require.InDelta(t, 0.40, m.AvgPrice, 1e-9, "selling at avg cost keeps avg unchanged")
}

func TestOnSell_ClampsToHeld(t *testing.T) {
	l := New()
	l.OnBuy(tok, 10, 0.50)
	l.OnSell(tok, 100, 0.70)

	m := l.Metrics(tok)
	require.Equal(t, 0.0, m.Shares)
	require.Equal(t, 0.0, m.CostUSDC)
	require.InDelta(t, (0.70-0.50)*10, m.RealizedUSDC, 1e-9, "only held shares realize PnL")
}

func TestOnSell_FlatPositionNoOp(t *testing.T) {
	l := New()
	l.OnSell(tok, 50, 0.80)

	m := l.Metrics(tok)
	require.Equal(t, 0.0, m.Shares)
	require.Equal(t, 0.0, m.RealizedUSDC)
	require.Equal(t, 0.80, m.LastPrice, "sell still marks the price")
}

func TestMarkPrice_OnlyTouchesLastPrice(t *testing.T) {
	l := New()
	l.OnBuy(tok, 100, 0.40)
	l.MarkPrice(tok, 0.55)

	m := l.Metrics(tok)
	require.Equal(t, 0.55, m.LastPrice)
	require.InDelta(t, 40, m.CostUSDC, 1e-9)
	require.Equal(t, 0.0, m.RealizedUSDC)
	require.InDelta(t, 100*0.55-40, m.UnrealizedUSDC, 1e-9)
}

func TestInvariants_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l := New()

	for i := 0; i < 5000; i++ {
		shares := rng.Float64() * 100
		price := rng.Float64()
		switch rng.Intn(3) {
		case 0:
			l.OnBuy(tok, shares, price)
		case 1:
			l.OnSell(tok, shares, price)
		default:
			l.MarkPrice(tok, price)
		}

		m := l.Metrics(tok)
		if m.Shares < 0 {
			t.Fatalf("step %d: shares went negative: %v", i, m.Shares)
		}
		if m.CostUSDC < 0 {
			t.Fatalf("step %d: cost basis went negative: %v", i, m.CostUSDC)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	l := New()
	l.OnBuy("a", 100, 0.30)
	l.OnBuy("a", 50, 0.60)
	l.OnSell("a", 75, 0.50)
	l.OnBuy("b", 10, 0.10)
	l.OnSell("b", 10, 0.90) // back to flat, realized stays
	l.MarkPrice("c", 0.42)

	restored := New()
	restored.Restore(l.Snapshot())

	for _, id := range []string{"a", "b", "c"} {
		want := l.Metrics(id)
		got := restored.Metrics(id)
		require.Equal(t, want, got, "token %s", id)
	}
}

func TestRestore_SanitizesCorruptEntries(t *testing.T) {
	l := New()
	l.Restore(domain.LedgerSnapshot{
		"neg":  {Shares: -5, CostUSDC: -1, RealizedUSDC: 3, LastPrice: 0.4},
		"nan":  {Shares: math.NaN(), CostUSDC: math.Inf(1), RealizedUSDC: math.NaN(), LastPrice: math.NaN()},
		"flat": {Shares: 0, CostUSDC: 12, RealizedUSDC: -2, LastPrice: 0.9},
	})

	m := l.Metrics("neg")
	require.Equal(t, 0.0, m.Shares)
	require.Equal(t, 0.0, m.CostUSDC)
	require.Equal(t, 3.0, m.RealizedUSDC)

	m = l.Metrics("nan")
	require.Equal(t, 0.0, m.Shares)
	require.Equal(t, 0.0, m.CostUSDC)
	require.Equal(t, 0.0, m.RealizedUSDC)
	require.Equal(t, 0.0, m.LastPrice)

	m = l.Metrics("flat")
	require.Equal(t, 0.0, m.CostUSDC, "zero shares cannot carry cost basis")
	require.Equal(t, -2.0, m.RealizedUSDC)
}

func TestTokens(t *testing.T) {
	l := New()
	l.OnBuy("x", 1, 0.5)
	l.MarkPrice("y", 0.3)

	ids := l.Tokens()
	require.ElementsMatch(t, []string{"x", "y"}, ids)
}

package chain

import (
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func newTestStream(t *testing.T) *Stream {
	t.Helper()
	s, err := NewStream("wss://example.invalid", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	return s
}

// packUint256s builds event data from a list of uint256 values.
func packUint256s(vals ...*big.Int) []byte {
	out := make([]byte, 0, len(vals)*32)
	for _, v := range vals {
		out = append(out, common.LeftPadBytes(v.Bytes(), 32)...)
	}
	return out
}

func orderFilledLog(s *Stream, maker, taker common.Address) types.Log {
	return types.Log{
		Address: common.HexToAddress(CTFExchangeAddress),
		Topics: []common.Hash{
			s.topic0,
			common.HexToHash("0x01"), // orderHash
			common.BytesToHash(common.LeftPadBytes(maker.Bytes(), 32)),
			common.BytesToHash(common.LeftPadBytes(taker.Bytes(), 32)),
		},
		Data: packUint256s(
			big.NewInt(0),          // makerAssetId: USDC leg
			big.NewInt(0).SetBytes(common.FromHex("0x0de0b6b3a7640000")), // takerAssetId: token
			big.NewInt(40_000000),  // makerAmountFilled
			big.NewInt(100_000000), // takerAmountFilled
			big.NewInt(0),          // fee
		),
		BlockNumber: 123,
		TxHash:      common.HexToHash("0xabc"),
		Index:       7,
	}
}

func TestDecodeLog(t *testing.T) {
	s := newTestStream(t)
	maker := common.HexToAddress("0x1111111111111111111111111111111111111111")
	taker := common.HexToAddress("0x2222222222222222222222222222222222222222")

	fill, ok := s.decodeLog(orderFilledLog(s, maker, taker))
	if !ok {
		t.Fatal("expected log to decode")
	}
	if fill.Maker != maker.Hex() {
		t.Errorf("maker = %s, want %s", fill.Maker, maker.Hex())
	}
	if fill.MakerAssetID != "0" {
		t.Errorf("makerAssetId = %s, want 0", fill.MakerAssetID)
	}
	if fill.MakerAmountFilled != "40000000" || fill.TakerAmountFilled != "100000000" {
		t.Errorf("amounts = %s/%s, want 40000000/100000000", fill.MakerAmountFilled, fill.TakerAmountFilled)
	}
	if fill.LogIndex != 7 || fill.BlockNumber != 123 {
		t.Errorf("position = %d@%d, want 7@123", fill.LogIndex, fill.BlockNumber)
	}
	if fill.DedupKey() != fill.TxHash+":7" {
		t.Errorf("dedup key = %s", fill.DedupKey())
	}
}

func TestDecodeLogSkipsReorged(t *testing.T) {
	s := newTestStream(t)
	lg := orderFilledLog(s,
		common.HexToAddress("0x01"), common.HexToAddress("0x02"))
	lg.Removed = true

	if _, ok := s.decodeLog(lg); ok {
		t.Fatal("reorged log must be skipped")
	}
}

func TestDecodeLogSkipsWrongShape(t *testing.T) {
	s := newTestStream(t)
	lg := orderFilledLog(s,
		common.HexToAddress("0x01"), common.HexToAddress("0x02"))
	lg.Topics = lg.Topics[:2]

	if _, ok := s.decodeLog(lg); ok {
		t.Fatal("log with missing topics must be skipped")
	}
}

func TestBalanceOfCalldata(t *testing.T) {
	addr := common.HexToAddress("0x3333333333333333333333333333333333333333")
	data := balanceOfCalldata(addr)

	if len(data) != 36 {
		t.Fatalf("calldata length = %d, want 36", len(data))
	}
	// balanceOf(address) selector
	if got := common.Bytes2Hex(data[:4]); got != "70a08231" {
		t.Errorf("selector = %s, want 70a08231", got)
	}
	if got := common.BytesToAddress(data[4:]); got != addr {
		t.Errorf("arg = %s, want %s", got.Hex(), addr.Hex())
	}
}

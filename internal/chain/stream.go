// Package chain is the Polygon-facing layer: a live subscription to
// OrderFilled events on the Polymarket exchange contracts, and an ERC-20
// balance reader for the USDC funding wallet.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/polycopy/internal/domain"
)

// Polymarket exchange contracts on Polygon mainnet. Fills for negRisk
// markets are emitted by the second contract, so both are watched.
const (
	CTFExchangeAddress        = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	NegRiskCTFExchangeAddress = "0xC5d563A36AE78145C45a50134d48A1215220f80a"
)

const orderFilledABI = `[{
	"anonymous": false,
	"inputs": [
		{"indexed": true,  "name": "orderHash",         "type": "bytes32"},
		{"indexed": true,  "name": "maker",             "type": "address"},
		{"indexed": true,  "name": "taker",             "type": "address"},
		{"indexed": false, "name": "makerAssetId",      "type": "uint256"},
		{"indexed": false, "name": "takerAssetId",      "type": "uint256"},
		{"indexed": false, "name": "makerAmountFilled", "type": "uint256"},
		{"indexed": false, "name": "takerAmountFilled", "type": "uint256"},
		{"indexed": false, "name": "fee",               "type": "uint256"}
	],
	"name": "OrderFilled",
	"type": "event"
}]`

// Stream subscribes to OrderFilled logs over a websocket RPC endpoint and
// converts them to raw fill events. Implements domain.FillStream.
type Stream struct {
	wsURL  string
	logger *slog.Logger

	contract abi.ABI
	topic0   common.Hash
	query    ethereum.FilterQuery
}

// NewStream builds a stream for the given Polygon websocket endpoint.
func NewStream(wsURL string, logger *slog.Logger) (*Stream, error) {
	contract, err := abi.JSON(strings.NewReader(orderFilledABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse event abi: %w", err)
	}
	topic0 := contract.Events["OrderFilled"].ID

	return &Stream{
		wsURL:    wsURL,
		logger:   logger.With(slog.String("component", "chain")),
		contract: contract,
		topic0:   topic0,
		query: ethereum.FilterQuery{
			Addresses: []common.Address{
				common.HexToAddress(CTFExchangeAddress),
				common.HexToAddress(NegRiskCTFExchangeAddress),
			},
			Topics: [][]common.Hash{{topic0}},
		},
	}, nil
}

// Run dials the endpoint, subscribes, and forwards decoded fills until the
// context is cancelled or the subscription drops. A dropped subscription is
// returned as an error: the chain feed is the trigger for the whole pipeline
// and the process must not keep running without it.
func (s *Stream) Run(ctx context.Context, out chan<- domain.RawFill) error {
	client, err := ethclient.DialContext(ctx, s.wsURL)
	if err != nil {
		return fmt.Errorf("chain: dial %s: %w", s.wsURL, err)
	}
	defer client.Close()

	logs := make(chan types.Log, 256)
	sub, err := client.SubscribeFilterLogs(ctx, s.query, logs)
	if err != nil {
		return fmt.Errorf("chain: subscribe logs: %w", err)
	}
	defer sub.Unsubscribe()

	s.logger.Info("subscribed to OrderFilled events",
		slog.String("endpoint", s.wsURL),
		slog.String("topic0", s.topic0.Hex()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("chain: subscription lost: %w", err)
		case lg := <-logs:
			fill, ok := s.decodeLog(lg)
			if !ok {
				continue
			}
			select {
			case out <- fill:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// decodeLog unpacks one OrderFilled log into a raw fill. Logs from removed
// (reorged) blocks and logs that do not unpack cleanly are skipped.
func (s *Stream) decodeLog(lg types.Log) (domain.RawFill, bool) {
	if lg.Removed {
		return domain.RawFill{}, false
	}
	if len(lg.Topics) != 4 || lg.Topics[0] != s.topic0 {
		return domain.RawFill{}, false
	}

	vals, err := s.contract.Unpack("OrderFilled", lg.Data)
	if err != nil || len(vals) != 5 {
		s.logger.Warn("skipping undecodable OrderFilled log",
			slog.String("tx", lg.TxHash.Hex()),
			slog.Uint64("logIndex", uint64(lg.Index)))
		return domain.RawFill{}, false
	}

	amounts := make([]string, 0, 4)
	for _, v := range vals[:4] {
		n, ok := v.(*big.Int)
		if !ok {
			return domain.RawFill{}, false
		}
		amounts = append(amounts, n.String())
	}

	return domain.RawFill{
		TxHash:            lg.TxHash.Hex(),
		LogIndex:          uint(lg.Index),
		Maker:             common.BytesToAddress(lg.Topics[2].Bytes()).Hex(),
		Taker:             common.BytesToAddress(lg.Topics[3].Bytes()).Hex(),
		MakerAssetID:      amounts[0],
		TakerAssetID:      amounts[1],
		MakerAmountFilled: amounts[2],
		TakerAmountFilled: amounts[3],
		BlockNumber:       lg.BlockNumber,
		Timestamp:         time.Now(),
		NegRisk:           lg.Address == common.HexToAddress(NegRiskCTFExchangeAddress),
	}, true
}

package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/polycopy/internal/domain"
)

// USDCAddress is the bridged USDC contract on Polygon mainnet, the
// collateral token for all Polymarket markets.
const USDCAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

// usdcScale converts raw 6-decimal balances to whole USDC.
var usdcScale = new(big.Float).SetFloat64(1e6)

// BalanceReader reads ERC-20 balances via eth_call. Implements
// domain.BalanceSource for the USDC funding wallet.
type BalanceReader struct {
	rpcURL string
	token  common.Address

	client *ethclient.Client
}

// NewBalanceReader builds a reader against the given RPC endpoint. The
// connection is dialed lazily on first use.
func NewBalanceReader(rpcURL string) *BalanceReader {
	return &BalanceReader{
		rpcURL: rpcURL,
		token:  common.HexToAddress(USDCAddress),
	}
}

// USDCBalance returns the current USDC balance of addr in whole tokens.
func (r *BalanceReader) USDCBalance(ctx context.Context, addr string) (float64, error) {
	if r.client == nil {
		client, err := ethclient.DialContext(ctx, r.rpcURL)
		if err != nil {
			return 0, fmt.Errorf("chain: dial %s: %w", r.rpcURL, err)
		}
		r.client = client
	}

	data := balanceOfCalldata(common.HexToAddress(addr))
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.token, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("chain: balanceOf call: %w", err)
	}
	if len(out) < 32 {
		return 0, fmt.Errorf("chain: balanceOf returned %d bytes", len(out))
	}

	raw := new(big.Int).SetBytes(out[:32])
	adjusted, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), usdcScale).Float64()
	return adjusted, nil
}

// Close releases the RPC connection if one was dialed.
func (r *BalanceReader) Close() {
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
}

// balanceOfCalldata encodes balanceOf(address): 4-byte selector plus the
// address left-padded to 32 bytes.
func balanceOfCalldata(addr common.Address) []byte {
	selector := ethcrypto.Keccak256([]byte("balanceOf(address)"))[:4]
	arg := common.LeftPadBytes(addr.Bytes(), 32)
	return append(selector, arg...)
}

var _ domain.BalanceSource = (*BalanceReader)(nil)

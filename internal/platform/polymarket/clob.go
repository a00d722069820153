// Package polymarket is the CLOB-facing layer: it builds, signs, and posts
// replica orders against the Polymarket CLOB REST API.
package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/polycopy/internal/chain"
	"github.com/alanyoungcy/polycopy/internal/crypto"
	"github.com/alanyoungcy/polycopy/internal/domain"
)

// zeroAddress is the open-taker sentinel for public orders.
const zeroAddress = "0x0000000000000000000000000000000000000000"

// ClobClient builds, signs, and submits orders to the Polymarket CLOB.
// Implements domain.OrderSubmitter.
//
// Submit returns the raw response body for any HTTP response, including
// non-2xx ones: the result classifier owns the success/failure judgement,
// and it needs the body to find the order id or the rejection message.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	hmacAuth   *crypto.HMACAuth
}

// NewClobClient creates a CLOB client. baseURL is the API root, e.g.
// "https://clob.polymarket.com". Call DeriveAPIKey before submitting.
func NewClobClient(baseURL string, signer *crypto.Signer) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer: signer,
	}
}

// Submit signs and posts one replica order. The returned bytes are the raw
// CLOB response body; err is non-nil only for transport-level failures and
// for non-2xx statuses (with the body still returned alongside).
func (c *ClobClient) Submit(ctx context.Context, req domain.OrderRequest) ([]byte, error) {
	payload, err := c.buildOrder(req)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: build order: %w", err)
	}

	exchange := chain.CTFExchangeAddress
	if req.NegRisk {
		exchange = chain.NegRiskCTFExchangeAddress
	}
	sig, err := c.signer.SignOrder(payload, common.HexToAddress(exchange))
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: %w: %s", domain.ErrSigningFailed, err)
	}

	body := map[string]any{
		"order": map[string]any{
			"salt":          payload.Salt,
			"maker":         payload.Maker,
			"signer":        payload.Signer,
			"taker":         payload.Taker,
			"tokenId":       payload.TokenID,
			"makerAmount":   payload.MakerAmount,
			"takerAmount":   payload.TakerAmount,
			"expiration":    payload.Expiration,
			"nonce":         payload.Nonce,
			"feeRateBps":    payload.FeeRateBps,
			"side":          string(req.Side),
			"signatureType": payload.SignatureType,
			"signature":     sig,
		},
		"owner":     c.ownerKey(),
		"orderType": "FOK",
	}

	return c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
}

// buildOrder converts a price/shares request into the integer amount pair
// the exchange settles on. Shares and USDC both carry 6 decimals; amounts
// are rounded to the nearest base unit.
func (c *ClobClient) buildOrder(req domain.OrderRequest) (crypto.OrderPayload, error) {
	if req.Shares <= 0 || req.Price < 0 {
		return crypto.OrderPayload{}, fmt.Errorf("invalid order: %f shares at %f", req.Shares, req.Price)
	}

	shareUnits := toBaseUnits(req.Shares)
	usdcUnits := toBaseUnits(req.Shares * req.Price)

	// BUY: the maker pays USDC for shares. SELL: the reverse.
	makerAmount, takerAmount := usdcUnits, shareUnits
	side := 0
	if req.Side == domain.FillSideSell {
		makerAmount, takerAmount = shareUnits, usdcUnits
		side = 1
	}

	address := c.signer.Address().Hex()
	return crypto.OrderPayload{
		Salt:          strconv.FormatInt(rand.Int63(), 10),
		Maker:         address,
		Signer:        address,
		Taker:         zeroAddress,
		TokenID:       req.TokenID,
		MakerAmount:   makerAmount.String(),
		TakerAmount:   takerAmount.String(),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          side,
		SignatureType: 0,
	}, nil
}

// DeriveAPIKey performs the CLOB auth flow to obtain an HMAC API key. It
// signs a ClobAuth EIP-712 message and sends it with L1 headers to the
// derive-api-key endpoint. On success it populates the client's hmacAuth.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) error {
	address := c.signer.Address().Hex()
	timestamp := time.Now().Unix()
	nonce := int64(0)

	sig, err := c.signer.SignAuthMessage(address, timestamp, nonce)
	if err != nil {
		return fmt.Errorf("polymarket/clob: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("POLY_NONCE", strconv.FormatInt(nonce, 10))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket/clob: auth request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polymarket/clob: auth failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return fmt.Errorf("polymarket/clob: decode auth response: %w", err)
	}

	c.hmacAuth = &crypto.HMACAuth{
		Key:        authResp.APIKey,
		Secret:     authResp.Secret,
		Passphrase: authResp.Passphrase,
	}

	return nil
}

func (c *ClobClient) ownerKey() string {
	if c.hmacAuth != nil {
		return c.hmacAuth.Key
	}
	return ""
}

// doAuthenticatedRequest builds, signs (HMAC), sends, and reads an HTTP
// request against the CLOB API. The raw body is returned even on non-2xx
// statuses so the caller can inspect the rejection.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.hmacAuth != nil {
		address := c.signer.Address().Hex()
		for k, v := range c.hmacAuth.L2Headers(address, method, path, bodyStr) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, fmt.Errorf("polymarket/clob: http %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return respBody, nil
}

// toBaseUnits converts a 6-decimal quantity to its integer base-unit form.
func toBaseUnits(v float64) *big.Int {
	scaled := math.Round(v * 1e6)
	out, _ := new(big.Float).SetFloat64(scaled).Int(nil)
	return out
}

var _ domain.OrderSubmitter = (*ClobClient)(nil)

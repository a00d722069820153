// Package feed keeps the ledger's mark prices fresh between copied trades.
// It subscribes to the Polymarket CLOB market websocket for every token the
// ledger currently holds and marks the last traded price into the ledger.
//
// The feed is advisory: losing it degrades unrealized-PnL freshness but
// never stops the copy pipeline, so connection errors reconnect with
// backoff instead of failing the process.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polycopy/internal/domain"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second

	// resubscribeInterval bounds how stale the token subscription set can
	// get as positions are opened and closed.
	resubscribeInterval = 30 * time.Second
)

// PositionBook is the slice of the ledger the feed needs: the held tokens
// to subscribe to and the mark-price entry point.
type PositionBook interface {
	Tokens() []string
	MarkPrice(tokenID string, price float64)
}

// Feed streams last-trade prices for held tokens into the position book,
// optionally mirroring each price into an external cache.
type Feed struct {
	wsURL  string
	book   PositionBook
	prices domain.PriceCache // may be nil
	logger *slog.Logger
}

// New creates a mark-price feed. wsURL is the CLOB market websocket, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market". prices may be nil.
func New(wsURL string, book PositionBook, prices domain.PriceCache, logger *slog.Logger) *Feed {
	return &Feed{
		wsURL:  wsURL,
		book:   book,
		prices: prices,
		logger: logger.With(slog.String("component", "feed")),
	}
}

// Run maintains the websocket session until the context is cancelled,
// reconnecting with exponential backoff on any connection failure.
func (f *Feed) Run(ctx context.Context) error {
	delay := reconnectDelay

	for {
		err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("market feed disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// session runs one websocket connection to completion.
func (f *Feed) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	subscribed := f.subscribe(conn, nil)

	// Writer side: pings, subscription refresh, and shutdown.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		pingT := time.NewTicker(pingPeriod)
		defer pingT.Stop()
		subT := time.NewTicker(resubscribeInterval)
		defer subT.Stop()

		for {
			select {
			case <-ctx.Done():
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
				return
			case <-pingT.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-subT.C:
				subscribed = f.subscribe(conn, subscribed)
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			<-writeDone
			return err
		}
		f.handleMessage(ctx, message)
	}
}

// subscribe sends a market subscription for the currently held tokens when
// the set differs from what was already subscribed. It returns the set now
// covered by the connection.
func (f *Feed) subscribe(conn *websocket.Conn, current []string) []string {
	tokens := f.book.Tokens()
	sort.Strings(tokens)
	if equalSets(tokens, current) || len(tokens) == 0 {
		return current
	}

	cmd := map[string]any{
		"type":       "market",
		"assets_ids": tokens,
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return current
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return current
	}

	f.logger.Debug("subscribed to market channel", slog.Int("tokens", len(tokens)))
	return tokens
}

// lastTradeMessage is the CLOB "last_trade_price" event shape. Prices come
// over the wire as decimal strings.
type lastTradeMessage struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
}

func (f *Feed) handleMessage(ctx context.Context, raw []byte) {
	var msg lastTradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.EventType != "last_trade_price" {
		return
	}

	assetID := strings.TrimSpace(msg.AssetID)
	price, err := strconv.ParseFloat(msg.Price, 64)
	if assetID == "" || err != nil || price < 0 {
		return
	}

	f.book.MarkPrice(assetID, price)

	if f.prices != nil {
		cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := f.prices.SetPrice(cacheCtx, assetID, price); err != nil {
			f.logger.Debug("price cache update failed", slog.String("error", err.Error()))
		}
	}
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

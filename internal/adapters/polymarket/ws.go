package polymarket

// ws.go — feed push de orderbooks del canal "market" del CLOB.
//
// Entrega los mismos books que consume el stop-loss; no tiene lógica propia.
// El feed mantiene el set de tokens suscritos y lo restaura en cada reconexión.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/resolvebot/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	defaultWSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	reconnectDelay    = 5 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// BookHandler recibe cada snapshot de book del feed.
type BookHandler func(domain.OrderBook)

// wsSubscription es el mensaje de suscripción inicial al canal market.
type wsSubscription struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assets_ids"`
}

// wsOperation suscribe o desuscribe tokens sobre una conexión abierta.
type wsOperation struct {
	AssetIDs  []string `json:"assets_ids"`
	Operation string   `json:"operation"`
}

// BookFeed es el cliente WebSocket del feed de books.
type BookFeed struct {
	wsURL   string
	handler BookHandler

	minDelay time.Duration
	maxDelay time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	assets map[string]struct{}
}

// FeedOption configura un BookFeed.
type FeedOption func(*BookFeed)

// WithReconnectBackoff fija la espera inicial y máxima entre reconexiones.
func WithReconnectBackoff(initial, ceiling time.Duration) FeedOption {
	return func(f *BookFeed) {
		if initial > 0 {
			f.minDelay = initial
		}
		if ceiling >= f.minDelay {
			f.maxDelay = ceiling
		}
	}
}

// NewBookFeed crea un feed que entrega books a handler.
func NewBookFeed(wsURL string, handler BookHandler, opts ...FeedOption) *BookFeed {
	if wsURL == "" {
		wsURL = defaultWSURL
	}
	f := &BookFeed{
		wsURL:    wsURL,
		handler:  handler,
		minDelay: reconnectDelay,
		maxDelay: maxReconnectDelay,
		assets:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run mantiene la conexión hasta que ctx se cancele, reconectando con backoff
// exponencial. El backoff vuelve al mínimo tras cada sesión que llegó a suscribirse.
func (f *BookFeed) Run(ctx context.Context) error {
	delay := f.minDelay
	for {
		connected, err := f.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = f.minDelay
		}
		slog.Warn("book feed disconnected", "err", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, f.maxDelay)
	}
}

// Sync ajusta las suscripciones al set de tokens dado.
// Sin conexión activa solo actualiza el set, que se envía al reconectar.
func (f *BookFeed) Sync(tokenIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	want := make(map[string]struct{}, len(tokenIDs))
	var added, removed []string
	for _, id := range tokenIDs {
		want[id] = struct{}{}
		if _, ok := f.assets[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range f.assets {
		if _, ok := want[id]; !ok {
			removed = append(removed, id)
		}
	}
	f.assets = want

	if f.conn == nil {
		return nil
	}
	if len(added) > 0 {
		if err := f.write(wsOperation{AssetIDs: added, Operation: "subscribe"}); err != nil {
			return fmt.Errorf("polymarket/ws: subscribe: %w", err)
		}
	}
	if len(removed) > 0 {
		if err := f.write(wsOperation{AssetIDs: removed, Operation: "unsubscribe"}); err != nil {
			return fmt.Errorf("polymarket/ws: unsubscribe: %w", err)
		}
	}
	if len(added)+len(removed) > 0 {
		slog.Debug("book feed subscriptions synced", "added", len(added), "removed", len(removed))
	}
	return nil
}

// Subscribed devuelve los tokens suscritos, ordenados.
func (f *BookFeed) Subscribed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assetList()
}

// session abre una conexión, restaura suscripciones y lee hasta que falle.
// connected indica si la sesión llegó a quedar suscrita.
func (f *BookFeed) session(ctx context.Context) (connected bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("polymarket/ws: connect: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	f.mu.Lock()
	f.conn = conn
	err = f.write(wsSubscription{Type: "market", AssetIDs: f.assetList()})
	f.mu.Unlock()
	if err != nil {
		f.drop(conn)
		return false, fmt.Errorf("polymarket/ws: restore subscriptions: %w", err)
	}
	slog.Info("book feed connected", "assets", len(f.Subscribed()))

	done := make(chan struct{})
	defer close(done)
	go f.pingLoop(conn, done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	defer f.drop(conn)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		f.handleMessage(message)
	}
}

// pingLoop envía pings periódicos para mantener viva la conexión.
func (f *BookFeed) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			f.mu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			f.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// handleMessage decodifica un mensaje (objeto o array) y despacha los books.
func (f *BookFeed) handleMessage(raw []byte) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return
	}

	var msgs []orderBookResponse
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &msgs); err != nil {
			return
		}
	} else {
		var msg orderBookResponse
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		msgs = append(msgs, msg)
	}

	for _, msg := range msgs {
		if msg.EventType != "book" || msg.AssetID == "" {
			continue
		}
		if f.handler != nil {
			f.handler(mapOrderBook(msg))
		}
	}
}

// write serializa v y lo envía. El llamador debe tener f.mu.
func (f *BookFeed) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return f.conn.WriteMessage(websocket.TextMessage, data)
}

func (f *BookFeed) drop(conn *websocket.Conn) {
	f.mu.Lock()
	if f.conn == conn {
		f.conn = nil
	}
	f.mu.Unlock()
	conn.Close()
}

// assetList devuelve el set suscrito ordenado. El llamador debe tener f.mu.
func (f *BookFeed) assetList() []string {
	ids := make([]string, 0, len(f.assets))
	for id := range f.assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

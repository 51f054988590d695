package primary

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	drepo "github.com/Altav1sta/stocks-checker/internal/domain/repository"
	phttp "github.com/Altav1sta/stocks-checker/pkg/http"

	"github.com/gorilla/websocket"
)

// Client implements a PrimaryStream backed by the primary venue's WebSocket
// streaming API plus its REST instrument catalog.
type Client struct {
	token          string
	restURL        string
	websocketURL   string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	rest *phttp.Client

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// Config holds the primary venue connection settings.
type Config struct {
	Token          string
	RestURL        string
	WebsocketURL   string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
}

// New creates a new primary venue stream.
func New(cfg Config) drepo.PrimaryStream {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Client{
		token:          cfg.Token,
		restURL:        cfg.RestURL,
		websocketURL:   cfg.WebsocketURL,
		reconnectDelay: cfg.ReconnectDelay,
		pingInterval:   cfg.PingInterval,
		rest:           phttp.NewClient(phttp.WithTimeout(15 * time.Second)),
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	header := map[string][]string{"Authorization": {"Bearer " + c.token}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, header)
	if err != nil {
		return fmt.Errorf("primary connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	log.Printf("primary: connected")
	return nil
}

type instrumentsResponse struct {
	Instruments []struct {
		ID       string `json:"figi"`
		Ticker   string `json:"ticker"`
		Currency string `json:"currency"`
	} `json:"instruments"`
}

// Instruments fetches the tradable share catalog over REST.
func (c *Client) Instruments(ctx context.Context) ([]models.Instrument, error) {
	var resp instrumentsResponse
	err := c.rest.SendAndParse(ctx, &phttp.RequestOptions{
		Method:      phttp.MethodGet,
		URL:         c.restURL + "/instruments/shares",
		Headers:     map[string]string{"Authorization": "Bearer " + c.token},
		QueryParams: map[string][]string{"instrument_status": {"base"}},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("primary instruments: %w", err)
	}
	out := make([]models.Instrument, 0, len(resp.Instruments))
	for _, ins := range resp.Instruments {
		out = append(out, models.Instrument{ID: ins.ID, Ticker: ins.Ticker, Currency: ins.Currency})
	}
	return out, nil
}

type subscribeRequest struct {
	Action      string                  `json:"subscription_action"`
	Instruments []subscribeInstrumentID `json:"instruments"`
	Depth       int                     `json:"depth"`
}

type subscribeInstrumentID struct {
	ID string `json:"figi"`
}

// Subscribe requests depth-1 orderbook updates for the given instruments.
func (c *Client) Subscribe(ctx context.Context, instrumentIDs []string) error {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.mu.Unlock()
	if conn == nil || !connected {
		return fmt.Errorf("primary not connected")
	}

	// the venue caps instruments per subscribe frame
	const batch = 100
	for from := 0; from < len(instrumentIDs); from += batch {
		to := from + batch
		if to > len(instrumentIDs) {
			to = len(instrumentIDs)
		}
		ids := make([]subscribeInstrumentID, 0, to-from)
		for _, id := range instrumentIDs[from:to] {
			ids = append(ids, subscribeInstrumentID{ID: id})
		}
		msg := map[string]subscribeRequest{
			"subscribe_order_book_request": {Action: "SUBSCRIBE", Instruments: ids, Depth: 1},
		}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("primary subscribe: %w", err)
		}
	}
	log.Printf("primary: subscribed %d instruments", len(instrumentIDs))
	return nil
}

type wsOrder struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

type wsOrderBook struct {
	InstrumentID string    `json:"figi"`
	Bids         []wsOrder `json:"bids"`
	Asks         []wsOrder `json:"asks"`
	Time         time.Time `json:"time"`
}

type wsMessage struct {
	OrderBook *wsOrderBook `json:"orderbook"`
}

// Read streams depth-1 orderbook events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.OrderBookEvent, <-chan error) {
	events := make(chan *models.OrderBookEvent, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn == nil {
					errs <- fmt.Errorf("primary conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("primary read: %w", err)
					return
				}
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-orderbook frames
					continue
				}
				if m.OrderBook == nil {
					continue
				}
				ev := &models.OrderBookEvent{InstrumentID: m.OrderBook.InstrumentID, Time: m.OrderBook.Time}
				if len(m.OrderBook.Bids) > 0 {
					ev.Bid = &models.BookSide{Price: m.OrderBook.Bids[0].Price, Size: m.OrderBook.Bids[0].Quantity}
				}
				if len(m.OrderBook.Asks) > 0 {
					ev.Ask = &models.BookSide{Price: m.OrderBook.Asks[0].Price, Size: m.OrderBook.Asks[0].Quantity}
				}
				if ev.Bid == nil && ev.Ask == nil {
					continue
				}
				select {
				case events <- ev:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return events, errs
}

// Reconnect closes and redials. Resubscribing is the caller's job since it
// owns the instrument list.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	return c.Connect(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

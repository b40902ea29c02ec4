package venue

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/breaker"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
)

// CoinbaseAdapter multiplexes every subscribed instrument over a single
// shared websocket connection on Coinbase's public "ticker" channel.
type CoinbaseAdapter struct {
	*base

	httpClient *http.Client
	wsTimeout  time.Duration
	notifier   FailureNotifier
	catalogCB  *breaker.Breaker
	catalogRL  *rate.Limiter
	clock      Clock

	mu      sync.Mutex
	conn    *websocket.Conn
	sinks   map[string]Sink
	toInstr map[string]model.Instrument
	stopCh  chan struct{}
}

func NewCoinbaseAdapter(wsTimeout, reconnectDelay time.Duration, notifier FailureNotifier) *CoinbaseAdapter {
	return &CoinbaseAdapter{
		base:       newBase(model.VenueCoinbase, reconnectDelay),
		httpClient: &http.Client{Timeout: wsTimeout},
		wsTimeout:  wsTimeout,
		notifier:   notifier,
		catalogCB:  breaker.New("coinbase-catalog"),
		catalogRL:  rate.NewLimiter(rate.Every(time.Second), 1),
		clock:      time.Now,
		sinks:      make(map[string]Sink),
		toInstr:    make(map[string]model.Instrument),
	}
}

func (a *CoinbaseAdapter) Venue() model.Venue { return model.VenueCoinbase }

func (a *CoinbaseAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.stopCh == nil {
		a.stopCh = make(chan struct{})
		go a.connectionLoop()
	}
	a.mu.Unlock()
	return nil
}

func (a *CoinbaseAdapter) Stop() error {
	a.mu.Lock()
	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
	}
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	a.sinks = make(map[string]Sink)
	a.toInstr = make(map[string]model.Instrument)
	a.mu.Unlock()
	a.setConnected(false)
	return nil
}

type coinbaseProduct struct {
	ID          string `json:"id"`
	BaseCurrency string `json:"base_currency"`
	QuoteCurrency string `json:"quote_currency"`
	TradingDisabled bool `json:"trading_disabled"`
}

func (a *CoinbaseAdapter) FetchCatalog(ctx context.Context, fallback []model.Instrument) ([]model.CatalogEntry, error) {
	if err := a.catalogRL.Wait(ctx); err != nil {
		return fallbackEntries(fallback), nil
	}
	result, err := a.catalogCB.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.exchange.coinbase.com/products", nil)
		if err != nil {
			return nil, err
		}
		resp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		var products []coinbaseProduct
		if err := json.Unmarshal(body, &products); err != nil {
			return nil, err
		}
		return products, nil
	})
	if err != nil {
		a.setLastError(err.Error())
		if a.notifier != nil {
			a.notifier.Notify(model.VenueCoinbase, FailureCatalogUnavailable, err.Error())
		}
		return fallbackEntries(fallback), nil
	}

	products := result.([]coinbaseProduct)
	entries := make([]model.CatalogEntry, 0, len(products))
	for _, p := range products {
		if p.TradingDisabled {
			continue
		}
		instr := model.NewInstrument(p.BaseCurrency, p.QuoteCurrency)
		entries = append(entries, model.CatalogEntry{Instrument: instr, Base: instr.Base(), Quote: instr.Quote(), Tradable: true})
	}
	return entries, nil
}

// productID converts BTC/USDT to Coinbase's BTC-USDT wire form.
func productID(i model.Instrument) string {
	return i.Base() + "-" + i.Quote()
}

func (a *CoinbaseAdapter) Subscribe(instrument model.Instrument, sink Sink) error {
	id := productID(instrument)
	a.mu.Lock()
	a.sinks[id] = sink
	a.toInstr[id] = instrument
	conn := a.conn
	a.mu.Unlock()
	a.markSubscribed(instrument)

	if conn != nil {
		return conn.WriteJSON(coinbaseSubscribeMsg([]string{id}, "subscribe"))
	}
	return nil
}

func coinbaseSubscribeMsg(productIDs []string, typ string) map[string]any {
	return map[string]any{
		"type":        typ,
		"product_ids": productIDs,
		"channels":    []string{"ticker"},
	}
}

func (a *CoinbaseAdapter) Unsubscribe(instrument model.Instrument) error {
	id := productID(instrument)
	a.mu.Lock()
	delete(a.sinks, id)
	delete(a.toInstr, id)
	conn := a.conn
	a.mu.Unlock()
	a.markUnsubscribed(instrument)

	if conn != nil {
		return conn.WriteJSON(coinbaseSubscribeMsg([]string{id}, "unsubscribe"))
	}
	return nil
}

func (a *CoinbaseAdapter) Status() Status { return a.status() }

func (a *CoinbaseAdapter) connectionLoop() {
	for {
		a.mu.Lock()
		stop := a.stopCh
		a.mu.Unlock()
		if stop == nil {
			return
		}
		select {
		case <-stop:
			return
		default:
		}

		dialer := websocket.Dialer{HandshakeTimeout: a.wsTimeout}
		conn, _, err := dialer.Dial("wss://ws-feed.exchange.coinbase.com", nil)
		if err != nil {
			a.setLastError(err.Error())
			if a.notifier != nil {
				a.notifier.Notify(model.VenueCoinbase, FailureStreamOpenFailed, err.Error())
			}
			if !a.sleepOrStop(a.nextBackoff(), stop) {
				return
			}
			continue
		}

		a.mu.Lock()
		a.conn = conn
		ids := make([]string, 0, len(a.sinks))
		for id := range a.sinks {
			ids = append(ids, id)
		}
		a.mu.Unlock()
		a.setConnected(true)

		if len(ids) > 0 {
			_ = conn.WriteJSON(coinbaseSubscribeMsg(ids, "subscribe"))
		}

		a.readLoop(conn, stop)

		a.mu.Lock()
		if a.conn == conn {
			a.conn = nil
		}
		a.mu.Unlock()
		a.setConnected(false)

		select {
		case <-stop:
			return
		default:
			if !a.sleepOrStop(a.nextBackoff(), stop) {
				return
			}
		}
	}
}

type coinbaseTickerFrame struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Volume24h string `json:"volume_24h"`
	High24h   string `json:"high_24h"`
	Low24h    string `json:"low_24h"`
}

func (a *CoinbaseAdapter) readLoop(conn *websocket.Conn, stop chan struct{}) {
	defer conn.Close()
	for {
		select {
		case <-stop:
			return
		default:
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			a.setLastError(err.Error())
			if a.notifier != nil {
				a.notifier.Notify(model.VenueCoinbase, FailureStreamClosedUnexpected, err.Error())
			}
			return
		}
		a.handleFrame(msg)
	}
}

func (a *CoinbaseAdapter) handleFrame(msg []byte) {
	var frame coinbaseTickerFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		if a.notifier != nil {
			a.notifier.Notify(model.VenueCoinbase, FailureParseFailed, err.Error())
		}
		return
	}
	if frame.Type != "ticker" {
		return
	}
	a.mu.Lock()
	sink, ok := a.sinks[frame.ProductID]
	instrument := a.toInstr[frame.ProductID]
	a.mu.Unlock()
	if !ok {
		return
	}
	price, err := strconv.ParseFloat(frame.Price, 64)
	if err != nil || price <= 0 {
		return
	}
	vol, _ := strconv.ParseFloat(frame.Volume24h, 64)
	high, _ := strconv.ParseFloat(frame.High24h, 64)
	low, _ := strconv.ParseFloat(frame.Low24h, 64)
	sink(model.Tick{
		Instrument: instrument, Venue: model.VenueCoinbase, Price: price,
		Volume: vol, High: high, Low: low, IngestTime: a.clock(),
	})
}

func (a *CoinbaseAdapter) sleepOrStop(d time.Duration, stop chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}

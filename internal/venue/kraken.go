package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/breaker"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
)

// KrakenAdapter multiplexes every subscribed instrument over a single
// shared websocket connection, matching Kraken's public ticker feed,
// and reconnects the whole connection (resubscribing every active
// instrument) on close or error.
type KrakenAdapter struct {
	*base

	httpClient *http.Client
	wsTimeout  time.Duration
	notifier   FailureNotifier
	catalogCB  *breaker.Breaker
	catalogRL  *rate.Limiter
	clock      Clock

	mu       sync.Mutex
	conn     *websocket.Conn
	sinks    map[string]Sink // keyed by Kraken wire pair
	toInstr  map[string]model.Instrument
	stopCh   chan struct{}
}

// NewKrakenAdapter builds a Kraken venue adapter.
func NewKrakenAdapter(wsTimeout, reconnectDelay time.Duration, notifier FailureNotifier) *KrakenAdapter {
	return &KrakenAdapter{
		base:       newBase(model.VenueKraken, reconnectDelay),
		httpClient: &http.Client{Timeout: wsTimeout},
		wsTimeout:  wsTimeout,
		notifier:   notifier,
		catalogCB:  breaker.New("kraken-catalog"),
		catalogRL:  rate.NewLimiter(rate.Every(time.Second), 1),
		clock:      time.Now,
		sinks:      make(map[string]Sink),
		toInstr:    make(map[string]model.Instrument),
	}
}

func (a *KrakenAdapter) Venue() model.Venue { return model.VenueKraken }

func (a *KrakenAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.stopCh == nil {
		a.stopCh = make(chan struct{})
		go a.connectionLoop()
	}
	a.mu.Unlock()
	return nil
}

func (a *KrakenAdapter) Stop() error {
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

type krakenAssetPairsResponse struct {
	Error  []string                          `json:"error"`
	Result map[string]krakenAssetPairDetail `json:"result"`
}

type krakenAssetPairDetail struct {
	Base      string `json:"base"`
	Quote     string `json:"quote"`
	WsName    string `json:"wsname"`
	Status    string `json:"status"`
}

func (a *KrakenAdapter) FetchCatalog(ctx context.Context, fallback []model.Instrument) ([]model.CatalogEntry, error) {
	if err := a.catalogRL.Wait(ctx); err != nil {
		return fallbackEntries(fallback), nil
	}
	result, err := a.catalogCB.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.kraken.com/0/public/AssetPairs", nil)
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
		var out krakenAssetPairsResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, err
		}
		if len(out.Error) > 0 {
			return nil, fmt.Errorf("kraken API error: %v", out.Error)
		}
		return out, nil
	})
	if err != nil {
		a.setLastError(err.Error())
		if a.notifier != nil {
			a.notifier.Notify(model.VenueKraken, FailureCatalogUnavailable, err.Error())
		}
		return fallbackEntries(fallback), nil
	}

	resp := result.(krakenAssetPairsResponse)
	entries := make([]model.CatalogEntry, 0, len(resp.Result))
	for _, p := range resp.Result {
		if p.Status != "online" {
			continue
		}
		instr := model.NewInstrument(canonicalizeKrakenAsset(p.Base), canonicalizeKrakenAsset(p.Quote))
		entries = append(entries, model.CatalogEntry{
			Instrument: instr, Base: instr.Base(), Quote: instr.Quote(), Tradable: true,
		})
	}
	return entries, nil
}

// canonicalizeKrakenAsset strips Kraken's legacy "X"/"Z" asset code
// prefixes (e.g. XXBT -> BTC, ZUSD -> USD).
func canonicalizeKrakenAsset(a string) string {
	switch a {
	case "XXBT", "XBT":
		return "BTC"
	case "XETH":
		return "ETH"
	case "ZUSD":
		return "USD"
	case "ZUSDT", "USDT":
		return "USDT"
	}
	if len(a) == 4 && (a[0] == 'X' || a[0] == 'Z') {
		return a[1:]
	}
	return a
}

// wireName converts BTC/USDT to Kraken's BTC/USDT-ish wsname form (Kraken
// generally keeps BASE/QUOTE already, aside from legacy BTC aliasing).
func wireName(i model.Instrument) string {
	base := i.Base()
	if base == "BTC" {
		base = "XBT"
	}
	return base + "/" + i.Quote()
}

func (a *KrakenAdapter) Subscribe(instrument model.Instrument, sink Sink) error {
	wire := wireName(instrument)
	a.mu.Lock()
	a.sinks[wire] = sink
	a.toInstr[wire] = instrument
	conn := a.conn
	a.mu.Unlock()
	a.markSubscribed(instrument)

	if conn != nil {
		return sendSubscribe(conn, wire)
	}
	return nil
}

func sendSubscribe(conn *websocket.Conn, wire string) error {
	msg := map[string]any{
		"event": "subscribe",
		"pair":  []string{wire},
		"subscription": map[string]string{
			"name": "ticker",
		},
	}
	return conn.WriteJSON(msg)
}

func (a *KrakenAdapter) Unsubscribe(instrument model.Instrument) error {
	wire := wireName(instrument)
	a.mu.Lock()
	delete(a.sinks, wire)
	delete(a.toInstr, wire)
	conn := a.conn
	a.mu.Unlock()
	a.markUnsubscribed(instrument)

	if conn != nil {
		msg := map[string]any{"event": "unsubscribe", "pair": []string{wire}, "subscription": map[string]string{"name": "ticker"}}
		return conn.WriteJSON(msg)
	}
	return nil
}

func (a *KrakenAdapter) Status() Status { return a.status() }

func (a *KrakenAdapter) connectionLoop() {
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
		conn, _, err := dialer.Dial("wss://ws.kraken.com", nil)
		if err != nil {
			a.setLastError(err.Error())
			if a.notifier != nil {
				a.notifier.Notify(model.VenueKraken, FailureStreamOpenFailed, err.Error())
			}
			if !a.sleepOrStop(a.nextBackoff(), stop) {
				return
			}
			continue
		}

		a.mu.Lock()
		a.conn = conn
		wires := make([]string, 0, len(a.sinks))
		for wire := range a.sinks {
			wires = append(wires, wire)
		}
		a.mu.Unlock()
		a.setConnected(true)

		for _, wire := range wires {
			_ = sendSubscribe(conn, wire)
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

type krakenTickerMessage struct {
	Close []string `json:"c"`
	Vol   []string `json:"v"`
	High  []string `json:"h"`
	Low   []string `json:"l"`
}

func (a *KrakenAdapter) readLoop(conn *websocket.Conn, stop chan struct{}) {
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
				a.notifier.Notify(model.VenueKraken, FailureStreamClosedUnexpected, err.Error())
			}
			return
		}
		a.handleFrame(msg)
	}
}

func (a *KrakenAdapter) handleFrame(msg []byte) {
	var generic []json.RawMessage
	if err := json.Unmarshal(msg, &generic); err != nil {
		return // event frames (subscriptionStatus, heartbeat) are JSON objects, not arrays; ignore
	}
	if len(generic) < 4 {
		return
	}
	var ticker krakenTickerMessage
	if err := json.Unmarshal(generic[1], &ticker); err != nil {
		if a.notifier != nil {
			a.notifier.Notify(model.VenueKraken, FailureParseFailed, err.Error())
		}
		return
	}
	var wire string
	if err := json.Unmarshal(generic[3], &wire); err != nil {
		return
	}

	a.mu.Lock()
	sink, ok := a.sinks[wire]
	instrument := a.toInstr[wire]
	a.mu.Unlock()
	if !ok || len(ticker.Close) == 0 {
		return
	}

	price, err := strconv.ParseFloat(ticker.Close[0], 64)
	if err != nil || price <= 0 {
		log.Debug().Str("venue", "kraken").Str("instrument", string(instrument)).Msg("dropped invalid tick")
		return
	}
	var vol, high, low float64
	if len(ticker.Vol) > 0 {
		vol, _ = strconv.ParseFloat(ticker.Vol[0], 64)
	}
	if len(ticker.High) > 0 {
		high, _ = strconv.ParseFloat(ticker.High[0], 64)
	}
	if len(ticker.Low) > 0 {
		low, _ = strconv.ParseFloat(ticker.Low[0], 64)
	}
	sink(model.Tick{
		Instrument: instrument, Venue: model.VenueKraken, Price: price,
		Volume: vol, High: high, Low: low, IngestTime: a.clock(),
	})
}

func (a *KrakenAdapter) sleepOrStop(d time.Duration, stop chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}

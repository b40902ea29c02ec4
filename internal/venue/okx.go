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

// OKXAdapter multiplexes every subscribed instrument over a single
// shared websocket connection on OKX's public "tickers" channel.
type OKXAdapter struct {
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

func NewOKXAdapter(wsTimeout, reconnectDelay time.Duration, notifier FailureNotifier) *OKXAdapter {
	return &OKXAdapter{
		base:       newBase(model.VenueOKX, reconnectDelay),
		httpClient: &http.Client{Timeout: wsTimeout},
		wsTimeout:  wsTimeout,
		notifier:   notifier,
		catalogCB:  breaker.New("okx-catalog"),
		catalogRL:  rate.NewLimiter(rate.Every(time.Second), 1),
		clock:      time.Now,
		sinks:      make(map[string]Sink),
		toInstr:    make(map[string]model.Instrument),
	}
}

func (a *OKXAdapter) Venue() model.Venue { return model.VenueOKX }

func (a *OKXAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.stopCh == nil {
		a.stopCh = make(chan struct{})
		go a.connectionLoop()
	}
	a.mu.Unlock()
	return nil
}

func (a *OKXAdapter) Stop() error {
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

type okxInstrument struct {
	InstID   string `json:"instId"`
	BaseCcy  string `json:"baseCcy"`
	QuoteCcy string `json:"quoteCcy"`
	State    string `json:"state"`
}

type okxInstrumentsResponse struct {
	Data []okxInstrument `json:"data"`
}

func (a *OKXAdapter) FetchCatalog(ctx context.Context, fallback []model.Instrument) ([]model.CatalogEntry, error) {
	if err := a.catalogRL.Wait(ctx); err != nil {
		return fallbackEntries(fallback), nil
	}
	result, err := a.catalogCB.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.okx.com/api/v5/public/instruments?instType=SPOT", nil)
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
		var out okxInstrumentsResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		a.setLastError(err.Error())
		if a.notifier != nil {
			a.notifier.Notify(model.VenueOKX, FailureCatalogUnavailable, err.Error())
		}
		return fallbackEntries(fallback), nil
	}

	out := result.(okxInstrumentsResponse)
	entries := make([]model.CatalogEntry, 0, len(out.Data))
	for _, inst := range out.Data {
		if inst.State != "live" {
			continue
		}
		i := model.NewInstrument(inst.BaseCcy, inst.QuoteCcy)
		entries = append(entries, model.CatalogEntry{Instrument: i, Base: i.Base(), Quote: i.Quote(), Tradable: true})
	}
	return entries, nil
}

// instID converts BTC/USDT to OKX's BTC-USDT wire form.
func instID(i model.Instrument) string {
	return i.Base() + "-" + i.Quote()
}

func (a *OKXAdapter) Subscribe(instrument model.Instrument, sink Sink) error {
	id := instID(instrument)
	a.mu.Lock()
	a.sinks[id] = sink
	a.toInstr[id] = instrument
	conn := a.conn
	a.mu.Unlock()
	a.markSubscribed(instrument)

	if conn != nil {
		return conn.WriteJSON(okxSubscribeMsg(id, "subscribe"))
	}
	return nil
}

func okxSubscribeMsg(instID, op string) map[string]any {
	return map[string]any{
		"op": op,
		"args": []map[string]string{
			{"channel": "tickers", "instId": instID},
		},
	}
}

func (a *OKXAdapter) Unsubscribe(instrument model.Instrument) error {
	id := instID(instrument)
	a.mu.Lock()
	delete(a.sinks, id)
	delete(a.toInstr, id)
	conn := a.conn
	a.mu.Unlock()
	a.markUnsubscribed(instrument)

	if conn != nil {
		return conn.WriteJSON(okxSubscribeMsg(id, "unsubscribe"))
	}
	return nil
}

func (a *OKXAdapter) Status() Status { return a.status() }

func (a *OKXAdapter) connectionLoop() {
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
		conn, _, err := dialer.Dial("wss://ws.okx.com:8443/ws/v5/public", nil)
		if err != nil {
			a.setLastError(err.Error())
			if a.notifier != nil {
				a.notifier.Notify(model.VenueOKX, FailureStreamOpenFailed, err.Error())
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

		for _, id := range ids {
			_ = conn.WriteJSON(okxSubscribeMsg(id, "subscribe"))
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

type okxTickerFrame struct {
	Arg  struct{ InstID string `json:"instId"` } `json:"arg"`
	Data []struct {
		Last string `json:"last"`
		Vol24h string `json:"vol24h"`
		High24h string `json:"high24h"`
		Low24h  string `json:"low24h"`
	} `json:"data"`
}

func (a *OKXAdapter) readLoop(conn *websocket.Conn, stop chan struct{}) {
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
				a.notifier.Notify(model.VenueOKX, FailureStreamClosedUnexpected, err.Error())
			}
			return
		}
		a.handleFrame(msg)
	}
}

func (a *OKXAdapter) handleFrame(msg []byte) {
	var frame okxTickerFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return // subscribe-ack / event frames don't match this shape; ignore
	}
	if frame.Arg.InstID == "" || len(frame.Data) == 0 {
		return
	}
	a.mu.Lock()
	sink, ok := a.sinks[frame.Arg.InstID]
	instrument := a.toInstr[frame.Arg.InstID]
	a.mu.Unlock()
	if !ok {
		return
	}
	d := frame.Data[0]
	price, err := strconv.ParseFloat(d.Last, 64)
	if err != nil || price <= 0 {
		return
	}
	vol, _ := strconv.ParseFloat(d.Vol24h, 64)
	high, _ := strconv.ParseFloat(d.High24h, 64)
	low, _ := strconv.ParseFloat(d.Low24h, 64)
	sink(model.Tick{
		Instrument: instrument, Venue: model.VenueOKX, Price: price,
		Volume: vol, High: high, Low: low, IngestTime: a.clock(),
	})
}

func (a *OKXAdapter) sleepOrStop(d time.Duration, stop chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}

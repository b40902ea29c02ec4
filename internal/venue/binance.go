package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/infra/limits"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/breaker"
	"github.com/Martirosyan-Hayk/FuturesArbitrageBot/internal/model"
)

// BinanceAdapter streams ticker frames over one dedicated websocket
// connection per subscribed instrument, reconnecting with geometric
// backoff on close or error, per spec.md §4.1.
type BinanceAdapter struct {
	*base

	httpClient *http.Client
	wsTimeout  time.Duration
	notifier   FailureNotifier
	catalogCB  *breaker.Breaker
	catalogRL  *rate.Limiter
	clock      Clock

	mu      sync.Mutex
	streams map[model.Instrument]chan struct{}
}

// NewBinanceAdapter builds a Binance venue adapter.
func NewBinanceAdapter(wsTimeout, reconnectDelay time.Duration, notifier FailureNotifier) *BinanceAdapter {
	return &BinanceAdapter{
		base:       newBase(model.VenueBinance, reconnectDelay),
		httpClient: &http.Client{Timeout: wsTimeout},
		wsTimeout:  wsTimeout,
		notifier:   notifier,
		catalogCB:  breaker.New("binance-catalog"),
		catalogRL:  rate.NewLimiter(rate.Every(time.Second), 1),
		clock:      time.Now,
		streams:    make(map[model.Instrument]chan struct{}),
	}
}

func (a *BinanceAdapter) Venue() model.Venue { return model.VenueBinance }

func (a *BinanceAdapter) Start(ctx context.Context) error {
	a.setConnected(true)
	return nil
}

func (a *BinanceAdapter) Stop() error {
	a.mu.Lock()
	for _, ch := range a.streams {
		close(ch)
	}
	a.streams = make(map[model.Instrument]chan struct{})
	a.mu.Unlock()
	a.setConnected(false)
	return nil
}

type binanceExchangeInfo struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
		Status     string `json:"status"`
	} `json:"symbols"`
}

func (a *BinanceAdapter) FetchCatalog(ctx context.Context, fallback []model.Instrument) ([]model.CatalogEntry, error) {
	if err := a.catalogRL.Wait(ctx); err != nil {
		return fallbackEntries(fallback), nil
	}
	result, err := a.catalogCB.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.binance.com/api/v3/exchangeInfo", nil)
		if err != nil {
			return nil, err
		}
		resp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		used1m, used := limits.ReadBinanceWeight(resp.Header)
		if used1m != "" {
			log.Debug().Str("venue", "binance").Str("usedWeight1m", used1m).Str("usedWeight", used).Msg("exchangeInfo rate limit weight")
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		var info binanceExchangeInfo
		if err := json.Unmarshal(body, &info); err != nil {
			return nil, err
		}
		return info, nil
	})
	if err != nil {
		a.setLastError(err.Error())
		if a.notifier != nil {
			a.notifier.Notify(model.VenueBinance, FailureCatalogUnavailable, err.Error())
		}
		return fallbackEntries(fallback), nil
	}

	info := result.(binanceExchangeInfo)
	entries := make([]model.CatalogEntry, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		entries = append(entries, model.CatalogEntry{
			Instrument: model.NewInstrument(s.BaseAsset, s.QuoteAsset),
			Base:       strings.ToUpper(s.BaseAsset),
			Quote:      strings.ToUpper(s.QuoteAsset),
			Tradable:   true,
		})
	}
	return entries, nil
}

func fallbackEntries(fallback []model.Instrument) []model.CatalogEntry {
	out := make([]model.CatalogEntry, 0, len(fallback))
	for _, i := range fallback {
		out = append(out, model.CatalogEntry{Instrument: i, Base: i.Base(), Quote: i.Quote(), Tradable: true})
	}
	return out
}

// NormalizeSymbol converts BTC/USDT to Binance's btcusdt wire form.
func (a *BinanceAdapter) NormalizeSymbol(i model.Instrument) string {
	return strings.ToLower(i.Base() + i.Quote())
}

func (a *BinanceAdapter) Subscribe(instrument model.Instrument, sink Sink) error {
	a.markSubscribed(instrument)
	stop := make(chan struct{})
	a.mu.Lock()
	a.streams[instrument] = stop
	a.mu.Unlock()

	go a.streamLoop(instrument, sink, stop)
	return nil
}

func (a *BinanceAdapter) Unsubscribe(instrument model.Instrument) error {
	a.mu.Lock()
	if ch, ok := a.streams[instrument]; ok {
		close(ch)
		delete(a.streams, instrument)
	}
	a.mu.Unlock()
	a.markUnsubscribed(instrument)
	return nil
}

func (a *BinanceAdapter) Status() Status { return a.status() }

type binanceTickerFrame struct {
	Price string `json:"c"`
	Vol   string `json:"v"`
	High  string `json:"h"`
	Low   string `json:"l"`
}

func (a *BinanceAdapter) streamLoop(instrument model.Instrument, sink Sink, stop chan struct{}) {
	url := fmt.Sprintf("wss://stream.binance.com:9443/ws/%s@ticker", a.NormalizeSymbol(instrument))
	for {
		select {
		case <-stop:
			return
		default:
		}

		dialer := websocket.Dialer{HandshakeTimeout: a.wsTimeout}
		conn, _, err := dialer.Dial(url, nil)
		if err != nil {
			a.setLastError(err.Error())
			if a.notifier != nil {
				a.notifier.Notify(model.VenueBinance, FailureStreamOpenFailed, err.Error())
			}
			if !a.sleepOrStop(a.nextBackoff(), stop) {
				return
			}
			continue
		}

		a.readLoop(conn, instrument, sink, stop)

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

func (a *BinanceAdapter) readLoop(conn *websocket.Conn, instrument model.Instrument, sink Sink, stop chan struct{}) {
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
				a.notifier.Notify(model.VenueBinance, FailureStreamClosedUnexpected, err.Error())
			}
			return
		}
		var frame binanceTickerFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			if a.notifier != nil {
				a.notifier.Notify(model.VenueBinance, FailureParseFailed, err.Error())
			}
			continue
		}
		price, err := strconv.ParseFloat(frame.Price, 64)
		if err != nil || price <= 0 {
			log.Debug().Str("venue", "binance").Str("instrument", string(instrument)).Msg("dropped invalid tick")
			continue
		}
		vol, _ := strconv.ParseFloat(frame.Vol, 64)
		high, _ := strconv.ParseFloat(frame.High, 64)
		low, _ := strconv.ParseFloat(frame.Low, 64)
		select {
		case <-stop:
			return
		default:
		}
		sink(model.Tick{
			Instrument: instrument,
			Venue:      model.VenueBinance,
			Price:      price,
			Volume:     vol,
			High:       high,
			Low:        low,
			IngestTime: a.clock(),
		})
	}
}

func (a *BinanceAdapter) sleepOrStop(d time.Duration, stop chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}

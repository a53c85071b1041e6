// Package alpaca is a thin REST client for an Alpaca-compatible brokerage
// API. It performs no retries of its own; submission retry policy belongs to
// the execution router.
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"tradepulse/internal/broker"
	"tradepulse/internal/interfaces"
	"tradepulse/internal/types"
)

type Params struct {
	BaseURL string
	DataURL string
	Key     string
	Secret  string
	Timeout time.Duration
}

type Client struct {
	p          Params
	httpClient *http.Client
}

var _ interfaces.Broker = (*Client)(nil)

func NewClient(p Params) *Client {
	if p.DataURL == "" {
		p.DataURL = p.BaseURL
	}
	if p.Timeout == 0 {
		p.Timeout = 10 * time.Second
	}
	return &Client{
		p:          p,
		httpClient: &http.Client{Timeout: p.Timeout},
	}
}

type accountPayload struct {
	PortfolioValue   decimal.Decimal `json:"portfolio_value"`
	Cash             decimal.Decimal `json:"cash"`
	BuyingPower      decimal.Decimal `json:"buying_power"`
	Equity           decimal.Decimal `json:"equity"`
	LastEquity       decimal.Decimal `json:"last_equity"`
	LongMarketValue  decimal.Decimal `json:"long_market_value"`
	ShortMarketValue decimal.Decimal `json:"short_market_value"`
	DaytradeCount    int             `json:"daytrade_count"`
	TradingBlocked   bool            `json:"trading_blocked"`
}

func (c *Client) GetAccount(ctx context.Context) (types.AccountSnapshot, error) {
	var p accountPayload
	if err := c.get(ctx, c.p.BaseURL+"/v2/account", &p); err != nil {
		return types.AccountSnapshot{}, fmt.Errorf("fetch account: %w", err)
	}
	equity := p.Equity.InexactFloat64()
	return types.AccountSnapshot{
		TotalValue:       p.PortfolioValue.InexactFloat64(),
		Cash:             p.Cash.InexactFloat64(),
		BuyingPower:      p.BuyingPower.InexactFloat64(),
		DayPnL:           equity - p.LastEquity.InexactFloat64(),
		Equity:           equity,
		LastEquity:       p.LastEquity.InexactFloat64(),
		LongMarketValue:  p.LongMarketValue.InexactFloat64(),
		ShortMarketValue: p.ShortMarketValue.InexactFloat64(),
		DayTradeCount:    p.DaytradeCount,
		TradingBlocked:   p.TradingBlocked,
	}, nil
}

type positionPayload struct {
	Symbol        string          `json:"symbol"`
	Qty           decimal.Decimal `json:"qty"`
	Side          string          `json:"side"`
	MarketValue   decimal.Decimal `json:"market_value"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pl"`
}

func (c *Client) GetPositions(ctx context.Context) ([]types.PositionSnapshot, error) {
	var payload []positionPayload
	if err := c.get(ctx, c.p.BaseURL+"/v2/positions", &payload); err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	out := make([]types.PositionSnapshot, 0, len(payload))
	for _, p := range payload {
		out = append(out, types.PositionSnapshot{
			Symbol:        p.Symbol,
			Qty:           p.Qty.InexactFloat64(),
			Side:          p.Side,
			MarketValue:   p.MarketValue.InexactFloat64(),
			CostBasis:     p.CostBasis.InexactFloat64(),
			UnrealizedPnL: p.UnrealizedPnL.InexactFloat64(),
		})
	}
	return out, nil
}

type barsPayload struct {
	Bars []struct {
		T time.Time `json:"t"`
		O float64   `json:"o"`
		H float64   `json:"h"`
		L float64   `json:"l"`
		C float64   `json:"c"`
		V float64   `json:"v"`
	} `json:"bars"`
}

func (c *Client) RecentCandles(ctx context.Context, symbol string, n int) ([]types.Candle, error) {
	u := fmt.Sprintf("%s/v2/stocks/%s/bars?timeframe=1Min&limit=%d", c.p.DataURL, url.PathEscape(symbol), n)
	var payload barsPayload
	if err := c.get(ctx, u, &payload); err != nil {
		return nil, fmt.Errorf("fetch candles for %s: %w", symbol, err)
	}
	cs := make([]types.Candle, 0, len(payload.Bars))
	for _, b := range payload.Bars {
		cs = append(cs, types.Candle{Ts: b.T.Unix(), Open: b.O, High: b.H, Low: b.L, Close: b.C, Vol: b.V})
	}
	return cs, nil
}

func (c *Client) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.BrokerOrder, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return types.BrokerOrder{}, err
	}
	var ord types.BrokerOrder
	if err := c.do(ctx, http.MethodPost, c.p.BaseURL+"/v2/orders", body, &ord); err != nil {
		return types.BrokerOrder{}, err
	}
	return ord, nil
}

// GetOrder looks an order up by its client-generated identifier, so an
// unacknowledged submission can be reconciled without resubmitting.
func (c *Client) GetOrder(ctx context.Context, clientOrderID string) (types.BrokerOrder, error) {
	u := c.p.BaseURL + "/v2/orders:by_client_order_id?client_order_id=" + url.QueryEscape(clientOrderID)
	var ord types.BrokerOrder
	if err := c.get(ctx, u, &ord); err != nil {
		return types.BrokerOrder{}, fmt.Errorf("fetch order %s: %w", clientOrderID, err)
	}
	return ord, nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	return c.do(ctx, http.MethodGet, url, nil, out)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("APCA-API-KEY-ID", c.p.Key)
	req.Header.Set("APCA-API-SECRET-KEY", c.p.Secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &broker.APIError{StatusCode: resp.StatusCode, Message: string(data)}
		var parsed struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &parsed) == nil && parsed.Message != "" {
			apiErr.Code = parsed.Code
			apiErr.Message = parsed.Message
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s response: %w", url, err)
		}
	}
	return nil
}

// Package yahoo downloads daily bars from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/marketdata"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

const (
	defaultBase = "https://query1.finance.yahoo.com"

	// Unofficial endpoint; stay well below what it tolerates.
	defaultRatePerSec = 4
	defaultBurst      = 2
	defaultWorkers    = 4

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// errNotFound marks a ticker Yahoo does not know.
var errNotFound = errors.New("yahoo: symbol not found")

// Options tunes the client. Zero values use defaults.
type Options struct {
	BaseURL    string
	RatePerSec float64
	Workers    int
	HTTPClient *http.Client
	// Raw disables price adjustment by the adjusted close ratio.
	Raw bool
}

// Client fetches bars with rate limiting, retries and bounded fan-out. It
// implements model.BarSource.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
	workers int
	raw     bool
}

// New creates a Client.
func New(opts Options) *Client {
	c := &Client{
		http:    opts.HTTPClient,
		base:    opts.BaseURL,
		workers: opts.Workers,
		raw:     opts.Raw,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	if c.base == "" {
		c.base = defaultBase
	}
	if c.workers <= 0 {
		c.workers = defaultWorkers
	}
	r := opts.RatePerSec
	if r <= 0 {
		r = defaultRatePerSec
	}
	c.limiter = rate.NewLimiter(rate.Limit(r), defaultBurst)
	return c
}

// LoadBars downloads every ticker concurrently. Tickers that fail are logged
// and skipped; ErrNoData is returned only when nothing at all came back.
func (c *Client) LoadBars(ctx context.Context, tickers []string, from, to time.Time) ([]model.Bar, error) {
	var (
		mu     sync.Mutex
		all    []model.Bar
		failed int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, ticker := range tickers {
		g.Go(func() error {
			bars, err := c.FetchBars(ctx, ticker, from, to)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Warn("yahoo fetch failed", slog.String("ticker", ticker), slog.Any("err", err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			all = append(all, bars...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("yahoo load: %w", err)
	}

	slog.Info("yahoo download complete",
		slog.Int("tickers", len(tickers)),
		slog.Int("failed", failed),
		slog.Int("bars", len(all)))
	if len(all) == 0 {
		return nil, marketdata.ErrNoData
	}
	marketdata.SortBars(all)
	return all, nil
}

// FetchBars downloads one ticker's daily bars for [from, to].
func (c *Client) FetchBars(ctx context.Context, ticker string, from, to time.Time) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(model.Day(from).Unix(), 10))
	// period2 is exclusive.
	q.Set("period2", strconv.FormatInt(model.Day(to).AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "div,splits")
	q.Set("includeAdjustedClose", "true")
	u := c.base + "/v8/finance/chart/" + url.PathEscape(ticker) + "?" + q.Encode()

	var resp chartResponse
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("yahoo %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo %s: %s: %s", ticker, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", ticker, marketdata.ErrNoData)
	}
	bars := resp.Chart.Result[0].bars(ticker, !c.raw)
	return marketdata.Filter(bars, nil, model.Day(from), model.Day(to)), nil
}

func (c *Client) get(ctx context.Context, u string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; backtest/1.0)")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d retries: %w", attempt, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("status %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("yahoo retrying", slog.Int("status", resp.StatusCode), slog.Int("attempt", attempt+1))
			c.sleep(ctx, attempt)
			continue
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return errNotFound
		case resp.StatusCode >= 400:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []model.Float `json:"open"`
			High   []model.Float `json:"high"`
			Low    []model.Float `json:"low"`
			Close  []model.Float `json:"close"`
			Volume []model.Float `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []model.Float `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

func at(s []model.Float, i int) model.Float {
	if i < len(s) {
		return s[i]
	}
	return model.None
}

// bars converts the column arrays into Bars. With adjust set, open, high,
// low and close are scaled by adjclose/close so splits and dividends do not
// show up as price jumps.
func (r *chartResult) bars(ticker string, adjust bool) []model.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	var adj []model.Float
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	out := make([]model.Bar, 0, len(r.Timestamp))
	seen := make(map[time.Time]bool, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		day := model.Day(time.Unix(ts+r.Meta.GMTOffset, 0).UTC())
		if seen[day] {
			continue
		}
		seen[day] = true

		b := model.Bar{
			Ticker: ticker,
			Date:   day,
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  at(q.Close, i),
			Volume: at(q.Volume, i),
		}
		if adjust {
			adjustBar(&b, at(adj, i))
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func adjustBar(b *model.Bar, adjClose model.Float) {
	c, okC := b.Close.Get()
	ac, okA := adjClose.Get()
	if !okC || !okA || c == 0 {
		return
	}
	ratio := ac / c
	scale := func(f model.Float) model.Float {
		if v, ok := f.Get(); ok {
			return model.Some(v * ratio)
		}
		return f
	}
	b.Open = scale(b.Open)
	b.High = scale(b.High)
	b.Low = scale(b.Low)
	b.Close = model.Some(ac)
}

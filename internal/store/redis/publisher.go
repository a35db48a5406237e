// Package redis publishes finished backtests to Redis Streams so dashboards
// and downstream consumers can pick them up.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/metrics"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
)

const (
	defaultPrefix    = "backtest"
	defaultLatestTTL = 24 * time.Hour
	runsStreamMaxLen = 1000
)

// Config configures the publisher.
type Config struct {
	Addr         string // e.g. "localhost:6379"
	Password     string
	DB           int
	StreamPrefix string // key prefix, default "backtest"
}

// RunEvent is the entry appended to the runs stream and stored as latest.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	Trades     int       `json:"trades"`
	Days       int       `json:"days"`
	FinalValue float64   `json:"final_value"`
	At         time.Time `json:"at"`
}

// Publisher implements model.RunSink on Redis Streams. Every publish goes
// through a circuit breaker.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
	prefix string
	prom   *metrics.Metrics
}

// New connects to Redis and pings it.
func New(ctx context.Context, cfg Config, prom *metrics.Metrics) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", slog.String("addr", cfg.Addr))
	return NewWithClient(client, cfg.StreamPrefix, prom), nil
}

// NewWithClient wraps an existing client without pinging.
func NewWithClient(client *goredis.Client, prefix string, prom *metrics.Metrics) *Publisher {
	if prefix == "" {
		prefix = defaultPrefix
	}
	p := &Publisher{
		client: client,
		cb:     NewCircuitBreaker(3, 10*time.Second),
		prefix: prefix,
		prom:   prom,
	}
	p.cb.OnStateChange = func(from, to State) {
		slog.Warn("redis circuit breaker", slog.String("from", from.String()), slog.String("to", to.String()))
		if prom != nil {
			prom.RedisCircuitBreakerState.Set(float64(to))
		}
	}
	return p
}

// Breaker exposes the circuit breaker.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

// TradesKey is the stream holding runID's trade log.
func (p *Publisher) TradesKey(runID string) string { return p.prefix + ":run:" + runID + ":trades" }

// EquityKey is the stream holding runID's valuation history.
func (p *Publisher) EquityKey(runID string) string { return p.prefix + ":run:" + runID + ":equity" }

// RunsKey is the stream of completed runs.
func (p *Publisher) RunsKey() string { return p.prefix + ":runs" }

// LatestKey holds the most recent RunEvent.
func (p *Publisher) LatestKey() string { return p.prefix + ":runs:latest" }

// Channel is the pub/sub channel notified on each publish.
func (p *Publisher) Channel() string { return "pub:" + p.prefix + ":runs" }

// PublishRun writes the trade log and history as stream entries, appends a
// RunEvent to the runs stream, and notifies subscribers, all in one pipeline.
func (p *Publisher) PublishRun(ctx context.Context, runID string, trades []model.Trade, history []model.Snapshot) error {
	ev := RunEvent{RunID: runID, Trades: len(trades), Days: len(history), At: time.Now().UTC()}
	if n := len(history); n > 0 {
		ev.FinalValue = history[n-1].TotalValue
	}
	evJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis marshal run event: %w", err)
	}

	err = p.cb.Execute(ctx, func(ctx context.Context) error {
		pipe := p.client.Pipeline()

		tradesKey := p.TradesKey(runID)
		for i := range trades {
			pipe.XAdd(ctx, &goredis.XAddArgs{
				Stream: tradesKey,
				Values: map[string]interface{}{"data": string(trades[i].JSON())},
			})
		}

		equityKey := p.EquityKey(runID)
		for _, h := range history {
			pipe.XAdd(ctx, &goredis.XAddArgs{
				Stream: equityKey,
				Values: map[string]interface{}{
					"date":  h.Date.Format(model.DateLayout),
					"value": h.TotalValue,
				},
			})
		}

		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: p.RunsKey(),
			MaxLen: runsStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": string(evJSON)},
		})
		pipe.Set(ctx, p.LatestKey(), string(evJSON), defaultLatestTTL)
		pipe.Publish(ctx, p.Channel(), string(evJSON))

		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		if p.prom != nil {
			p.prom.RedisPublishFailures.Inc()
		}
		return fmt.Errorf("redis publish run %s: %w", runID, err)
	}

	slog.Info("run published", slog.String("run_id", runID), slog.String("stream", p.TradesKey(runID)))
	return nil
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

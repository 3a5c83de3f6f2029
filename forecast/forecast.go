// Package forecast provides the price/consumption/production lookup
// contract consumed by the schedule re-planner, plus an HTTP-polling
// implementation: a background
// ticker refreshes an RWMutex-guarded cache so lookups never block on
// network I/O.
package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Point is a single forecast value at a point in time.
type Point struct {
	At    time.Time
	Value float64
}

// Series is an ordered-by-time set of forecast points, queried by nearest
// match at or before the requested time.
type Series []Point

// At returns the value whose timestamp is the latest one not after t, and
// whether such a point exists.
func (s Series) At(t time.Time) (float64, bool) {
	idx := sort.Search(len(s), func(i int) bool { return s[i].At.After(t) })
	if idx == 0 {
		return 0, false
	}
	return s[idx-1].Value, true
}

// Handle is the read-only contract the re-planner consumes: price,
// consumption, and production forecasts, each addressable by time.
type Handle interface {
	PriceAt(t time.Time) (float64, bool)
	ConsumptionAt(t time.Time) (float64, bool)
	ProductionAt(t time.Time) (float64, bool)
}

// Client polls price/consumption/production forecast endpoints on a
// background ticker and serves lookups from a cached, mutex-guarded
// series, so a re-plan invocation never performs its own network I/O.
type Client struct {
	httpClient *http.Client
	priceURL   string
	loadURL    string
	solarURL   string
	logger     *slog.Logger

	mu          sync.RWMutex
	priceSeries Series
	loadSeries  Series
	solarSeries Series
}

// Config names the three forecast endpoints this client polls.
type Config struct {
	PriceURL string
	LoadURL  string
	SolarURL string
}

func NewClient(httpClient *http.Client, cfg Config) *Client {
	return &Client{
		httpClient: httpClient,
		priceURL:   cfg.PriceURL,
		loadURL:    cfg.LoadURL,
		solarURL:   cfg.SolarURL,
		logger:     slog.Default().With("component", "forecast"),
	}
}

// Run loops forever refreshing all three series every period, until ctx
// is cancelled.
func (c *Client) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	c.refreshAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.refreshAll()
		}
	}
}

func (c *Client) refreshAll() {
	if series, err := c.fetchSeries(c.priceURL); err != nil {
		c.logger.Error("failed to refresh price forecast", "error", err)
	} else {
		c.mu.Lock()
		c.priceSeries = series
		c.mu.Unlock()
	}

	if series, err := c.fetchSeries(c.loadURL); err != nil {
		c.logger.Error("failed to refresh consumption forecast", "error", err)
	} else {
		c.mu.Lock()
		c.loadSeries = series
		c.mu.Unlock()
	}

	if series, err := c.fetchSeries(c.solarURL); err != nil {
		c.logger.Error("failed to refresh production forecast", "error", err)
	} else {
		c.mu.Lock()
		c.solarSeries = series
		c.mu.Unlock()
	}
}

type forecastPointResponse struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

func (c *Client) fetchSeries(url string) (Series, error) {
	if url == "" {
		return nil, nil
	}

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from %s: %d", url, resp.StatusCode)
	}

	var points []forecastPointResponse
	if err := json.NewDecoder(resp.Body).Decode(&points); err != nil {
		return nil, fmt.Errorf("decode body from %s: %w", url, err)
	}

	series := make(Series, len(points))
	for i, p := range points {
		series[i] = Point{At: p.At, Value: p.Value}
	}
	sort.Slice(series, func(i, j int) bool { return series[i].At.Before(series[j].At) })

	return series, nil
}

func (c *Client) PriceAt(t time.Time) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.priceSeries.At(t)
}

func (c *Client) ConsumptionAt(t time.Time) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadSeries.At(t)
}

func (c *Client) ProductionAt(t time.Time) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.solarSeries.At(t)
}

var _ Handle = (*Client)(nil)

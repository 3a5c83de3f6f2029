package forecast

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeries_At_ReturnsLatestPointNotAfterT(t *testing.T) {
	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	s := Series{
		{At: base, Value: 1},
		{At: base.Add(time.Hour), Value: 2},
		{At: base.Add(2 * time.Hour), Value: 3},
	}

	v, ok := s.At(base.Add(90 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestSeries_At_BeforeFirstPointReturnsFalse(t *testing.T) {
	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	s := Series{{At: base, Value: 1}}

	_, ok := s.At(base.Add(-time.Hour))
	assert.False(t, ok)
}

func TestSeries_At_EmptySeriesReturnsFalse(t *testing.T) {
	var s Series
	_, ok := s.At(time.Now())
	assert.False(t, ok)
}

func TestClient_FetchSeries_EmptyURLIsNoOp(t *testing.T) {
	c := NewClient(http.DefaultClient, Config{})
	series, err := c.fetchSeries("")
	require.NoError(t, err)
	assert.Nil(t, series)
}

func TestClient_RefreshAll_PopulatesFromHTTPServer(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		points := []forecastPointResponse{{At: now, Value: 0.25}}
		_ = json.NewEncoder(w).Encode(points)
	}))
	defer srv.Close()

	c := NewClient(http.DefaultClient, Config{PriceURL: srv.URL, LoadURL: srv.URL, SolarURL: srv.URL})
	c.refreshAll()

	v, ok := c.PriceAt(now)
	require.True(t, ok)
	assert.Equal(t, 0.25, v)

	v, ok = c.ConsumptionAt(now)
	require.True(t, ok)
	assert.Equal(t, 0.25, v)

	v, ok = c.ProductionAt(now)
	require.True(t, ok)
	assert.Equal(t, 0.25, v)
}

func TestClient_RefreshAll_ServerErrorLeavesPreviousSeriesIntact(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		points := []forecastPointResponse{{At: now, Value: 0.5}}
		_ = json.NewEncoder(w).Encode(points)
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	c := NewClient(http.DefaultClient, Config{PriceURL: good.URL})
	c.refreshAll()

	c.priceURL = bad.URL
	c.refreshAll() // failed refresh must not clobber the previously cached series

	v, ok := c.PriceAt(now)
	require.True(t, ok)
	assert.Equal(t, 0.5, v)
}

var _ Handle = (*Client)(nil)

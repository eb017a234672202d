package noaa_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/provider"
	"github.com/checkthebay/checkthebay/internal/provider/noaa"
	"github.com/checkthebay/checkthebay/internal/provider/resilience"
)

func testHTTPClient() *resilience.Client {
	cb := resilience.DefaultCircuitBreakerConfig("noaa-test")
	cb.ReadyToTrip = func(gobreaker.Counts) bool { return false }
	return resilience.NewClient(resilience.ClientConfig{
		Name:            "noaa-test",
		Timeout:         2 * time.Second,
		MaxRetries:      0,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		CircuitBreaker:  &cb,
	})
}

func newClient(url string) *noaa.Client {
	return noaa.NewClient(noaa.ClientConfig{BaseURL: url, HTTPClient: testHTTPClient()})
}

func TestClient_WaterLevel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "water_level", q.Get("product"))
		assert.Equal(t, "8737048", q.Get("station"))
		assert.Equal(t, "MLLW", q.Get("datum"))
		assert.Equal(t, "english", q.Get("units"))
		assert.Equal(t, "gmt", q.Get("time_zone"))
		assert.Equal(t, "latest", q.Get("date"))
		assert.Equal(t, "checkthebay", q.Get("application"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"metadata": {"id": "8737048", "name": "Mobile State Docks"},
			"data": [{"t": "2024-06-01 12:06", "v": "1.234", "s": "0.003", "f": "0,0,0,0", "q": "p"}]
		}`))
	}))
	defer server.Close()

	level, err := newClient(server.URL).WaterLevel(context.Background(), "8737048")
	require.NoError(t, err)

	assert.Equal(t, "8737048", level.NOAAStationID)
	require.NotNil(t, level.WaterLevelFt)
	assert.Equal(t, 1.234, *level.WaterLevelFt)
	require.NotNil(t, level.Time)
	assert.Equal(t, "2024-06-01T12:06:00Z", *level.Time)
	assert.Equal(t, "p", *level.Quality)
	assert.Nil(t, level.WaterTempF)
}

func TestClient_WaterLevel_EmptyValue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"t": "2024-06-01 12:06", "v": "", "s": "", "q": ""}]}`))
	}))
	defer server.Close()

	level, err := newClient(server.URL).WaterLevel(context.Background(), "8735180")
	require.NoError(t, err)
	assert.Nil(t, level.WaterLevelFt, "blank values are null, not zero")
	assert.Nil(t, level.Sigma)
	assert.Nil(t, level.Quality)
}

func TestClient_WaterLevel_NonFiniteValues(t *testing.T) {
	for _, raw := range []string{"NaN", "Inf", "+Inf", "-Inf"} {
		t.Run(raw, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"data": [{"t": "2024-06-01 12:06", "v": "` + raw + `", "s": "` + raw + `", "q": "p"}]}`))
			}))
			defer server.Close()

			level, err := newClient(server.URL).WaterLevel(context.Background(), "8737048")
			require.NoError(t, err)
			assert.Nil(t, level.WaterLevelFt)
			assert.Nil(t, level.Sigma)

			_, err = json.Marshal(level)
			assert.NoError(t, err)
		})
	}
}

func TestClient_APIErrorInBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": {"message": "No data was found."}}`))
	}))
	defer server.Close()

	_, err := newClient(server.URL).WaterLevel(context.Background(), "0000000")
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "No data was found.")
}

func TestClient_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newClient(server.URL).WaterLevel(context.Background(), "8737048")
	require.Error(t, err)
	assert.Equal(t, "upstream unavailable: unexpected status code: 503", provider.Describe(err))
}

func TestClient_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": [`))
	}))
	defer server.Close()

	_, err := newClient(server.URL).WaterLevel(context.Background(), "8737048")
	assert.ErrorIs(t, err, provider.ErrMalformedResponse)
}

func TestClient_TidePredictions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "predictions", q.Get("product"))
		assert.Equal(t, "hilo", q.Get("interval"))
		assert.Equal(t, "48", q.Get("range"))

		_, _ = w.Write([]byte(`{"predictions": [
			{"t": "2024-06-01 03:12", "v": "0.214", "type": "L"},
			{"t": "2024-06-01 17:40", "v": "1.602", "type": "H"}
		]}`))
	}))
	defer server.Close()

	extremes, err := newClient(server.URL).TidePredictions(context.Background(), "8737048", 0)
	require.NoError(t, err)
	require.Len(t, extremes, 2)

	assert.Equal(t, conditions.ExtremeLow, extremes[0].Type)
	assert.Equal(t, time.Date(2024, 6, 1, 3, 12, 0, 0, time.UTC).Unix(), extremes[0].TimestampSeconds)
	assert.Equal(t, conditions.ExtremeHigh, extremes[1].Type)
	assert.Equal(t, 1.602, extremes[1].HeightFt)
}

func TestClient_LatestWaterLevels(t *testing.T) {
	var levelCalls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("product") == "water_level" && q.Get("station") == "8732899":
			levelCalls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		case q.Get("product") == "water_level":
			levelCalls.Add(1)
			_, _ = w.Write([]byte(`{"data": [{"t": "2024-06-01 12:00", "v": "0.8"}]}`))
		case q.Get("product") == "water_temperature" && q.Get("station") == "8737048":
			_, _ = w.Write([]byte(`{"data": [{"t": "2024-06-01 12:00", "v": "84.2"}]}`))
		default:
			_, _ = w.Write([]byte(`{"error": {"message": "No data was found."}}`))
		}
	}))
	defer server.Close()

	stations := conditions.DefaultStations()
	levels, err := newClient(server.URL).LatestWaterLevels(context.Background(), stations)
	require.NoError(t, err)

	assert.Equal(t, int32(3), levelCalls.Load(), "shared gauges are fetched once")

	central := levels["central_bay"]
	require.NotNil(t, central.WaterTempF)
	assert.Equal(t, 84.2, *central.WaterTempF)

	upper, lower := levels["upper_bay"], levels["lower_bay"]
	assert.Equal(t, 0.8, *upper.WaterLevelFt)
	assert.Equal(t, 0.8, *lower.WaterLevelFt)
	assert.Nil(t, upper.WaterTempF)

	_, ok := levels["gulf_entrance"]
	assert.False(t, ok)
}

func TestClient_LatestWaterLevels_AllFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newClient(server.URL).LatestWaterLevels(context.Background(), conditions.DefaultStations())
	require.Error(t, err)
	assert.ErrorIs(t, provider.Classify(err), provider.ErrUpstreamUnavailable)
}

package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var testRegion = domain.Region{
	Name:   "Mexico City",
	Center: domain.LatLon{Lat: 19.4326, Lon: -99.1332},
	Bounds: domain.BBox{MinLat: 19.0, MaxLat: 19.6, MinLon: -99.4, MaxLon: -98.9},
}

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func testClient(baseURL string) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		region:     testRegion,
		metrics:    testMetrics(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_ForwardGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "Av. Insurgentes Sur 300, Cuauhtemoc, Mexico City")
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("limit"))
		assert.Equal(t, testToken, q.Get("access_token"))
		assert.Equal(t, "mx", q.Get("country"))
		assert.Equal(t, "-99.4000,19.0000,-98.9000,19.6000", q.Get("bbox"))
		assert.Equal(t, "-99.1332,19.4326", q.Get("proximity"))

		resp := response{
			Features: []feature{{
				Center:    []float64{-99.1637, 19.4194},
				PlaceName: "Avenida Insurgentes Sur 300, Roma Norte, Ciudad de México",
				Text:      "Avenida Insurgentes Sur",
				Relevance: 0.9,
			}},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	result, err := c.ForwardGeocode(context.Background(), "Av. Insurgentes Sur 300", "Cuauhtemoc")

	require.NoError(t, err)
	assert.InDelta(t, 19.4194, result.Lat, 1e-9)
	assert.InDelta(t, -99.1637, result.Lon, 1e-9)
	assert.Equal(t, "Avenida Insurgentes Sur 300, Roma Norte, Ciudad de México", result.PlaceName)
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.GeocodeRequests.WithLabelValues(methodForward, "success")), 0)
}

func TestClient_ForwardGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	result, err := c.ForwardGeocode(context.Background(), "Calle Inexistente", "")

	require.NoError(t, err)
	assert.Zero(t, result.Lat)
	assert.Zero(t, result.Lon)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.GeocodeRequests.WithLabelValues(methodForward, "empty")), 0)
}

func TestClient_ForwardGeocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized - Invalid Token"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.ForwardGeocode(context.Background(), "Calle 1", "Tlalpan")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.GeocodeRequests.WithLabelValues(methodForward, "error")), 0)
}

func TestClient_ForwardGeocode_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ForwardGeocode(context.Background(), "Calle 1", "Tlalpan")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_ForwardGeocode_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL).ForwardGeocode(ctx, "Calle 1", "Tlalpan")
	require.Error(t, err)
}

func TestNewClient(t *testing.T) {
	c := NewClient(testToken, 3*time.Second, testRegion, testMetrics(), slog.Default())

	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
	assert.Equal(t, "https://api.mapbox.com/geocoding/v5/mapbox.places", c.baseURL)
	assert.Equal(t, "Mexico City", c.region.Name)
}

package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
)

const methodForward = "forward"

// Client implements domain.Geocoder using the Mapbox Geocoding API. Queries
// are restricted to the region's bounding box and biased toward its centre.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	region     domain.Region
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, region domain.Region, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		region:  region,
		metrics: metrics,
		logger:  logger,
	}
}

// ForwardGeocode converts a street address and municipality to coordinates.
func (c *Client) ForwardGeocode(ctx context.Context, address, municipality string) (domain.GeocodingResult, error) {
	parts := []string{address}
	if municipality != "" {
		parts = append(parts, municipality)
	}
	if c.region.Name != "" {
		parts = append(parts, c.region.Name)
	}
	query := strings.Join(parts, ", ")

	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	b := c.region.Bounds
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"address,poi,neighborhood"},
		"country":      {"mx"},
		"language":     {"es"},
		// Mapbox uses lon,lat order.
		"bbox":      {fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)},
		"proximity": {fmt.Sprintf("%.4f,%.4f", c.region.Center.Lon, c.region.Center.Lat)},
	}

	return c.doRequest(ctx, u+"?"+params.Encode())
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.GeocodingResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(methodForward).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(methodForward, "error").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("%s geocode request: %w", methodForward, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues(methodForward, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeocodingResult{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(methodForward, "error").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 || len(mapboxResp.Features[0].Center) != 2 {
		c.metrics.GeocodeRequests.WithLabelValues(methodForward, "empty").Inc()
		return domain.GeocodingResult{}, nil
	}

	f := mapboxResp.Features[0]
	c.metrics.GeocodeRequests.WithLabelValues(methodForward, "success").Inc()
	c.logger.Debug("geocoded address", "place", f.PlaceName, "relevance", f.Relevance)
	return domain.GeocodingResult{
		Lon:        f.Center[0],
		Lat:        f.Center[1],
		PlaceName:  f.PlaceName,
		Confidence: f.Relevance,
	}, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}

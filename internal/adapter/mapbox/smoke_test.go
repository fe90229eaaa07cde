//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, 10*time.Second, testRegion, testMetrics(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "Avenida Paseo de la Reforma 222", "Cuauhtémoc")
	require.NoError(t, err)

	assert.True(t, testRegion.Bounds.Contains(result.Lat, result.Lon), "result should fall inside Mexico City")
	assert.NotEmpty(t, result.PlaceName)
	assert.Greater(t, result.Confidence, 0.5)
}

func TestSmoke_ForwardGeocode_Nonsense(t *testing.T) {
	c := smokeClient(t)

	// Fuzzy matching may still return something; the client must not error.
	_, err := c.ForwardGeocode(context.Background(), "XYZNONEXISTENT99", "")
	require.NoError(t, err)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	c := smokeClient(t)
	cached := NewCachedGeocoder(c, 10, testMetrics())

	r1, err := cached.ForwardGeocode(context.Background(), "Calzada de Tlalpan 1000", "Benito Juárez")
	require.NoError(t, err)

	r2, err := cached.ForwardGeocode(context.Background(), "Calzada de Tlalpan 1000", "Benito Juárez")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

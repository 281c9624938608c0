// Package geo reverse-geocodes coordinates through a Nominatim-compatible service.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/garnizeh/wildspot/internal/models"
)

const providerName = "nominatim"

// Client calls the Nominatim /reverse endpoint.
type Client struct {
	baseURL   *url.URL
	userAgent string
	http      *http.Client
	logger    *slog.Logger
}

func New(baseURL, userAgent string, timeout time.Duration, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	u, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid geocoder url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: u, userAgent: userAgent, http: httpClient, logger: logger}, nil
}

type reverseResponse struct {
	Error   string `json:"error"`
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		State        string `json:"state"`
		County       string `json:"county"`
		Country      string `json:"country"`
		Natural      string `json:"natural"`
		Park         string `json:"park"`
		Water        string `json:"water"`
	} `json:"address"`
}

// ReverseGeocode describes the place at lat/lng. Any transport, status or decode
// failure is returned as an *apperr.ProviderError.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (models.LocationInfo, error) {
	var info models.LocationInfo

	u := c.baseURL.JoinPath("reverse")
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("zoom", "14")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return info, apperr.Provider(providerName, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return info, apperr.Provider(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return info, apperr.Provider(providerName, fmt.Errorf("status %d: %s", resp.StatusCode, b))
	}

	var rr reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return info, apperr.Provider(providerName, fmt.Errorf("decode: %w", err))
	}
	if rr.Error != "" {
		return info, apperr.Provider(providerName, fmt.Errorf("lookup: %s", rr.Error))
	}

	a := rr.Address
	info = models.LocationInfo{
		City:    first(a.City, a.Town, a.Village, a.Municipality, a.County),
		State:   a.State,
		Country: a.Country,
		Natural: first(a.Natural, a.Park, a.Water),
	}
	c.logger.Debug("geo: reverse geocoded", slog.Float64("lat", lat), slog.Float64("lng", lng), slog.String("city", info.City))
	return info, nil
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

type NominatimGeocoder struct {
	BaseURL     string
	UserAgent   string
	MinInterval time.Duration
	Client      *http.Client

	mu        sync.Mutex
	lastReqAt time.Time
	cache     map[string]string
}

type nominatimReverseItem struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		Village       string `json:"village"`
		Town          string `json:"town"`
		City          string `json:"city"`
		State         string `json:"state"`
	} `json:"address"`
}

func (g *NominatimGeocoder) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	// Defaults stay in locals: Reverse is called concurrently and must not
	// write the shared configuration fields.
	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	baseURL := g.BaseURL
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	userAgent := g.UserAgent
	if userAgent == "" {
		userAgent = "civicpulse-backend"
	}
	minInterval := g.MinInterval
	if minInterval <= 0 {
		minInterval = time.Second
	}

	key := fmt.Sprintf("%.5f,%.5f", lat, lng)

	g.mu.Lock()
	if g.cache == nil {
		g.cache = map[string]string{}
	}
	if cached, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return cached, nil
	}
	sleepFor := time.Until(g.lastReqAt.Add(minInterval))
	if sleepFor > 0 {
		g.mu.Unlock()
		time.Sleep(sleepFor)
		g.mu.Lock()
	}
	g.lastReqAt = time.Now()
	g.mu.Unlock()

	endpoint := fmt.Sprintf("%s/reverse?lat=%f&lon=%f&format=json", baseURL, lat, lng)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("nominatim http error: %s", resp.Status)
	}

	var item nominatimReverseItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return "", err
	}
	address, err := formatAddress(item)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	g.cache[key] = address
	g.mu.Unlock()

	return address, nil
}

// formatAddress assembles "locality, city, state" from whichever components
// are present, falling back to the full display name.
func formatAddress(item nominatimReverseItem) (string, error) {
	locality := firstNonEmpty(item.Address.Suburb, item.Address.Neighbourhood, item.Address.Village)
	city := firstNonEmpty(item.Address.City, item.Address.Town, item.Address.Village)

	parts := []string{}
	for _, p := range []string{locality, city, item.Address.State} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", "), nil
	}
	if item.DisplayName != "" {
		return item.DisplayName, nil
	}
	return "", ErrNotFound
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

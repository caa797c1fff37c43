package vehicle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"face-bridge-go/config"

	log "github.com/sirupsen/logrus"
)

// Vehicle repräsentiert ein Fahrzeug aus der Cloud-API des Herstellers
type Vehicle struct {
	Name            string   `json:"name"`
	TrackingEnabled bool     `json:"trackingEnabled"`
	Position        Position `json:"position"`
}

// Position ist die zuletzt gemeldete GPS-Position eines Fahrzeugs
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Client ruft Fahrzeugdaten von der Connected-Drive-Cloud ab
type Client struct {
	config     config.VehicleConfig
	httpClient *http.Client
}

// NewClient erstellt einen neuen Fahrzeug-Client
func NewClient(cfg config.VehicleConfig) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Vehicles ruft alle Fahrzeuge des Kontos samt Position ab
func (c *Client) Vehicles(ctx context.Context) ([]Vehicle, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("vehicle integration is disabled")
	}

	url := c.config.URL + "/vehicles"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vehicle API returned error (status %d)", resp.StatusCode)
	}

	var vehicles []Vehicle
	if err := json.NewDecoder(resp.Body).Decode(&vehicles); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	log.Debugf("Retrieved %d vehicles from cloud API", len(vehicles))
	return vehicles, nil
}

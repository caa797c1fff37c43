package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"face-bridge-go/config"

	log "github.com/sirupsen/logrus"
)

// Client lädt aktuelle Kamerabilder von einer Frigate-Instanz. Er ist die
// Bildquelle für das Anhängen von Gesichtsbildern an Personen.
type Client struct {
	config     config.CameraConfig
	httpClient *http.Client
}

// NewClient erstellt einen neuen Kamera-Client
func NewClient(cfg config.CameraConfig) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Snapshot lädt das aktuelle Bild der benannten Kamera als JPEG-Bytes
func (c *Client) Snapshot(ctx context.Context, camera string) ([]byte, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("camera integration is disabled")
	}
	if c.config.URL == "" {
		return nil, fmt.Errorf("no camera host URL configured")
	}

	url := fmt.Sprintf("%s/api/%s/latest.jpg", c.config.URL, camera)
	log.Debugf("Downloading snapshot from: %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download snapshot, status code: %d", resp.StatusCode)
	}

	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	log.Debugf("Downloaded snapshot for camera '%s' (%d bytes)", camera, len(image))
	return image, nil
}

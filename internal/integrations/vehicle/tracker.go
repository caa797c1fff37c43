package vehicle

import (
	"context"
	"time"

	"face-bridge-go/internal/util/slug"

	log "github.com/sirupsen/logrus"
)

// SeeFunc meldet ein gesehenes Gerät an die Präsentationsschicht
type SeeFunc func(devID, hostName string, lat, lon float64) error

// Tracker bildet Fahrzeugdaten auf Geräte-Tracker-Updates ab. Der
// Gerätebezeichner ist der normalisierte Fahrzeugname.
type Tracker struct {
	client *Client
	see    SeeFunc
}

// NewTracker erstellt einen neuen Fahrzeug-Tracker
func NewTracker(client *Client, see SeeFunc) *Tracker {
	return &Tracker{
		client: client,
		see:    see,
	}
}

// Update meldet die Position eines einzelnen Fahrzeugs. Fahrzeuge mit
// deaktivierter Ortung werden übersprungen.
func (t *Tracker) Update(v Vehicle) {
	devID := slug.Make(v.Name)

	if !v.TrackingEnabled {
		log.Debugf("Tracking is disabled for vehicle %s", devID)
		return
	}

	log.Debugf("Updating %s", devID)

	if err := t.see(devID, v.Name, v.Position.Latitude, v.Position.Longitude); err != nil {
		log.WithError(err).Warnf("Failed to report vehicle %s", devID)
	}
}

// UpdateAll ruft alle Fahrzeuge ab und meldet deren Positionen
func (t *Tracker) UpdateAll(ctx context.Context) error {
	vehicles, err := t.client.Vehicles(ctx)
	if err != nil {
		return err
	}

	for _, v := range vehicles {
		t.Update(v)
	}
	return nil
}

// Poll meldet Fahrzeugpositionen periodisch, bis der Kontext beendet wird
func (t *Tracker) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Infof("Starting vehicle tracker polling every %s", interval)
	for {
		if err := t.UpdateAll(ctx); err != nil {
			log.WithError(err).Error("Vehicle update failed")
		}

		select {
		case <-ctx.Done():
			log.Info("Vehicle tracker stopped")
			return
		case <-ticker.C:
		}
	}
}

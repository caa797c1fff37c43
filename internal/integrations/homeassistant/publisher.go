package homeassistant

import (
	"sync"

	"face-bridge-go/internal/integrations/msface"
	"face-bridge-go/internal/integrations/mqtt"

	log "github.com/sirupsen/logrus"
)

// VehicleAttributes sind die Attribute eines Fahrzeug-Trackers
type VehicleAttributes struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	HostName  string  `json:"host_name"`
	Icon      string  `json:"icon"`
}

// Publisher ist die Präsentationsschicht: er spiegelt Gruppen-Entitäten und
// Fahrzeug-Tracker als MQTT-Topics nach Home Assistant. Er implementiert
// msface.Refresher.
type Publisher struct {
	mqttClient *mqtt.Client
	discovery  *DiscoveryManager

	mu         sync.Mutex
	discovered map[string]bool // bereits per Discovery angemeldete Objekt-IDs
}

// NewPublisher erstellt einen neuen Publisher
func NewPublisher(mqttClient *mqtt.Client, discovery *DiscoveryManager) *Publisher {
	return &Publisher{
		mqttClient: mqttClient,
		discovery:  discovery,
		discovered: make(map[string]bool),
	}
}

// PublishAvailability meldet den Dienst als online bzw. offline
func (p *Publisher) PublishAvailability(online bool) {
	payload := "offline"
	if online {
		payload = "online"
	}
	if err := p.mqttClient.PublishRetain(AvailabilityTopic, payload); err != nil {
		log.WithError(err).Warn("Failed to publish availability")
	}
}

// RefreshGroup veröffentlicht Zustand (Personenanzahl) und Attribute
// (Name -> Personen-ID) einer Gruppen-Entität neu
func (p *Publisher) RefreshGroup(entity *msface.GroupEntity) error {
	gID := entity.ID()

	p.mu.Lock()
	first := !p.discovered["group:"+gID]
	p.discovered["group:"+gID] = true
	p.mu.Unlock()

	if first {
		if err := p.discovery.RegisterGroupSensor(gID, entity.Name()); err != nil {
			return err
		}
	}

	if err := p.mqttClient.PublishRetain(GroupStateTopic(gID), entity.State()); err != nil {
		return err
	}
	if err := p.mqttClient.PublishRetain(GroupAttributesTopic(gID), entity.Attributes()); err != nil {
		return err
	}

	log.Debugf("Published state for face group '%s': %d persons", gID, entity.State())
	return nil
}

// RemoveGroup entfernt die Entität einer gelöschten Gruppe aus Home Assistant
func (p *Publisher) RemoveGroup(entity *msface.GroupEntity) error {
	gID := entity.ID()

	p.mu.Lock()
	delete(p.discovered, "group:"+gID)
	p.mu.Unlock()

	// Retained Zustände löschen, dann die Discovery-Konfiguration entfernen
	if err := p.mqttClient.PublishRetain(GroupStateTopic(gID), ""); err != nil {
		log.WithError(err).Warnf("Failed to clear state for group '%s'", gID)
	}
	if err := p.mqttClient.PublishRetain(GroupAttributesTopic(gID), ""); err != nil {
		log.WithError(err).Warnf("Failed to clear attributes for group '%s'", gID)
	}
	return p.discovery.UnregisterGroupSensor(gID)
}

// SeeVehicle meldet eine Fahrzeugposition als Geräte-Tracker-Update.
// Die Signatur entspricht vehicle.SeeFunc.
func (p *Publisher) SeeVehicle(devID, hostName string, lat, lon float64) error {
	p.mu.Lock()
	first := !p.discovered["vehicle:"+devID]
	p.discovered["vehicle:"+devID] = true
	p.mu.Unlock()

	if first {
		if err := p.discovery.RegisterVehicleTracker(devID, hostName); err != nil {
			return err
		}
	}

	attrs := VehicleAttributes{
		Latitude:  lat,
		Longitude: lon,
		HostName:  hostName,
		Icon:      "mdi:car",
	}
	if err := p.mqttClient.PublishRetain(VehicleAttributesTopic(devID), attrs); err != nil {
		return err
	}

	// Der Zustand wird von Home Assistant aus den GPS-Attributen abgeleitet;
	// das State-Topic dient nur als Platzhalter
	if err := p.mqttClient.PublishRetain(VehicleStateTopic(devID), "not_home"); err != nil {
		return err
	}

	log.Debugf("Published vehicle position for '%s'", devID)
	return nil
}

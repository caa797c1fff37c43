package homeassistant

import (
	"fmt"

	"face-bridge-go/config"
	"face-bridge-go/internal/integrations/mqtt"

	log "github.com/sirupsen/logrus"
)

// Constants for Home Assistant MQTT Discovery
const (
	// Component-Typ für Sensoren (Gruppen-Entitäten)
	ComponentSensor = "sensor"

	// Component-Typ für Geräte-Tracker (Fahrzeuge)
	ComponentDeviceTracker = "device_tracker"

	// Node-ID für Face Bridge
	NodeID = "face_bridge"

	// Verfügbarkeits-Topic
	AvailabilityTopic = "face_bridge/status"
)

// SensorConfig repräsentiert die MQTT-Discovery-Konfiguration für einen Sensor in Home Assistant
type SensorConfig struct {
	Name                string  `json:"name"`
	UniqueID            string  `json:"unique_id"`
	StateTopic          string  `json:"state_topic"`
	Icon                string  `json:"icon,omitempty"`
	JSONAttributesTopic string  `json:"json_attributes_topic,omitempty"`
	UnitOfMeasurement   string  `json:"unit_of_measurement,omitempty"`
	AvailabilityTopic   string  `json:"availability_topic,omitempty"`
	PayloadAvailable    string  `json:"payload_available,omitempty"`
	PayloadNotAvailable string  `json:"payload_not_available,omitempty"`
	Device              *Device `json:"device,omitempty"`
}

// TrackerConfig repräsentiert die MQTT-Discovery-Konfiguration für einen Geräte-Tracker
type TrackerConfig struct {
	Name                string  `json:"name"`
	UniqueID            string  `json:"unique_id"`
	StateTopic          string  `json:"state_topic"`
	JSONAttributesTopic string  `json:"json_attributes_topic,omitempty"`
	PayloadHome         string  `json:"payload_home,omitempty"`
	PayloadNotHome      string  `json:"payload_not_home,omitempty"`
	Icon                string  `json:"icon,omitempty"`
	SourceType          string  `json:"source_type,omitempty"`
	Device              *Device `json:"device,omitempty"`
}

// Device repräsentiert die Geräteinformationen für Home Assistant
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// DiscoveryManager verwaltet die Home Assistant MQTT Discovery
type DiscoveryManager struct {
	mqttClient *mqtt.Client
	cfg        config.HomeAssistantConfig
	device     *Device
}

// NewDiscoveryManager erstellt einen neuen Manager für Home Assistant Discovery
func NewDiscoveryManager(mqttClient *mqtt.Client, cfg config.HomeAssistantConfig) *DiscoveryManager {
	return &DiscoveryManager{
		mqttClient: mqttClient,
		cfg:        cfg,
		device: &Device{
			Identifiers:  []string{"face_bridge_go"},
			Name:         "Face Bridge Go",
			Manufacturer: "Face Bridge Go Project",
			Model:        "Go Edition",
			SWVersion:    "1.0.0",
		},
	}
}

// RegisterGroupSensor veröffentlicht die Discovery-Konfiguration für eine Gruppen-Entität
func (dm *DiscoveryManager) RegisterGroupSensor(groupID, name string) error {
	sensorConfig := SensorConfig{
		Name:                fmt.Sprintf("Face Group %s", name),
		UniqueID:            fmt.Sprintf("face_bridge_group_%s", groupID),
		StateTopic:          GroupStateTopic(groupID),
		JSONAttributesTopic: GroupAttributesTopic(groupID),
		Icon:                "mdi:face-recognition",
		UnitOfMeasurement:   "persons",
		AvailabilityTopic:   AvailabilityTopic,
		PayloadAvailable:    "online",
		PayloadNotAvailable: "offline",
		Device:              dm.device,
	}

	topic := dm.configTopic(ComponentSensor, groupID)

	log.Infof("Registering Home Assistant sensor for face group: %s", groupID)
	if err := dm.mqttClient.PublishRetain(topic, sensorConfig); err != nil {
		return fmt.Errorf("failed to publish discovery configuration: %w", err)
	}
	return nil
}

// UnregisterGroupSensor entfernt die Discovery-Konfiguration einer Gruppen-Entität.
// Eine leere retained Nachricht löscht die Entität in Home Assistant.
func (dm *DiscoveryManager) UnregisterGroupSensor(groupID string) error {
	topic := dm.configTopic(ComponentSensor, groupID)

	log.Infof("Removing Home Assistant sensor for face group: %s", groupID)
	if err := dm.mqttClient.PublishRetain(topic, ""); err != nil {
		return fmt.Errorf("failed to remove discovery configuration: %w", err)
	}
	return nil
}

// RegisterVehicleTracker veröffentlicht die Discovery-Konfiguration für einen Fahrzeug-Tracker
func (dm *DiscoveryManager) RegisterVehicleTracker(devID, name string) error {
	trackerConfig := TrackerConfig{
		Name:                name,
		UniqueID:            fmt.Sprintf("face_bridge_vehicle_%s", devID),
		StateTopic:          VehicleStateTopic(devID),
		JSONAttributesTopic: VehicleAttributesTopic(devID),
		PayloadHome:         "home",
		PayloadNotHome:      "not_home",
		Icon:                "mdi:car",
		SourceType:          "gps",
		Device:              dm.device,
	}

	topic := dm.configTopic(ComponentDeviceTracker, devID)

	log.Infof("Registering Home Assistant device tracker for vehicle: %s", devID)
	if err := dm.mqttClient.PublishRetain(topic, trackerConfig); err != nil {
		return fmt.Errorf("failed to publish discovery configuration: %w", err)
	}
	return nil
}

// configTopic baut das Discovery-Topic für eine Komponente auf
func (dm *DiscoveryManager) configTopic(component, objectID string) string {
	prefix := dm.cfg.DiscoveryPrefix
	if prefix == "" {
		prefix = "homeassistant"
	}
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, component, NodeID, objectID)
}

// GroupStateTopic gibt das Zustands-Topic einer Gruppen-Entität zurück
func GroupStateTopic(groupID string) string {
	return fmt.Sprintf("face_bridge/groups/%s/state", groupID)
}

// GroupAttributesTopic gibt das Attribut-Topic einer Gruppen-Entität zurück
func GroupAttributesTopic(groupID string) string {
	return fmt.Sprintf("face_bridge/groups/%s/attributes", groupID)
}

// VehicleStateTopic gibt das Zustands-Topic eines Fahrzeug-Trackers zurück
func VehicleStateTopic(devID string) string {
	return fmt.Sprintf("face_bridge/vehicles/%s/state", devID)
}

// VehicleAttributesTopic gibt das Attribut-Topic eines Fahrzeug-Trackers zurück
func VehicleAttributesTopic(devID string) string {
	return fmt.Sprintf("face_bridge/vehicles/%s/attributes", devID)
}

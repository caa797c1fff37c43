package face

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
)

// MQTTBridge leitet Befehle von MQTT-Topics an den Service weiter. Das
// Topic-Schema ist '<prefix>/command/<befehl>' mit der Payload als
// JSON-Argumente; es implementiert mqtt.MessageHandler.
type MQTTBridge struct {
	service *Service
}

// NewMQTTBridge erstellt eine neue Brücke für MQTT-Befehle
func NewMQTTBridge(service *Service) *MQTTBridge {
	return &MQTTBridge{service: service}
}

// HandleMessage verarbeitet eine eingehende Befehls-Nachricht
func (b *MQTTBridge) HandleMessage(topic string, payload []byte) {
	segments := strings.Split(topic, "/")
	cmd := Command(segments[len(segments)-1])

	log.Debugf("Received MQTT command '%s'", cmd)

	if err := b.service.Dispatch(context.Background(), cmd, payload); err != nil {
		log.WithError(err).Warnf("Rejected MQTT command '%s'", cmd)
	}
}

package homeassistant

import (
	"strconv"

	"facewatch-go/config"
	"facewatch-go/internal/integrations/mqtt"
	"facewatch-go/internal/watcher"

	log "github.com/sirupsen/logrus"
)

// Publisher mirrors watcher state and detection events onto MQTT for
// Home Assistant. It implements watcher.EventSink; publish failures
// are logged and never reach the processing cycle.
type Publisher struct {
	mqttClient *mqtt.Client
	baseTopic  string
}

// NewPublisher creates the MQTT publisher for watcher updates.
func NewPublisher(mqttClient *mqtt.Client, cfg *config.Config) *Publisher {
	return &Publisher{
		mqttClient: mqttClient,
		baseTopic:  cfg.MQTT.BaseTopic,
	}
}

// StateChanged publishes the face count and the attribute JSON,
// both retained so Home Assistant sees the last state after a
// restart. No detection means an empty state payload, which renders
// as unknown.
func (p *Publisher) StateChanged(s watcher.State) {
	state := ""
	if s.TotalFaces != nil {
		state = strconv.Itoa(*s.TotalFaces)
	}
	if err := p.mqttClient.PublishRetain(StateTopic(p.baseTopic, s.ID), state); err != nil {
		log.WithError(err).Errorf("Failed to publish state for %s", s.ID)
	}
	if err := p.mqttClient.PublishRetain(AttributesTopic(p.baseTopic, s.ID), s.Attributes()); err != nil {
		log.WithError(err).Errorf("Failed to publish attributes for %s", s.ID)
	}
}

// FacesDetected publishes the detection event, not retained.
func (p *Publisher) FacesDetected(e watcher.Event) {
	if err := p.mqttClient.Publish(EventTopic(p.baseTopic), e); err != nil {
		log.WithError(err).Errorf("Failed to publish detection event for %s", e.EntityID)
	}
}

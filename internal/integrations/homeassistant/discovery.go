package homeassistant

import (
	"fmt"

	"facewatch-go/config"
	"facewatch-go/internal/integrations/mqtt"
	"facewatch-go/internal/version"
	"facewatch-go/internal/watcher"

	log "github.com/sirupsen/logrus"
)

const (
	// ComponentSensor is the Home Assistant component type watchers
	// are announced as.
	ComponentSensor = "sensor"

	// NodeID groups all facewatch sensors under one discovery node.
	NodeID = "facewatch"
)

// SensorConfig is the MQTT discovery payload for one watcher sensor.
type SensorConfig struct {
	Name                string  `json:"name"`
	UniqueID            string  `json:"unique_id"`
	StateTopic          string  `json:"state_topic"`
	Icon                string  `json:"icon,omitempty"`
	JSONAttributesTopic string  `json:"json_attributes_topic,omitempty"`
	AvailabilityTopic   string  `json:"availability_topic,omitempty"`
	PayloadAvailable    string  `json:"payload_available,omitempty"`
	PayloadNotAvailable string  `json:"payload_not_available,omitempty"`
	Device              *Device `json:"device,omitempty"`
}

// Device is the shared Home Assistant device entry all watcher
// sensors attach to.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// StateTopic returns the topic carrying a watcher's face count.
func StateTopic(base, id string) string {
	return fmt.Sprintf("%s/%s/state", base, id)
}

// AttributesTopic returns the topic carrying a watcher's attributes.
func AttributesTopic(base, id string) string {
	return fmt.Sprintf("%s/%s/attributes", base, id)
}

// EventTopic returns the topic detection events are published on.
func EventTopic(base string) string {
	return base + "/events/detect_face"
}

// TeachTopic returns the command topic for teach requests.
func TeachTopic(base string) string {
	return base + "/teach"
}

// DiscoveryManager announces the watcher sensors to Home Assistant
// via MQTT discovery.
type DiscoveryManager struct {
	mqttClient *mqtt.Client
	cfg        *config.Config
}

// NewDiscoveryManager creates a manager for the given client and
// configuration.
func NewDiscoveryManager(mqttClient *mqtt.Client, cfg *config.Config) *DiscoveryManager {
	return &DiscoveryManager{
		mqttClient: mqttClient,
		cfg:        cfg,
	}
}

// RegisterWatchers publishes a retained discovery configuration for
// every watcher. Failures are logged per watcher; the others still
// get announced.
func (dm *DiscoveryManager) RegisterWatchers(watchers []*watcher.Watcher) {
	device := &Device{
		Identifiers:  []string{"facewatch"},
		Name:         "facewatch",
		Manufacturer: "facewatch",
		Model:        "DeepStack face bridge",
		SWVersion:    version.Version,
	}

	for _, w := range watchers {
		sensorConfig := dm.sensorConfig(w.ID(), w.Name(), device)
		topic := fmt.Sprintf("%s/%s/%s/%s/config",
			dm.cfg.MQTT.HomeAssistant.DiscoveryPrefix,
			ComponentSensor,
			NodeID,
			w.ID())

		log.Infof("Registering Home Assistant sensor for watcher: %s", w.ID())
		if err := dm.mqttClient.PublishRetain(topic, sensorConfig); err != nil {
			log.Errorf("Failed to register sensor for watcher %s: %v", w.ID(), err)
		}
	}
}

func (dm *DiscoveryManager) sensorConfig(id, name string, device *Device) SensorConfig {
	base := dm.cfg.MQTT.BaseTopic
	return SensorConfig{
		Name:                name,
		UniqueID:            fmt.Sprintf("facewatch_%s", id),
		StateTopic:          StateTopic(base, id),
		JSONAttributesTopic: AttributesTopic(base, id),
		Icon:                "mdi:face-recognition",
		AvailabilityTopic:   dm.mqttClient.StatusTopic(),
		PayloadAvailable:    "online",
		PayloadNotAvailable: "offline",
		Device:              device,
	}
}

package homeassistant

import (
	"testing"

	"facewatch-go/config"
	"facewatch-go/internal/integrations/mqtt"
)

func TestTopicScheme(t *testing.T) {
	if got := StateTopic("facewatch", "door"); got != "facewatch/door/state" {
		t.Errorf("StateTopic() = %q, want facewatch/door/state", got)
	}
	if got := AttributesTopic("facewatch", "door"); got != "facewatch/door/attributes" {
		t.Errorf("AttributesTopic() = %q, want facewatch/door/attributes", got)
	}
	if got := EventTopic("facewatch"); got != "facewatch/events/detect_face" {
		t.Errorf("EventTopic() = %q, want facewatch/events/detect_face", got)
	}
	if got := TeachTopic("facewatch"); got != "facewatch/teach" {
		t.Errorf("TeachTopic() = %q, want facewatch/teach", got)
	}
}

func TestSensorConfig(t *testing.T) {
	cfg := &config.Config{
		MQTT: config.MQTTConfig{
			BaseTopic: "facewatch",
			HomeAssistant: config.HomeAssistantConfig{
				Enabled:         true,
				DiscoveryPrefix: "homeassistant",
			},
		},
	}
	dm := NewDiscoveryManager(mqtt.NewClient(cfg.MQTT), cfg)

	sc := dm.sensorConfig("front_door", "facewatch front_door", &Device{Name: "facewatch"})

	if sc.UniqueID != "facewatch_front_door" {
		t.Errorf("UniqueID = %q, want facewatch_front_door", sc.UniqueID)
	}
	if sc.StateTopic != "facewatch/front_door/state" {
		t.Errorf("StateTopic = %q, want facewatch/front_door/state", sc.StateTopic)
	}
	if sc.JSONAttributesTopic != "facewatch/front_door/attributes" {
		t.Errorf("JSONAttributesTopic = %q, want facewatch/front_door/attributes", sc.JSONAttributesTopic)
	}
	if sc.AvailabilityTopic != "facewatch/status" {
		t.Errorf("AvailabilityTopic = %q, want facewatch/status", sc.AvailabilityTopic)
	}
	if sc.PayloadAvailable != "online" || sc.PayloadNotAvailable != "offline" {
		t.Errorf("availability payloads = %q/%q, want online/offline", sc.PayloadAvailable, sc.PayloadNotAvailable)
	}
	if sc.Device == nil || sc.Device.Name != "facewatch" {
		t.Error("Device block missing")
	}
}

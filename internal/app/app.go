package app

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"facewatch-go/config"
	"facewatch-go/internal/api"
	"facewatch-go/internal/cleanup"
	"facewatch-go/internal/db"
	"facewatch-go/internal/db/repository"
	"facewatch-go/internal/history"
	"facewatch-go/internal/integrations/camera"
	"facewatch-go/internal/integrations/deepstack"
	"facewatch-go/internal/integrations/homeassistant"
	"facewatch-go/internal/integrations/mqtt"
	"facewatch-go/internal/logger"
	"facewatch-go/internal/server/sse"
	"facewatch-go/internal/util/timezone"
	"facewatch-go/internal/version"
	"facewatch-go/internal/watcher"

	log "github.com/sirupsen/logrus"
)

// Run assembles the application from the configuration and blocks
// until SIGINT or SIGTERM.
func Run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.Init(cfg.Log)
	timezone.Initialize()
	log.Infof("facewatch %s starting", version.Version)

	faceClient := deepstack.NewClient(cfg.DeepStack)

	// History store
	var repo repository.Repository
	var cleaner *cleanup.Service
	if cfg.History.Enabled {
		database, err := db.Open(cfg.History)
		if err != nil {
			return err
		}
		sqlRepo := repository.NewSQLiteRepository(database)
		repo = sqlRepo
		cleaner = cleanup.NewService(sqlRepo, cfg.History.RetentionDays, 24*time.Hour)
	} else {
		log.Info("History store is disabled in configuration")
	}

	// SSE hub for the dashboard
	hub := sse.NewHub()
	go hub.Run()

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient = mqtt.NewClient(cfg.MQTT)
	}

	// Every watcher publishes through the same sink chain
	sink := watcher.MultiSink{sse.NewBridge(hub)}
	if repo != nil {
		sink = append(sink, history.NewRecorder(repo))
	}
	if mqttClient != nil {
		sink = append(sink, homeassistant.NewPublisher(mqttClient, cfg))
	}

	registry := watcher.NewRegistry()
	for _, wc := range cfg.Watchers {
		w := watcher.New(wc, cfg, faceClient, sink)
		registry.Add(w)
		log.Infof("Watcher %s configured for camera %s", w.ID(), w.Camera())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if mqttClient != nil {
		subscribeWatchers(ctx, mqttClient, cfg, registry)
		if err := mqttClient.Start(); err != nil {
			log.Warnf("Failed to connect to MQTT broker: %v. Continuing without MQTT.", err)
		} else {
			defer mqttClient.Stop()
			if cfg.MQTT.HomeAssistant.Enabled {
				homeassistant.NewDiscoveryManager(mqttClient, cfg).RegisterWatchers(registry.All())
			}
		}
	}

	poller := camera.NewPoller(registry)
	poller.Start(ctx)

	if cleaner != nil {
		cleaner.Start()
		defer cleaner.Stop()
	}

	server, err := api.NewServer(cfg, registry, faceClient, repo, mqttClient, hub)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server shutdown was not clean")
	}
	poller.Wait()

	log.Info("Shutdown complete")
	return nil
}

// subscribeWatchers registers the MQTT routes: one frame topic per
// watcher that has one, and the shared teach command topic.
func subscribeWatchers(ctx context.Context, client *mqtt.Client, cfg *config.Config, registry *watcher.Registry) {
	for _, w := range registry.All() {
		topic := w.FrameTopic()
		if topic == "" {
			continue
		}
		target := w
		client.Subscribe(topic, func(_ string, payload []byte) {
			target.Process(ctx, payload)
		})
	}

	client.Subscribe(homeassistant.TeachTopic(cfg.MQTT.BaseTopic), func(_ string, payload []byte) {
		handleTeachMessage(ctx, registry, payload)
	})
}

// teachMessage is the payload accepted on the teach command topic.
// An empty entity_id list addresses every watcher.
type teachMessage struct {
	Name     string   `json:"name"`
	FilePath string   `json:"file_path"`
	EntityID []string `json:"entity_id"`
}

func handleTeachMessage(ctx context.Context, registry *watcher.Registry, payload []byte) {
	var msg teachMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.WithError(err).Warn("Ignoring malformed teach message")
		return
	}
	if msg.Name == "" || msg.FilePath == "" {
		log.Warn("Ignoring teach message without name or file_path")
		return
	}

	for _, w := range registry.Select(msg.EntityID) {
		if err := w.Teach(ctx, msg.Name, msg.FilePath); err != nil {
			log.WithError(err).Errorf("Teach failed for watcher %s", w.ID())
		}
	}
}

package main

import (
	"context"
	"fmt"
	"time"

	"face-bridge-go/config"
	"face-bridge-go/internal/api/handlers"
	"face-bridge-go/internal/db"
	"face-bridge-go/internal/face"
	"face-bridge-go/internal/integrations/camera"
	"face-bridge-go/internal/integrations/homeassistant"
	"face-bridge-go/internal/integrations/mqtt"
	"face-bridge-go/internal/integrations/msface"
	"face-bridge-go/internal/integrations/vehicle"
	"face-bridge-go/internal/journal"
	"face-bridge-go/internal/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const configPath = "/config/config.yaml"

func main() {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Log); err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}

	// Initialize database connection
	log.Info("Initializing database...")
	database, err := db.Initialize(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Info("Database initialization complete.")

	repo := journal.NewRepository(database)

	// Initialize MQTT Client if enabled
	var mqttClient *mqtt.Client
	var publisher *homeassistant.Publisher
	if cfg.MQTT.Enabled {
		mqttClient = mqtt.NewClient(cfg.MQTT)
		if err := mqttClient.Start(); err != nil {
			log.Warnf("Failed to initialize MQTT client: %v. Continuing without MQTT.", err)
			mqttClient = nil
		} else {
			defer mqttClient.Stop()
		}

		if mqttClient != nil && cfg.MQTT.HomeAssistant.Enabled {
			discovery := homeassistant.NewDiscoveryManager(mqttClient, cfg.MQTT.HomeAssistant)
			publisher = homeassistant.NewPublisher(mqttClient, discovery)
			publisher.PublishAvailability(true)
			defer publisher.PublishAvailability(false)
		}
	} else {
		log.Info("MQTT is disabled in config.")
	}

	// Initialize Face API client
	var refresher msface.Refresher
	if publisher != nil {
		refresher = publisher
	}
	faceClient := msface.New(
		cfg.Face.AzureRegion,
		cfg.Face.APIKey,
		time.Duration(cfg.Face.TimeoutSeconds)*time.Second,
		refresher,
	)

	// --- Initial store sync ---
	if cfg.Face.Enabled {
		log.Info("Loading groups and persons from face api...")
		if err := runSync(faceClient, repo); err != nil {
			// Ohne initialen Abgleich ist der gespiegelte Store unbrauchbar
			log.Fatalf("Can't load data from face api: %v", err)
		}
		log.Info("Initial face store sync completed.")

		// --- Start periodic sync goroutine ---
		if cfg.Face.SyncIntervalMinutes > 0 {
			go func() {
				ticker := time.NewTicker(time.Duration(cfg.Face.SyncIntervalMinutes) * time.Minute)
				defer ticker.Stop()
				log.Infof("Starting periodic face store sync every %d minutes", cfg.Face.SyncIntervalMinutes)
				for range ticker.C {
					log.Info("Running periodic face store sync...")
					if err := runSync(faceClient, repo); err != nil {
						log.WithError(err).Error("Periodic face store sync failed")
					} else {
						log.Info("Periodic face store sync completed.")
					}
				}
			}()
		} else {
			log.Info("Periodic face store sync disabled (interval set to 0).")
		}
	}

	// Initialize camera snapshot source if enabled
	var images face.ImageSource
	if cfg.Camera.Enabled {
		images = camera.NewClient(cfg.Camera)
	} else {
		log.Info("Camera integration is disabled in config.")
	}

	// Command service + MQTT command bridge
	faceService := face.NewService(faceClient, images, repo)
	if mqttClient != nil {
		mqttClient.RegisterHandler(face.NewMQTTBridge(faceService))
	}

	// Initialize vehicle tracker if enabled
	if cfg.Vehicle.Enabled {
		if publisher == nil {
			log.Warn("Vehicle tracking requires MQTT with Home Assistant enabled; skipping.")
		} else {
			tracker := vehicle.NewTracker(vehicle.NewClient(cfg.Vehicle), publisher.SeeVehicle)
			interval := time.Duration(cfg.Vehicle.PollIntervalMinutes) * time.Minute
			go tracker.Poll(context.Background(), interval)
		}
	}

	// --- Setup API routes ---
	router := gin.Default()
	router.Use(cors.Default())

	apiHandler := handlers.NewAPIHandler(cfg, faceService, repo, mqttClient)
	apiHandler.RegisterRoutes(router.Group("/api"))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Infof("Starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runSync führt einen vollständigen Store-Abgleich aus und journaliert ihn
func runSync(client *msface.Client, repo *journal.Repository) error {
	start := time.Now()
	err := client.UpdateStore(context.Background())
	duration := time.Since(start)

	store := client.Store()
	groups := store.Groups()
	persons := 0
	for id := range groups {
		persons += store.PersonCount(id)
	}

	repo.RecordSync(len(groups), persons, duration, err)
	return err
}

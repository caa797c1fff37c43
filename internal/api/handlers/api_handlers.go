package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"face-bridge-go/config"
	"face-bridge-go/internal/face"
	"face-bridge-go/internal/integrations/mqtt"
	"face-bridge-go/internal/journal"
	"face-bridge-go/internal/utils"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// APIHandler behandelt API-Anfragen für das System
type APIHandler struct {
	cfg        *config.Config
	service    *face.Service
	repo       *journal.Repository
	mqttClient *mqtt.Client
}

// NewAPIHandler erstellt einen neuen API-Handler
func NewAPIHandler(cfg *config.Config, service *face.Service, repo *journal.Repository, mqttClient *mqtt.Client) *APIHandler {
	return &APIHandler{
		cfg:        cfg,
		service:    service,
		repo:       repo,
		mqttClient: mqttClient,
	}
}

// RegisterRoutes registriert alle API-Routen
func (h *APIHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Befehls-Endpunkte
	router.POST("/commands/:command", h.DispatchCommand)

	// Gruppen-Endpunkte (Lesesicht auf den gespiegelten Store)
	router.GET("/groups", h.ListGroups)
	router.GET("/groups/:id", h.GetGroup)

	// Journal-Endpunkte
	router.GET("/journal/commands", h.ListCommands)
	router.GET("/journal/syncs", h.ListSyncRuns)

	// System-Endpunkte
	router.POST("/sync", h.SyncStore)
	router.GET("/status", h.GetStatus)
}

// DispatchCommand nimmt einen Befehl an und führt ihn aus. Die Antwort ist
// 202, sobald die Payload gültig ist; das Ergebnis der entfernten Operation
// wird nicht zurückgemeldet, sondern nur im Journal festgehalten.
func (h *APIHandler) DispatchCommand(c *gin.Context) {
	cmd := face.Command(c.Param("command"))

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	if err := h.service.Dispatch(c.Request.Context(), cmd, payload); err != nil {
		log.WithError(err).Warnf("Rejected command '%s'", cmd)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"command": string(cmd),
	})
}

// ListGroups gibt alle lokal bekannten Gruppen zurück
func (h *APIHandler) ListGroups(c *gin.Context) {
	store := h.service.Client().Store()

	groups := make([]gin.H, 0)
	for id, name := range store.Groups() {
		groups = append(groups, gin.H{
			"id":      id,
			"name":    name,
			"persons": store.PersonCount(id),
		})
	}

	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetGroup gibt eine Gruppe samt Personenzuordnung zurück
func (h *APIHandler) GetGroup(c *gin.Context) {
	id := c.Param("id")
	store := h.service.Client().Store()

	name, ok := store.GroupName(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      id,
		"name":    name,
		"state":   store.PersonCount(id),
		"persons": store.Persons(id),
	})
}

// ListCommands gibt die letzten journalierten Befehle zurück
func (h *APIHandler) ListCommands(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	records, err := h.repo.RecentCommands(limit)
	if err != nil {
		log.WithError(err).Error("Failed to read command journal")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read journal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"commands": records})
}

// ListSyncRuns gibt die letzten journalierten Abgleiche zurück
func (h *APIHandler) ListSyncRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	runs, err := h.repo.RecentSyncRuns(limit)
	if err != nil {
		log.WithError(err).Error("Failed to read sync journal")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read journal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"syncs": runs})
}

// SyncStore stößt einen vollständigen Abgleich mit dem Face-Dienst an
func (h *APIHandler) SyncStore(c *gin.Context) {
	client := h.service.Client()

	start := time.Now()
	err := client.UpdateStore(c.Request.Context())
	duration := time.Since(start)

	store := client.Store()
	groups := store.Groups()
	persons := 0
	for id := range groups {
		persons += store.PersonCount(id)
	}

	if h.repo != nil {
		h.repo.RecordSync(len(groups), persons, duration, err)
	}

	if err != nil {
		log.WithError(err).Error("Manual store sync failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"groups":   len(groups),
		"persons":  persons,
		"duration": duration.String(),
	})
}

// GetStatus gibt System- und Anwendungsstatus zurück
func (h *APIHandler) GetStatus(c *gin.Context) {
	store := h.service.Client().Store()
	groups := store.Groups()
	persons := 0
	for id := range groups {
		persons += store.PersonCount(id)
	}

	mqttConnected := false
	if h.mqttClient != nil {
		mqttConnected = h.mqttClient.IsConnected()
	}

	c.JSON(http.StatusOK, gin.H{
		"system":         utils.GetSystemStats(),
		"groups":         len(groups),
		"persons":        persons,
		"mqtt_connected": mqttConnected,
	})
}

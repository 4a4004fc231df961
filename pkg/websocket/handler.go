package websocket

import (
	"net/http"
	"strings"

	"pulsepath/internal/models"
	"pulsepath/internal/repositories/interfaces"
	"pulsepath/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // tighten via reverse proxy in production
	},
}

// SubscribeFunc attaches a filtered subscription to the live event fanout
// and returns its id, the event channel and a cancel.
type SubscribeFunc func(filter models.EventFilter) (string, <-chan *models.RequestEvent, func())

// Handler upgrades authenticated callers to a live event stream. The
// subscription filter is derived from the caller's role, never from
// client-supplied identity, so a patient cannot stream another patient's
// requests.
type Handler struct {
	hub          *Hub
	subscribe    SubscribeFunc
	hospitalRepo interfaces.HospitalRepository
	log          *logger.Logger
}

func NewHandler(subscribe SubscribeFunc, hospitalRepo interfaces.HospitalRepository, log *logger.Logger) *Handler {
	hub := NewHub(log)
	go hub.Run()

	return &Handler{
		hub:          hub,
		subscribe:    subscribe,
		hospitalRepo: hospitalRepo,
		log:          log,
	}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	callerID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roleValue, exists := c.Get("role")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "role not found"})
		return
	}

	id, ok := callerID.(primitive.ObjectID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid caller id"})
		return
	}
	role := models.Role(roleValue.(string))

	filter, err := h.filterFor(c, id, role)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscriber profile not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	subID, events, cancel := h.subscribe(filter)
	client := NewClient(h.hub, conn, id, role, subID, events, cancel)
	h.hub.register <- client

	go client.pumpEvents()
	go client.writePump()
	go client.readPump()
}

// filterFor builds the role-appropriate subscription predicate. Query
// parameters may narrow it further (statuses), never widen it.
func (h *Handler) filterFor(c *gin.Context, id primitive.ObjectID, role models.Role) (models.EventFilter, error) {
	filter := models.EventFilter{Statuses: parseStatuses(c.Query("statuses"))}

	switch role {
	case models.RolePatient:
		filter.PatientID = &id
	case models.RoleHospital:
		hospital, err := h.hospitalRepo.GetByID(c.Request.Context(), id)
		if err != nil {
			return filter, err
		}
		filter.HospitalID = &id
		filter.HospitalType = hospital.Type
		for ward := range hospital.Capacity {
			filter.ServedWards = append(filter.ServedWards, ward)
		}
	case models.RoleAmbulance:
		filter.AmbulanceID = &id
	}

	return filter, nil
}

func parseStatuses(raw string) []models.RequestStatus {
	if raw == "" {
		return nil
	}
	var statuses []models.RequestStatus
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			statuses = append(statuses, models.RequestStatus(part))
		}
	}
	return statuses
}

func (h *Handler) Hub() *Hub {
	return h.hub
}

package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/Dosada05/field-control/field"
	"github.com/Dosada05/field-control/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Dashboards run on the field network; origin filtering belongs in
		// the reverse proxy when one is deployed.
		return true
	},
}

// ControlHandler exposes the field controller over HTTP and WebSocket.
type ControlHandler struct {
	controller *field.Controller
	hub        *field.Hub
}

func NewControlHandler(controller *field.Controller, hub *field.Hub) *ControlHandler {
	return &ControlHandler{controller: controller, hub: hub}
}

// PostControl handles one operator command and answers with the resulting
// snapshot. The same snapshot is broadcast to every attached client so
// dashboards converge without polling.
func (h *ControlHandler) PostControl(w http.ResponseWriter, r *http.Request) {
	var request models.ControlRequest
	if err := readJSON(w, r, &request); err != nil {
		badRequestResponse(w, err)
		return
	}

	response, err := h.controller.Handle(r.Context(), request)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}
	h.controller.Broadcast(r.Context())
	writeJSON(w, http.StatusOK, response)
}

// GetControl returns the current snapshot without mutating anything.
func (h *ControlHandler) GetControl(w http.ResponseWriter, r *http.Request) {
	response, err := h.controller.Snapshot(r.Context())
	if err != nil {
		serverErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// ServeWs upgrades a dashboard connection and attaches it to the hub. The new
// client immediately receives one snapshot so it converges without waiting
// for the ticker.
func (h *ControlHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("failed to upgrade control connection: %v", err)
		return
	}

	client := &field.Client{
		ID:   uuid.New(),
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
	}
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	// The hub may not have processed the registration yet, and a targeted
	// broadcast silently skips an unregistered client, so the welcome
	// snapshot goes straight onto the client's queue.
	snapshot, err := h.controller.Snapshot(r.Context())
	if err != nil {
		log.Printf("building welcome snapshot: %v", err)
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("marshalling welcome snapshot: %v", err)
		return
	}
	client.Deliver(payload)
}

package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	wsInfra "github.com/dreschagin/item-tracker/internal/infrastructure/notification/websocket"
)

// LogStreamHandler поднимает WebSocket live-tail эмитируемых записей
type LogStreamHandler struct {
	hub            *wsInfra.Hub
	allowedOrigins map[string]struct{}
	upgrader       websocket.Upgrader
}

// NewLogStreamHandler создает новый handler
func NewLogStreamHandler(hub *wsInfra.Hub, allowedOrigins []string) *LogStreamHandler {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	h := &LogStreamHandler{
		hub:            hub,
		allowedOrigins: originMap,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

func (h *LogStreamHandler) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		// Не-браузерные клиенты (wscat, tests) Origin не шлют
		return true
	}

	_, ok := h.allowedOrigins[origin]
	return ok
}

// HandleConnection обрабатывает GET /ws/logs
func (h *LogStreamHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrader уже ответил клиенту
		return
	}

	client := wsInfra.NewClient(h.hub, conn)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

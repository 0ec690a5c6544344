package websocket

import (
	"context"
	"fmt"
	"sync"

	"github.com/dreschagin/item-tracker/pkg/logging"
)

// Hub управляет WebSocket клиентами и рассылает им log records
// Реализует интерфейс logging.Sink: каждый emitted record уходит
// всем подключенным клиентам live-tail
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Канал для broadcast записей
	broadcast chan logging.Record

	// Канал для регистрации клиентов
	register chan *Client

	// Канал для удаления клиентов
	unregister chan *Client

	// Mutex для защиты clients map
	mu sync.RWMutex
}

// NewHub создает новый WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan logging.Record, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run запускает hub (должен быть запущен в отдельной goroutine)
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case rec := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- rec:
					// Запись отправлена
				default:
					// Канал клиента заполнен, отключаем медленного клиента
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister удаляет клиента
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Deliver реализует logging.Sink: record уходит в broadcast канал без
// ожидания; при заполненном канале запись теряется
func (h *Hub) Deliver(_ context.Context, rec logging.Record) error {
	select {
	case h.broadcast <- rec:
		return nil
	default:
		return fmt.Errorf("broadcast channel full, record dropped")
	}
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dreschagin/item-tracker/pkg/logging"
)

// ClientLogHandler принимает log payload от внешнего producer-а (браузера),
// нормализует его и отправляет в общий Emitter/Sink путь
type ClientLogHandler struct {
	emitter *logging.Emitter
}

// NewClientLogHandler создает новый handler
func NewClientLogHandler(emitter *logging.Emitter) *ClientLogHandler {
	return &ClientLogHandler{emitter: emitter}
}

// HandleClientLog обрабатывает POST /client-log. Сервер только заполняет
// пропуски: значения клиента для нормализуемых ключей всегда побеждают.
// Ответ 204 не зависит от судьбы доставки в collector.
func (h *ClientLogHandler) HandleClientLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	body := decodeBody(r)

	// message по умолчанию берет event клиента, если тот есть
	message := "No message"
	if event, ok := body[logging.KeyEvent].(string); ok && event != "" {
		message = event
	}

	rec := logging.NewRecord(map[string]any{
		logging.KeyTimestamp: logging.Timestamp(time.Now()),
		logging.KeyService:   "frontend",
		logging.KeyEvent:     "unknown",
		logging.KeyLevel:     logging.LevelInfo,
		logging.KeyMessage:   message,
		"via":                "client-log",
	}, body)

	h.emitter.EmitRecord(rec)

	w.WriteHeader(http.StatusNoContent)
}

// decodeBody разбирает тело запроса; любой мусор эквивалентен {}
func decodeBody(r *http.Request) map[string]any {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		return map[string]any{}
	}
	return body
}

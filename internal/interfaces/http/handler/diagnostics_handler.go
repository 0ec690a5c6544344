package handler

import (
	"net/http"

	"github.com/dreschagin/item-tracker/pkg/logging"
)

// DiagnosticsHandler — маршруты для проверки logging pipeline
type DiagnosticsHandler struct {
	emitter *logging.Emitter
}

// NewDiagnosticsHandler создает новый handler
func NewDiagnosticsHandler(emitter *logging.Emitter) *DiagnosticsHandler {
	return &DiagnosticsHandler{emitter: emitter}
}

// HandleTestError безусловно эмитит warn и error записи и отвечает 500.
// Маршрут диагностический: им проверяют прохождение записей до collector-а.
func (h *DiagnosticsHandler) HandleTestError(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.emitter.Emit("test_error_incoming", map[string]any{
		"level":   logging.LevelWarn,
		"message": "Deliberate failure requested",
	})
	h.emitter.Emit("test_error", map[string]any{
		"level":   logging.LevelError,
		"message": "Deliberate test error",
	})

	respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "Intentional test error"})
}

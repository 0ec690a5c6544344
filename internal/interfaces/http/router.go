package http

import (
	"net/http"

	"github.com/dreschagin/item-tracker/internal/interfaces/http/handler"
	"github.com/dreschagin/item-tracker/internal/interfaces/http/middleware"
	"github.com/dreschagin/item-tracker/pkg/logging"
)

// Router настраивает маршруты приложения
type Router struct {
	mux                *http.ServeMux
	itemsHandler       *handler.ItemsAPIHandler
	clientLogHandler   *handler.ClientLogHandler
	diagnosticsHandler *handler.DiagnosticsHandler
	logStreamHandler   *handler.LogStreamHandler
	emitter            *logging.Emitter
}

// NewRouter создает новый router
func NewRouter(
	itemsHandler *handler.ItemsAPIHandler,
	clientLogHandler *handler.ClientLogHandler,
	diagnosticsHandler *handler.DiagnosticsHandler,
	logStreamHandler *handler.LogStreamHandler,
	emitter *logging.Emitter,
) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		itemsHandler:       itemsHandler,
		clientLogHandler:   clientLogHandler,
		diagnosticsHandler: diagnosticsHandler,
		logStreamHandler:   logStreamHandler,
		emitter:            emitter,
	}
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	// Health endpoint для probes, без JSON
	rt.mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// API endpoints
	rt.mux.HandleFunc("/api/items", rt.itemsHandler.HandleItems)
	rt.mux.HandleFunc("/api/test-error", rt.diagnosticsHandler.HandleTestError)

	// Прием логов от внешних producer-ов
	rt.mux.HandleFunc("/client-log", rt.clientLogHandler.HandleClientLog)

	// WebSocket live-tail
	rt.mux.HandleFunc("/ws/logs", rt.logStreamHandler.HandleConnection)

	// Применяем middleware: RequestLogger снаружи Recovery, чтобы
	// http_request запись видела статус 500 после паники
	var h http.Handler = rt.mux
	h = middleware.Recovery(rt.emitter)(h)
	h = middleware.RequestLogger(rt.emitter)(h)
	h = middleware.WithRequestID(h)

	return h
}

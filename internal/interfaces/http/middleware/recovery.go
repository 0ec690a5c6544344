package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/dreschagin/item-tracker/pkg/logging"
)

// Recovery превращает panic в handler-е в 500 ответ и error record.
// Стоит внутри RequestLogger, чтобы статус 500 попал в http_request запись.
func Recovery(emitter *logging.Emitter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					emitter.Emit("panic_recovered", map[string]any{
						"level":   logging.LevelError,
						"error":   fmt.Sprint(rec),
						"stack":   string(debug.Stack()),
						"method":  r.Method,
						"path":    r.URL.Path,
						"message": fmt.Sprintf("panic while handling %s %s", r.Method, r.URL.Path),
					})
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

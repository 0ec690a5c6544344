package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dreschagin/item-tracker/pkg/logging"
)

// RequestLogger эмитит ровно один http_request record на каждый завершенный
// запрос. Статус берется из wrapper-а и отражает итог, включая ответы
// recovery middleware. Hijacked (WebSocket) соединения записи не дают.
func RequestLogger(emitter *logging.Emitter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrapper для response writer чтобы захватить status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			if wrapped.hijacked {
				return
			}

			duration := time.Since(start).Milliseconds()

			level := logging.LevelInfo
			if wrapped.statusCode >= 400 {
				level = logging.LevelError
			}

			fields := map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.statusCode,
				"duration_ms": duration,
				"level":       level,
				"message": fmt.Sprintf("%s %s -> %d (%dms)",
					r.Method, r.URL.Path, wrapped.statusCode, duration),
			}
			if rid := RequestID(r); rid != "" {
				fields["request_id"] = rid
			}

			emitter.Emit("http_request", fields)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	hijacked    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Hijack реализует http.Hijacker для поддержки WebSocket
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	rw.hijacked = true
	return hijacker.Hijack()
}

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/aisradar/internal/monitoring"
)

// ANSI escape codes for request log colouring
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush keeps the debug tail stream working behind the middleware.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func statusCodeColor(code int) string {
	s := strconv.Itoa(code)
	switch {
	case code >= 400:
		return colorBoldRed + s + colorReset
	case code >= 300:
		return colorYellow + s + colorReset
	case code >= 200:
		return colorBoldGreen + s + colorReset
	}
	return s
}

// LoggingMiddleware logs every request with its status and duration.
// Successful GETs of a quiet path, matched exactly against the URL path,
// are logged only in debug mode.
func LoggingMiddleware(next http.Handler, quiet ...string) http.Handler {
	quietPaths := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		quietPaths[p] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)

		logf := monitoring.Logf
		if r.Method == http.MethodGet && sr.status < 400 && quietPaths[r.URL.Path] {
			logf = monitoring.Debugf
		}
		logf("[%s] %s %s%s%s %.3fms",
			statusCodeColor(sr.status), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Microseconds())/1e3)
	})
}

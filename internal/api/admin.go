package api

import (
	"fmt"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/aisradar/internal/httputil"
	"github.com/banshee-data/aisradar/internal/ranking"
)

// AttachAdminRoutes registers the /debug/ pages: engine counters, a dump of
// the ranked list and a live tail of raw stream payloads.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("radar", "ranked contacts, one line each", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		st := s.e.Status()
		fmt.Fprintf(w, "stream %s  session %s  attempts %d  next backoff %s\n",
			st.Stream.State, st.Stream.Session, st.Stream.Attempts, st.Stream.NextBackoff)
		fmt.Fprintf(w, "deltas %d  rejected %d  tracks %d  contacts %d  dangers %d  paused %t\n\n",
			st.Ingest.Deltas, st.Ingest.Rejected, st.Tracks, st.Contacts, st.Dangers, st.Stream.Paused)
		for i, c := range s.e.Contacts() {
			fmt.Fprintf(w, "%2d %-24s %s\n", i+1, c.Label, contactLine(c))
		}
	})

	debug.HandleSilentFunc("status.json", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, s.e.Status())
	})

	// Server-Sent Events carrying every payload read from the stream,
	// including ones dropped while paused.
	debug.HandleFunc("tail", "live tail of raw stream payloads (SSE)", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		sup := s.e.Stream()
		id, c := sup.Subscribe()
		defer sup.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}

func contactLine(c ranking.Contact) string {
	cpaText := "cpa -"
	if c.CPA != nil {
		cpaText = fmt.Sprintf("cpa %.2fnm tcpa %.1fmin", c.CPA.CpaNm, c.CPA.TcpaMin)
	}
	danger := ""
	if c.Danger {
		danger = " DANGER"
	}
	return fmt.Sprintf("%5.2fnm %03.0f° %s score %.2f %s age %s%s",
		c.RangeNm, c.BearingDeg, cpaText, c.Score, c.Band, c.AgeText, danger)
}

// Package api serves the engine's ranked contacts, own-ship, connection
// status, selection and runtime settings as JSON for a renderer.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/aisradar/internal/engine"
	"github.com/banshee-data/aisradar/internal/httputil"
	"github.com/banshee-data/aisradar/internal/ranking"
	"github.com/banshee-data/aisradar/internal/units"
)

type Server struct {
	e *engine.Engine
}

func NewServer(e *engine.Engine) *Server {
	return &Server{e: e}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/contacts", s.listContacts)
	mux.HandleFunc("/ownship", s.showOwnship)
	mux.HandleFunc("/status", s.showStatus)
	mux.HandleFunc("/config", s.showConfig)
	mux.HandleFunc("/settings", s.handleSettings)
	mux.HandleFunc("/selection", s.handleSelection)
	mux.HandleFunc("/pause", s.handlePause)
	mux.HandleFunc("/reset", s.handleReset)
	return mux
}

// contactView is a contact with its speed over ground in the requested units.
type contactView struct {
	ranking.Contact
	Speed      float64 `json:"speed"`
	SpeedUnits string  `json:"speed_units"`
}

// listContacts returns the last ranked list. With ?units= each contact also
// carries its SOG converted to those units.
func (s *Server) listContacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	unit := r.URL.Query().Get("units")
	if unit == "" {
		httputil.WriteJSONOK(w, s.e.Contacts())
		return
	}
	if !units.IsValid(unit) {
		httputil.BadRequest(w, fmt.Sprintf("Invalid 'units' parameter. Must be one of: %s", units.GetValidUnitsString()))
		return
	}
	contacts := s.e.Contacts()
	out := make([]contactView, len(contacts))
	for i, c := range contacts {
		out[i] = contactView{
			Contact:    c,
			Speed:      units.ConvertSpeed(units.KnotsToMPS(c.SogKn), unit),
			SpeedUnits: unit,
		}
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) showOwnship(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, s.e.Own())
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, s.e.Status())
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, s.e.Config())
}

// settingsPatch is a partial settings update. Omitted fields are kept.
type settingsPatch struct {
	RangeNm       *float64 `json:"range_nm"`
	CpaThreshNm   *float64 `json:"cpa_threshold_nm"`
	TcpaThreshMin *float64 `json:"tcpa_threshold_min"`
	DangerEnabled *bool    `json:"danger_enabled"`
	ShowVectors   *bool    `json:"show_vectors"`
	ShowLabels    *bool    `json:"show_labels"`
}

func (p settingsPatch) apply(s *engine.Settings) {
	if p.RangeNm != nil {
		s.RangeNm = *p.RangeNm
	}
	if p.CpaThreshNm != nil {
		s.CpaThreshNm = *p.CpaThreshNm
	}
	if p.TcpaThreshMin != nil {
		s.TcpaThreshMin = *p.TcpaThreshMin
	}
	if p.DangerEnabled != nil {
		s.DangerEnabled = *p.DangerEnabled
	}
	if p.ShowVectors != nil {
		s.ShowVectors = *p.ShowVectors
	}
	if p.ShowLabels != nil {
		s.ShowLabels = *p.ShowLabels
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.e.Settings())
	case http.MethodPost:
		var patch settingsPatch
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&patch); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("Invalid settings: %v", err))
			return
		}
		httputil.WriteJSONOK(w, s.e.UpdateSettings(patch.apply))
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleSelection moves the selection cursor. POST takes action=next,
// previous, clear, select or toggle; select and toggle also need id.
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.e.Selected())
		return
	case http.MethodPost:
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}

	action := r.FormValue("action")
	switch action {
	case "next":
		httputil.WriteJSONOK(w, s.e.Next())
	case "previous":
		httputil.WriteJSONOK(w, s.e.Previous())
	case "clear":
		s.e.ClearSelection()
		httputil.WriteJSONOK(w, s.e.Selected())
	case "select", "toggle":
		id := r.FormValue("id")
		if id == "" {
			httputil.BadRequest(w, "Missing 'id' parameter")
			return
		}
		var ok bool
		if action == "select" {
			ok = s.e.Select(id)
		} else {
			ok = s.e.Toggle(id)
		}
		if !ok {
			httputil.NotFound(w, fmt.Sprintf("No contact %q in the current list", id))
			return
		}
		httputil.WriteJSONOK(w, s.e.Selected())
	default:
		httputil.BadRequest(w, fmt.Sprintf("Invalid 'action' parameter %q", action))
	}
}

// handlePause sets the pause flag from paused=true|false, or toggles it
// when the parameter is absent.
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	paused := !s.e.Paused()
	if v := r.FormValue("paused"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			httputil.BadRequest(w, "Invalid 'paused' parameter")
			return
		}
		paused = b
	}
	s.e.SetPaused(paused)
	httputil.WriteJSONOK(w, map[string]bool{"paused": paused})
}

// handleReset drops every track and own-ship.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	s.e.Reset()
	httputil.WriteJSONOK(w, s.e.Status())
}

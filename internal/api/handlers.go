package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"xraas_nd/internal/ndalert"
)

// DecodeResponse is the JSON response for a decoded value.
type DecodeResponse struct {
	Raw       string `json:"raw"`
	Decoded   bool   `json:"decoded"`
	MsgType   int    `json:"msg_type"`
	Text      string `json:"text,omitempty"`
	Color     int    `json:"color"`
	ColorName string `json:"color_name,omitempty"`
	Error     string `json:"error,omitempty"`
}

func decodeResponse(v uint32) DecodeResponse {
	resp := DecodeResponse{Raw: ndalert.FormatValue(v)}
	a, ok := ndalert.Decode(v)
	if !ok {
		f := ndalert.Unpack(v)
		resp.MsgType = int(f.Type)
		resp.Color = int(f.Color)
		resp.Error = ndalert.ErrUndecodable.Error()
		return resp
	}
	resp.Decoded = true
	resp.MsgType = int(a.Type)
	resp.Text = a.Text
	resp.Color = int(a.Color)
	resp.ColorName = a.Color.String()
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	v, err := ndalert.ParseValue(chi.URLParam(r, "value"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid value: "+err.Error())
		return
	}

	resp := decodeResponse(v)
	if !resp.Decoded {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// BatchRequest is the request body for batch decoding. Values may be JSON
// numbers or strings holding decimal or 0x-prefixed hex.
type BatchRequest struct {
	Values []json.RawMessage `json:"values"`
}

func (s *Server) handleDecodeBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	if len(req.Values) == 0 {
		writeError(w, http.StatusBadRequest, "No values specified")
		return
	}
	if len(req.Values) > maxBatch {
		writeError(w, http.StatusBadRequest, "Maximum "+strconv.Itoa(maxBatch)+" values per batch request")
		return
	}

	results := make([]DecodeResponse, 0, len(req.Values))
	for _, raw := range req.Values {
		v, err := ndalert.ParseValue(strings.Trim(string(raw), `"`))
		if err != nil {
			results = append(results, DecodeResponse{Raw: string(raw), Error: err.Error()})
			continue
		}
		results = append(results, decodeResponse(v))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

// EncodeRequest is the request body for /encode.
type EncodeRequest struct {
	MsgType  int    `json:"msg_type"`
	Level    string `json:"level"`
	Runway   string `json:"runway,omitempty"`
	Distance *int   `json:"distance,omitempty"` // meters, omitted = no length
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req EncodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	level := ndalert.Routine
	if req.Level != "" {
		l, err := ndalert.ParseLevel(req.Level)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		level = l
	}
	if req.MsgType < 0 || req.MsgType > 0x3f || !ndalert.MsgType(req.MsgType).Valid() {
		writeError(w, http.StatusBadRequest, "Unknown msg_type")
		return
	}

	dist := -1
	if req.Distance != nil {
		dist = *req.Distance
	}

	v, ok := ndalert.Encode(ndalert.Request{
		Type:     ndalert.MsgType(req.MsgType),
		Level:    level,
		Runway:   req.Runway,
		Distance: dist,
	}, s.encode)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "Alert not published with current settings")
		return
	}

	writeJSON(w, http.StatusOK, decodeResponse(v))
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeError(w, http.StatusNotFound, "No feed attached")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": s.tracker.Snapshot(),
		"stats":  s.tracker.GetStats(),
	})
}

func (s *Server) handleCurrentSource(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeError(w, http.StatusNotFound, "No feed attached")
		return
	}
	cur, ok := s.tracker.Current(chi.URLParam(r, "source"))
	if !ok {
		writeError(w, http.StatusNotFound, "No alert displayed")
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeError(w, http.StatusNotFound, "No alert log configured")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 || n > 10000 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	records, err := s.alerts.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": records,
		"count":  len(records),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeError(w, http.StatusNotFound, "No alert log configured")
		return
	}

	counts, err := s.alerts.CountByType(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// JSON object keys must be strings.
	out := make(map[string]int, len(counts))
	for t, n := range counts {
		out[strconv.Itoa(int(t))] = n
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"by_type": out,
	})
}

// parseWindow reads a duration query parameter such as "15m".
func parseWindow(r *http.Request, name string, def time.Duration) (time.Duration, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "No history store configured")
		return
	}

	window, ok := parseWindow(r, "window", time.Hour)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid window")
		return
	}

	counts, err := s.history.CountSince(r.Context(), time.Now().Add(-window))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"window": window.String(),
		"counts": counts,
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if s.states == nil {
		writeError(w, http.StatusNotFound, "No state store configured")
		return
	}

	within, ok := parseWindow(r, "within", 15*time.Minute)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid within")
		return
	}

	sources, err := s.states.ListCurrent(r.Context(), within)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	})
}

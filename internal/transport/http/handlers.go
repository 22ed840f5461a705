package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"roulette/internal/domain"
)

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	OpenViews    int `json:"openViews"`
	TotalClients int `json:"totalClients"`
}

// WordsResponse lists the reel words per category
type WordsResponse struct {
	Words map[string][]string `json:"words"`
}

// RecordsResponse is the current record list, newest first
type RecordsResponse struct {
	Records domain.Snapshot `json:"records"`
}

// recordsTimeout bounds a /api/records read
const recordsTimeout = 10 * time.Second

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &StatsResponse{
		OpenViews:    s.hub.TableCount(),
		TotalClients: s.hub.ClientCount(),
	})
}

// handleWords handles GET /api/words
func (s *Server) handleWords(w http.ResponseWriter, r *http.Request) {
	words := make(map[string][]string, len(domain.Categories))
	for _, c := range domain.Categories {
		words[c.String()] = s.bank.Words(c)
	}

	s.sendSuccess(w, &WordsResponse{Words: words})
}

// handleRecords handles GET /api/records
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), recordsTimeout)
	defer cancel()

	records, err := s.records.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list records")
		s.sendError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Records are unavailable")
		return
	}

	s.sendSuccess(w, &RecordsResponse{Records: records.Clone()})
}

// handleStatic serves static files
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	// Strip /static/ prefix
	path := strings.TrimPrefix(r.URL.Path, "/static/")

	// Try to open from webFS
	file, err := s.webFS.Open("static/" + path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer file.Close()

	// Get file info for content type and modification time
	stat, err := file.Stat()
	if err != nil || stat.IsDir() {
		http.NotFound(w, r)
		return
	}

	seeker, ok := file.(io.ReadSeeker)
	if !ok {
		http.NotFound(w, r)
		return
	}

	// Serve the file
	http.ServeContent(w, r, stat.Name(), stat.ModTime(), seeker)
}

// handleSPA serves the page for every other route
func (s *Server) handleSPA(w http.ResponseWriter, r *http.Request) {
	file, err := s.webFS.Open("index.html")
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	seeker, ok := file.(io.ReadSeeker)
	if !ok {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, "index.html", stat.ModTime(), seeker)
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}

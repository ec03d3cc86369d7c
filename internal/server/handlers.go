package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "qtop",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleStatus reports database health and uptime
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	databases := make(map[string]string, len(s.databases))
	healthy := true
	for _, db := range s.databases {
		if db == nil {
			continue
		}
		if err := db.QuickCheck(r.Context()); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("Database check failed")
			databases[db.Name()] = err.Error()
			healthy = false
			continue
		}
		databases[db.Name()] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"healthy":        healthy,
		"databases":      databases,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

// handleListJobs lists the jobs that can be triggered manually
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": names})
}

// handleRunJob runs a registered job synchronously
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := s.jobs[name]
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown job: " + name})
		return
	}

	start := time.Now()
	if err := job.Run(); err != nil {
		s.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":         name,
		"status":      "completed",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

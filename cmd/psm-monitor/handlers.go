package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/psmlab/realtime/pkg/activity"
	"github.com/psmlab/realtime/pkg/alerts"
	"github.com/psmlab/realtime/pkg/keys"
	"github.com/psmlab/realtime/pkg/metrics"
	"github.com/psmlab/realtime/pkg/observability"
	"github.com/psmlab/realtime/pkg/trending"
)

// apiServer exposes read-mostly HTTP endpoints over the realtime services.
type apiServer struct {
	ledger   *metrics.Ledger
	trending *trending.Engine
	activity *activity.Service
	alerts   *alerts.Service
	log      *observability.Logger
}

func (s *apiServer) registerRoutes(r *mux.Router) {
	r.HandleFunc("/trending/{itemType}/{timeframe}", s.getTrending).Methods("GET")
	r.HandleFunc("/trending/{itemType}/velocity/{member}", s.getVelocity).Methods("GET")

	r.HandleFunc("/entities/{id}/metrics", s.getEntityMetrics).Methods("GET")
	r.HandleFunc("/entities/{id}/alerts", s.getEntityAlerts).Methods("GET")
	r.HandleFunc("/entities/{id}/alerts/{alertID}/ack", s.ackAlert).Methods("POST")
	r.HandleFunc("/entities/{id}/activity", s.getEntityActivity).Methods("GET")

	r.HandleFunc("/activity/global", s.getGlobalActivity).Methods("GET")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, name string, def int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return def
}

// getTrending handles GET /trending/{itemType}/{timeframe}
// Query params:
//   - limit: number of entries to return (default 10)
func (s *apiServer) getTrending(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	tf, err := keys.ParseTimeframe(vars["timeframe"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.trending.Top(r.Context(), trending.ItemType(vars["itemType"]), tf, queryInt(r, "limit", 10))
	if err != nil {
		if !trending.ItemType(vars["itemType"]).Valid() {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.WithError(err).Error("trending lookup failed")
		writeError(w, http.StatusInternalServerError, "trending lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"item_type": vars["itemType"],
		"timeframe": string(tf),
		"entries":   entries,
	})
}

// getVelocity handles GET /trending/{itemType}/velocity/{member}
func (s *apiServer) getVelocity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	it := trending.ItemType(vars["itemType"])
	velocity, err := s.trending.Velocity(r.Context(), it, vars["member"], keys.Timeframes)
	if err != nil {
		if !it.Valid() {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.WithError(err).Error("velocity computation failed")
		writeError(w, http.StatusInternalServerError, "velocity computation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"item_type": vars["itemType"],
		"member":    vars["member"],
		"velocity":  velocity,
	})
}

// getEntityMetrics handles GET /entities/{id}/metrics
func (s *apiServer) getEntityMetrics(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["id"]

	snapshot, err := s.ledger.Snapshot(r.Context(), entityID)
	if err != nil {
		s.log.WithError(err).Error("metrics snapshot failed")
		writeError(w, http.StatusInternalServerError, "metrics snapshot failed")
		return
	}
	if len(snapshot) == 0 {
		writeError(w, http.StatusNotFound, "no metrics for entity")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entity_id": entityID,
		"metrics":   snapshot,
	})
}

// getEntityAlerts handles GET /entities/{id}/alerts
// Query params:
//   - min_priority: low, medium, high, critical (default low)
func (s *apiServer) getEntityAlerts(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["id"]

	minPriority := alerts.PriorityLow
	if raw := r.URL.Query().Get("min_priority"); raw != "" {
		pri, err := alerts.ParsePriority(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		minPriority = pri
	}

	pending, err := s.alerts.Pending(r.Context(), entityID, queryInt(r, "limit", 0), minPriority)
	if err != nil {
		s.log.WithError(err).Error("pending alerts lookup failed")
		writeError(w, http.StatusInternalServerError, "pending alerts lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entity_id": entityID,
		"alerts":    pending,
	})
}

// ackAlert handles POST /entities/{id}/alerts/{alertID}/ack
func (s *apiServer) ackAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	acked, err := s.alerts.Acknowledge(r.Context(), vars["id"], vars["alertID"])
	if err != nil {
		s.log.WithError(err).Error("alert acknowledge failed")
		writeError(w, http.StatusInternalServerError, "alert acknowledge failed")
		return
	}
	if !acked {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

// getEntityActivity handles GET /entities/{id}/activity
// Query params:
//   - start, limit: pagination (defaults 0, 20)
//   - type: activity type filter
func (s *apiServer) getEntityActivity(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["id"]

	records, err := s.activity.Range(r.Context(),
		activity.EntityStream(entityID),
		queryInt(r, "start", 0),
		queryInt(r, "limit", 20),
		activity.Filter{Type: r.URL.Query().Get("type")},
	)
	if err != nil {
		s.log.WithError(err).Error("activity read failed")
		writeError(w, http.StatusInternalServerError, "activity read failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entity_id":  entityID,
		"activities": records,
	})
}

// getGlobalActivity handles GET /activity/global
// Query params:
//   - start, limit: pagination (defaults 0, 20)
//   - type: activity type filter
//   - entity_id: restrict to one entity's events
func (s *apiServer) getGlobalActivity(w http.ResponseWriter, r *http.Request) {
	records, err := s.activity.Range(r.Context(),
		activity.GlobalStream(),
		queryInt(r, "start", 0),
		queryInt(r, "limit", 20),
		activity.Filter{
			Type:     r.URL.Query().Get("type"),
			EntityID: r.URL.Query().Get("entity_id"),
		},
	)
	if err != nil {
		s.log.WithError(err).Error("activity read failed")
		writeError(w, http.StatusInternalServerError, "activity read failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"activities": records,
	})
}

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fuomag9/kabomba-status/internal/logger"
	"github.com/fuomag9/kabomba-status/internal/models"
	"github.com/fuomag9/kabomba-status/internal/monitor"
	"github.com/fuomag9/kabomba-status/internal/store"
	"github.com/fuomag9/kabomba-status/internal/uptime"
)

// statsWindow is the lookback of the stats endpoints
const statsWindow = 24 * time.Hour

// maxBatchIDs bounds the batch endpoints
const maxBatchIDs = 500

type batchRequest struct {
	ServiceIDs []string `json:"serviceIds"`
}

// HandleGetChecks returns the recent check history of a service
func HandleGetChecks(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		checks, err := st.RecentChecks(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch checks")
			return
		}
		if checks == nil {
			checks = []models.CheckResult{}
		}
		respondOK(w, map[string]any{"checks": checks})
	}
}

// HandleRunCheck performs one check cycle now and returns its result
func HandleRunCheck(checker Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		check, err := checker.RunOnce(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, monitor.ErrServiceNotFound) {
			respondError(w, http.StatusNotFound, "Service not found")
			return
		}
		if err != nil {
			logger.Log().WithError(err).Error("manual check failed")
			respondError(w, http.StatusInternalServerError, "Failed to run check")
			return
		}
		respondOK(w, map[string]any{"check": check})
	}
}

// HandleGetLatestCheck returns the newest check or null
func HandleGetLatestCheck(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		check, err := st.LatestCheck(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch check")
			return
		}
		respondOK(w, map[string]any{"check": check})
	}
}

// HandleGetStats returns the 24 hour statistics of a service
func HandleGetStats(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := st.Stats(r.Context(), chi.URLParam(r, "id"), time.Now().Add(-statsWindow))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch stats")
			return
		}
		respondOK(w, map[string]any{"stats": stats})
	}
}

// HandleGetUptime returns uptime over the 24h, 7d, 30d and 90d windows
func HandleGetUptime(calc *uptime.Calculator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := calc.Summary(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to calculate uptime")
			return
		}
		respondOK(w, map[string]any{"uptime": summary})
	}
}

// HandleLatestBatch returns the newest check of each requested service
func HandleLatestBatch(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, ok := decodeBatch(w, r)
		if !ok {
			return
		}
		latest, err := st.LatestChecks(r.Context(), ids)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch checks")
			return
		}
		out := make(map[string]*models.CheckResult, len(ids))
		for _, id := range ids {
			out[id] = latest[id]
		}
		respondOK(w, map[string]any{"checks": out})
	}
}

// HandleStatsBatch returns the 24 hour statistics of each requested service
func HandleStatsBatch(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, ok := decodeBatch(w, r)
		if !ok {
			return
		}
		stats, err := st.StatsBatch(r.Context(), ids, time.Now().Add(-statsWindow))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch stats")
			return
		}
		respondOK(w, map[string]any{"stats": stats})
	}
}

func decodeBatch(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil || req.ServiceIDs == nil {
		respondError(w, http.StatusBadRequest, "serviceIds array required")
		return nil, false
	}
	if len(req.ServiceIDs) > maxBatchIDs {
		respondError(w, http.StatusBadRequest, "Too many serviceIds")
		return nil, false
	}
	return req.ServiceIDs, true
}

// HandleStartChecker schedules a service
func HandleStartChecker(st *store.Store, checker Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := checker.Start(r.Context(), id)
		switch {
		case errors.Is(err, monitor.ErrServiceNotFound):
			respondError(w, http.StatusNotFound, "Service not found")
			return
		case errors.Is(err, monitor.ErrServiceDisabled):
			respondError(w, http.StatusConflict, "Service is disabled")
			return
		case err != nil:
			respondError(w, http.StatusInternalServerError, "Failed to start checker")
			return
		}

		recordAudit(r.Context(), st, currentUser(r), AuditCheckerStart, "service", id, nil)
		respondOK(w, map[string]string{"message": "Checker started for service " + id})
	}
}

// HandleStopChecker cancels the timer of a service
func HandleStopChecker(st *store.Store, checker Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		checker.Stop(id)
		recordAudit(r.Context(), st, currentUser(r), AuditCheckerStop, "service", id, nil)
		respondOK(w, map[string]string{"message": "Checker stopped for service " + id})
	}
}

package api

import (
	"net/http"
	"strings"

	"github.com/fuomag9/kabomba-status/internal/models"
	"github.com/fuomag9/kabomba-status/internal/store"
)

// HandleListGroups returns every group
func HandleListGroups(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := st.ListGroups(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch groups")
			return
		}
		respondOK(w, map[string]any{"groups": groups})
	}
}

// HandleUpsertGroup creates a group or updates its email flag
func HandleUpsertGroup(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name               string `json:"name"`
			EmailNotifications *bool  `json:"emailNotifications"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			respondError(w, http.StatusBadRequest, "Group name required")
			return
		}
		if req.EmailNotifications == nil {
			respondError(w, http.StatusBadRequest, "emailNotifications must be a boolean")
			return
		}

		group := &models.Group{Name: req.Name, EmailNotifications: *req.EmailNotifications}
		if err := st.UpsertGroup(r.Context(), group); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to save group")
			return
		}

		saved, err := st.GetGroup(r.Context(), req.Name)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch group")
			return
		}
		recordAudit(r.Context(), st, currentUser(r), AuditGroupUpsert, "group", saved.Name, req)
		respondOK(w, map[string]any{"group": saved})
	}
}

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fuomag9/kabomba-status/internal/models"
	"github.com/fuomag9/kabomba-status/internal/store"
)

// EventRequest is the body of event create and update calls; nil fields
// are left unchanged on update.
type EventRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Type        *string `json:"type"`
	Status      *string `json:"status"`
	GroupName   *string `json:"groupName"`
	StartedAt   *string `json:"startedAt"`
}

func (req *EventRequest) empty() bool {
	return *req == EventRequest{}
}

// apply copies the set fields onto event and returns a user-facing error
// for invalid values. Resolving stamps resolvedAt; leaving the resolved
// status clears it.
func (req *EventRequest) apply(event *models.Event, now time.Time) error {
	if req.Title != nil {
		event.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		if d := strings.TrimSpace(*req.Description); d != "" {
			event.Description = &d
		} else {
			event.Description = nil
		}
	}
	if req.GroupName != nil {
		if g := strings.TrimSpace(*req.GroupName); g != "" {
			event.GroupName = &g
		} else {
			event.GroupName = nil
		}
	}
	if req.Type != nil {
		if !models.ValidEventType(*req.Type) {
			return errors.New("Type must be incident, maintenance or info")
		}
		event.Type = *req.Type
	}
	if req.Status != nil {
		if !models.ValidEventStatus(*req.Status) {
			return errors.New("Status must be ongoing, resolved or scheduled")
		}
		event.Status = *req.Status
	}
	if req.StartedAt != nil {
		t, err := time.Parse(time.RFC3339, *req.StartedAt)
		if err != nil {
			return errors.New("Invalid startedAt format")
		}
		event.StartedAt = t.UTC()
	}

	switch {
	case event.Status == models.EventResolved && event.ResolvedAt == nil:
		at := now.UTC()
		event.ResolvedAt = &at
	case event.Status != models.EventResolved:
		event.ResolvedAt = nil
	}

	if event.Title == "" {
		return errors.New("Title required")
	}
	return nil
}

// HandleListEvents returns events filtered by ?group, ?status and ?limit
func HandleListEvents(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		events, err := st.ListEvents(r.Context(), store.EventFilter{
			Group:  q.Get("group"),
			Status: q.Get("status"),
			Limit:  limit,
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch events")
			return
		}
		respondOK(w, map[string]any{"events": events})
	}
}

// HandleListActiveEvents returns ongoing and scheduled events
func HandleListActiveEvents(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := st.ListActiveEvents(r.Context(), r.URL.Query().Get("group"))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch events")
			return
		}
		respondOK(w, map[string]any{"events": events})
	}
}

// HandleGetEvent returns one event
func HandleGetEvent(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event, ok := loadEvent(w, r, st)
		if !ok {
			return
		}
		respondOK(w, map[string]any{"event": event})
	}
}

// HandleCreateEvent announces an incident, maintenance window or notice
func HandleCreateEvent(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EventRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		now := time.Now().UTC()
		user := currentUser(r)
		event := &models.Event{
			Type:      models.EventIncident,
			Status:    models.EventOngoing,
			StartedAt: now,
			CreatedBy: &user.ID,
		}
		if err := req.apply(event, now); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !groupKnown(w, r, st, event.GroupName) {
			return
		}

		if err := st.CreateEvent(r.Context(), event); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to create event")
			return
		}
		recordAudit(r.Context(), st, user, AuditEventCreate, "event", event.ID, req)
		respondCreated(w, map[string]any{"event": event})
	}
}

// HandleUpdateEvent patches an event
func HandleUpdateEvent(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event, ok := loadEvent(w, r, st)
		if !ok {
			return
		}

		var req EventRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.empty() {
			respondError(w, http.StatusBadRequest, "No fields to update")
			return
		}
		if err := req.apply(event, time.Now()); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !groupKnown(w, r, st, event.GroupName) {
			return
		}

		err := st.UpdateEvent(r.Context(), event)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Event not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update event")
			return
		}

		updated, err := st.GetEvent(r.Context(), event.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch event")
			return
		}
		recordAudit(r.Context(), st, currentUser(r), AuditEventUpdate, "event", event.ID, req)
		respondOK(w, map[string]any{"event": updated})
	}
}

// HandleResolveEvent marks an event resolved now
func HandleResolveEvent(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := st.ResolveEvent(r.Context(), id, time.Now())
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Event not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to resolve event")
			return
		}

		event, ok := loadEvent(w, r, st)
		if !ok {
			return
		}
		recordAudit(r.Context(), st, currentUser(r), AuditEventResolve, "event", id, nil)
		respondOK(w, map[string]any{"event": event})
	}
}

// HandleDeleteEvent removes an event
func HandleDeleteEvent(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := st.DeleteEvent(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Event not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to delete event")
			return
		}
		recordAudit(r.Context(), st, currentUser(r), AuditEventDelete, "event", id, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

// loadEvent resolves {id}, writing a 404 when missing
func loadEvent(w http.ResponseWriter, r *http.Request, st *store.Store) (*models.Event, bool) {
	event, err := st.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Event not found")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch event")
		return nil, false
	}
	return event, true
}

// groupKnown rejects references to groups that do not exist
func groupKnown(w http.ResponseWriter, r *http.Request, st *store.Store, name *string) bool {
	if name == nil {
		return true
	}
	_, err := st.GetGroup(r.Context(), *name)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusBadRequest, "Group not found")
		return false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch group")
		return false
	}
	return true
}

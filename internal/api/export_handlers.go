package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fuomag9/kabomba-status/internal/logger"
	"github.com/fuomag9/kabomba-status/internal/models"
	"github.com/fuomag9/kabomba-status/internal/store"
)

func newBundle(kind string, groups []models.Group, services []models.Service) models.ExportBundle {
	b := models.ExportBundle{Version: models.ExportVersion, Type: kind, ExportedAt: time.Now().UTC()}
	for i := range groups {
		b.Data.Groups = append(b.Data.Groups, models.ExportGroupOf(&groups[i]))
	}
	for i := range services {
		b.Data.Services = append(b.Data.Services, models.ExportServiceOf(&services[i]))
	}
	return b
}

// HandleExportAll exports every group and service
func HandleExportAll(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := st.ListGroups(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch groups")
			return
		}
		services, err := st.ListServices(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch services")
			return
		}
		respondOK(w, newBundle(models.ExportGlobal, groups, services))
	}
}

// HandleExportGroup exports one group with its services
func HandleExportGroup(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := url.PathUnescape(chi.URLParam(r, "name"))
		if err != nil || name == "" {
			respondError(w, http.StatusBadRequest, "Group name required")
			return
		}
		group, err := st.GetGroup(r.Context(), name)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Group not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch group")
			return
		}
		services, err := st.ListServicesInGroup(r.Context(), name)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch services")
			return
		}
		respondOK(w, newBundle(models.ExportGroup, []models.Group{*group}, services))
	}
}

// HandleExportService exports one service to its owner or an admin
func HandleExportService(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, ok := loadService(w, r, st)
		if !ok {
			return
		}
		if !canModify(currentUser(r), svc) {
			respondError(w, http.StatusForbidden, "Cannot export this service")
			return
		}
		respondOK(w, newBundle(models.ExportService, nil, []models.Service{*svc}))
	}
}

// HandleImport creates the groups and services of an export bundle and
// schedules the enabled services once they are stored.
func HandleImport(st *store.Store, checker Checker, validator ServiceValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var bundle models.ExportBundle
		if err := decodeJSON(w, r, &bundle); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if bundle.Version == 0 || bundle.Type == "" {
			respondError(w, http.StatusBadRequest, "Invalid export format")
			return
		}
		if bundle.Version != models.ExportVersion {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported export version: %d", bundle.Version))
			return
		}

		user := currentUser(r)
		if len(bundle.Data.Groups) > 0 && !user.IsAdmin() {
			respondError(w, http.StatusForbidden, "Admin access required to import groups")
			return
		}
		for i := range bundle.Data.Groups {
			g := &bundle.Data.Groups[i]
			g.Name = strings.TrimSpace(g.Name)
			if g.Name == "" {
				respondError(w, http.StatusBadRequest, "Group name required")
				return
			}
		}
		for i := range bundle.Data.Services {
			if err := normalizeImported(r, validator, &bundle.Data.Services[i]); err != nil {
				respondError(w, http.StatusBadRequest, fmt.Sprintf("Service %d: %s", i+1, err.Error()))
				return
			}
		}

		created, stats, err := st.Import(r.Context(), bundle.Data, store.ImportOptions{
			Owner:           user.ID,
			CanCreateGroups: user.IsAdmin(),
		})
		if err != nil {
			logger.Log().WithError(err).Error("import failed")
			respondError(w, http.StatusInternalServerError, "Import failed")
			return
		}

		for i := range created {
			if created[i].Enabled {
				schedule(checker, &created[i])
			}
		}
		recordAudit(r.Context(), st, user, AuditImport, "import", "", stats)
		respondOK(w, map[string]any{"message": "Import completed", "stats": stats})
	}
}

// normalizeImported applies creation defaults and the same validation as
// a service created through the API.
func normalizeImported(r *http.Request, validator ServiceValidator, e *models.ExportedService) error {
	e.Name = strings.TrimSpace(e.Name)
	e.URL = strings.TrimSpace(e.URL)
	if e.GroupName != nil {
		if g := strings.TrimSpace(*e.GroupName); g != "" {
			e.GroupName = &g
		} else {
			e.GroupName = nil
		}
	}
	if e.ExpectedStatus == 0 {
		e.ExpectedStatus = models.DefaultExpectedStatus
	}
	if e.CheckInterval == 0 {
		e.CheckInterval = models.DefaultCheckInterval
	}
	return validator.Validate(r.Context(), e.Service(""))
}

package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fuomag9/kabomba-status/internal/logger"
	"github.com/fuomag9/kabomba-status/internal/models"
	"github.com/fuomag9/kabomba-status/internal/store"
)

// Checker is the scheduler control surface used by the handlers
type Checker interface {
	Start(ctx context.Context, serviceID string) error
	StartService(svc *models.Service) error
	Stop(serviceID string)
	RunOnce(ctx context.Context, serviceID string) (*models.CheckResult, error)
	IsScheduled(serviceID string) bool
}

// URLValidator rejects probe targets that must not be reached
type URLValidator interface {
	ValidateURL(ctx context.Context, rawURL string) error
}

// ServiceRequest is the body of create and update calls; nil fields are
// left unchanged on update.
type ServiceRequest struct {
	Name                *string `json:"name"`
	Description         *string `json:"description"`
	URL                 *string `json:"url"`
	DisplayURL          *string `json:"displayUrl"`
	ExpectedStatus      *int    `json:"expectedStatus"`
	ExpectedContentType *string `json:"expectedContentType"`
	ExpectedBody        *string `json:"expectedBody"`
	CheckInterval       *int    `json:"checkInterval"`
	Enabled             *bool   `json:"enabled"`
	IsPublic            *bool   `json:"isPublic"`
	EmailNotifications  *bool   `json:"emailNotifications"`
	GroupName           *string `json:"groupName"`
}

func (req *ServiceRequest) empty() bool {
	return *req == ServiceRequest{}
}

// apply copies the set fields onto svc. Empty optional strings clear the field.
func (req *ServiceRequest) apply(svc *models.Service) {
	optional := func(dst **string, v *string) {
		if v == nil {
			return
		}
		if s := strings.TrimSpace(*v); s != "" {
			*dst = &s
		} else {
			*dst = nil
		}
	}

	if req.Name != nil {
		svc.Name = strings.TrimSpace(*req.Name)
	}
	if req.URL != nil {
		svc.URL = strings.TrimSpace(*req.URL)
	}
	optional(&svc.Description, req.Description)
	optional(&svc.DisplayURL, req.DisplayURL)
	optional(&svc.ExpectedContentType, req.ExpectedContentType)
	optional(&svc.GroupName, req.GroupName)
	if req.ExpectedBody != nil {
		if *req.ExpectedBody != "" {
			body := *req.ExpectedBody
			svc.ExpectedBody = &body
		} else {
			svc.ExpectedBody = nil
		}
	}
	if req.ExpectedStatus != nil {
		svc.ExpectedStatus = *req.ExpectedStatus
	}
	if req.CheckInterval != nil {
		svc.CheckInterval = *req.CheckInterval
	}
	if req.Enabled != nil {
		svc.Enabled = *req.Enabled
	}
	if req.IsPublic != nil {
		svc.IsPublic = *req.IsPublic
	}
	if req.EmailNotifications != nil {
		svc.EmailNotifications = *req.EmailNotifications
	}
}

// ServiceValidator checks a service before it is stored
type ServiceValidator struct {
	Guard       URLValidator
	MinInterval time.Duration
}

// Validate returns a user-facing error for an invalid service
func (v ServiceValidator) Validate(ctx context.Context, svc *models.Service) error {
	if svc.Name == "" || svc.URL == "" {
		return errors.New("Name and URL required")
	}
	if err := v.Guard.ValidateURL(ctx, svc.URL); err != nil {
		return fmt.Errorf("Invalid URL: %v", err)
	}
	if svc.ExpectedStatus < 100 || svc.ExpectedStatus > 599 {
		return errors.New("expectedStatus must be a valid HTTP status code")
	}
	minSeconds := int(math.Ceil(v.MinInterval.Seconds()))
	if svc.CheckInterval < minSeconds {
		return fmt.Errorf("checkInterval must be at least %d seconds", minSeconds)
	}
	return nil
}

// HandleListPublicServices returns the enabled public services
func HandleListPublicServices(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := st.ListPublicServices(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch services")
			return
		}
		respondOK(w, map[string]any{"services": services})
	}
}

// HandleListServices returns every service
func HandleListServices(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := st.ListServices(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch services")
			return
		}
		respondOK(w, map[string]any{"services": services})
	}
}

// HandleGetService returns a single service by ID
func HandleGetService(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, ok := loadService(w, r, st)
		if !ok {
			return
		}
		respondOK(w, map[string]any{"service": svc})
	}
}

// HandleCreateService stores a new service and schedules it when enabled
func HandleCreateService(st *store.Store, checker Checker, validator ServiceValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ServiceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		user := currentUser(r)
		svc := &models.Service{
			ExpectedStatus: models.DefaultExpectedStatus,
			CheckInterval:  models.DefaultCheckInterval,
			Enabled:        true,
			CreatedBy:      user.ID,
		}
		req.apply(svc)

		if err := validator.Validate(r.Context(), svc); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := st.CreateService(r.Context(), svc); err != nil {
			logger.Log().WithError(err).Error("failed to create service")
			respondError(w, http.StatusInternalServerError, "Failed to create service")
			return
		}

		schedule(checker, svc)
		recordAudit(r.Context(), st, user, AuditServiceCreate, "service", svc.ID, map[string]string{"name": svc.Name})
		respondCreated(w, map[string]any{"service": svc})
	}
}

// HandleUpdateService patches a service and reschedules it
func HandleUpdateService(st *store.Store, checker Checker, validator ServiceValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, ok := loadService(w, r, st)
		if !ok {
			return
		}
		user := currentUser(r)
		if !canModify(user, svc) {
			respondError(w, http.StatusForbidden, "Cannot modify this service")
			return
		}

		var req ServiceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.empty() {
			respondError(w, http.StatusBadRequest, "No fields to update")
			return
		}
		before := *svc
		req.apply(svc)

		if err := validator.Validate(r.Context(), svc); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		// a cycle must not observe the disabled row while its timer still runs
		if !svc.Enabled {
			checker.Stop(svc.ID)
		}

		if err := st.UpdateService(r.Context(), svc); err != nil {
			if before.Enabled && !svc.Enabled {
				schedule(checker, &before)
			}
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "Service not found")
				return
			}
			logger.Log().WithError(err).Error("failed to update service")
			respondError(w, http.StatusInternalServerError, "Failed to update service")
			return
		}

		updated, err := st.GetService(r.Context(), svc.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to reload service")
			return
		}

		if updated.Enabled {
			schedule(checker, updated)
		}
		recordAudit(r.Context(), st, user, AuditServiceUpdate, "service", svc.ID, req)
		respondOK(w, map[string]any{"service": updated})
	}
}

// HandleDeleteService stops and removes a service with its history
func HandleDeleteService(st *store.Store, checker Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, ok := loadService(w, r, st)
		if !ok {
			return
		}
		user := currentUser(r)
		if !canModify(user, svc) {
			respondError(w, http.StatusForbidden, "Cannot delete this service")
			return
		}

		checker.Stop(svc.ID)
		if err := st.DeleteService(r.Context(), svc.ID); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to delete service")
			return
		}

		recordAudit(r.Context(), st, user, AuditServiceDelete, "service", svc.ID, map[string]string{"name": svc.Name})
		w.WriteHeader(http.StatusNoContent)
	}
}

// schedule starts enabled services and stops disabled ones
func schedule(checker Checker, svc *models.Service) {
	if !svc.Enabled {
		checker.Stop(svc.ID)
		return
	}
	if err := checker.StartService(svc); err != nil {
		logger.Log().WithError(err).WithField("service_id", svc.ID).Warn("failed to schedule service")
	}
}

func canModify(user *models.User, svc *models.Service) bool {
	return user != nil && (user.IsAdmin() || svc.CreatedBy == user.ID)
}

// loadService resolves {id}, writing a 404 when missing
func loadService(w http.ResponseWriter, r *http.Request, st *store.Store) (*models.Service, bool) {
	svc, err := st.GetService(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Service not found")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch service")
		return nil, false
	}
	return svc, true
}

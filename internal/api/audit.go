package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fuomag9/kabomba-status/internal/logger"
	"github.com/fuomag9/kabomba-status/internal/models"
	"github.com/fuomag9/kabomba-status/internal/store"
)

// Audit actions
const (
	AuditServiceCreate  = "service.create"
	AuditServiceUpdate  = "service.update"
	AuditServiceDelete  = "service.delete"
	AuditSettingsUpdate = "settings.update"
	AuditCheckerStart   = "checker.start"
	AuditCheckerStop    = "checker.stop"
	AuditWebhookCreate  = "webhook.create"
	AuditWebhookDelete  = "webhook.delete"
	AuditGroupUpsert    = "group.upsert"
	AuditInviteCreate   = "invite.create"
	AuditInviteDelete   = "invite.delete"
	AuditUserRegister   = "user.register"
	AuditUserPassword   = "user.password"
	AuditUserRole       = "user.role"
	AuditUserDelete     = "user.delete"
	AuditEventCreate    = "event.create"
	AuditEventUpdate    = "event.update"
	AuditEventResolve   = "event.resolve"
	AuditEventDelete    = "event.delete"
	AuditImport         = "import"
)

// recordAudit appends an audit entry; failures are logged, never returned
func recordAudit(ctx context.Context, st *store.Store, user *models.User, action, entityType, entityID string, details any) {
	entry := &models.AuditLog{Action: action, EntityType: entityType}
	if user != nil {
		entry.UserID = &user.ID
	}
	if entityID != "" {
		entry.EntityID = &entityID
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			entry.Details = string(raw)
		}
	}
	if err := st.RecordAudit(ctx, entry); err != nil {
		logger.Log().WithError(err).WithField("action", action).Warn("failed to record audit entry")
	}
}

// HandleListAudit returns the newest audit entries
func HandleListAudit(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := st.ListAudit(r.Context(), limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch audit log")
			return
		}
		respondOK(w, map[string]any{"entries": entries})
	}
}

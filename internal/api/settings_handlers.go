package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/fuomag9/kabomba-status/internal/logger"
	"github.com/fuomag9/kabomba-status/internal/notification"
	"github.com/fuomag9/kabomba-status/internal/settings"
	"github.com/fuomag9/kabomba-status/internal/store"
)

// SettingsCache is invalidated after settings change
type SettingsCache interface {
	Invalidate()
}

// TestMailer sends a test email with the stored SMTP settings
type TestMailer interface {
	SendTestEmail(ctx context.Context) error
}

// HandleGetSettings returns the global settings with the SMTP password masked
func HandleGetSettings(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := st.AllSettings(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch settings")
			return
		}
		respondOK(w, map[string]any{"settings": settings.NewView(all, false)})
	}
}

// HandleUpdateSettings applies a partial settings update. The cache is
// invalidated so the next check cycle reads the new values.
func HandleUpdateSettings(st *store.Store, cache SettingsCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settings.Update
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		values, err := req.Values()
		if errors.Is(err, settings.ErrEmptyUpdate) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid settings")
			return
		}

		if err := st.UpsertSettings(r.Context(), values); err != nil {
			logger.Log().WithError(err).Error("failed to update settings")
			respondError(w, http.StatusInternalServerError, "Failed to update settings")
			return
		}
		cache.Invalidate()

		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		recordAudit(r.Context(), st, currentUser(r), AuditSettingsUpdate, "settings", "", map[string]any{"keys": keys})

		all, err := st.AllSettings(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch settings")
			return
		}
		respondOK(w, map[string]any{"settings": settings.NewView(all, false)})
	}
}

// HandleTestEmail sends a test email
func HandleTestEmail(mailer TestMailer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := mailer.SendTestEmail(r.Context())
		if errors.Is(err, notification.ErrEmailNotConfigured) {
			respondError(w, http.StatusBadRequest, "SMTP is not configured")
			return
		}
		if err != nil {
			logger.Log().WithError(err).Warn("test email failed")
			respondError(w, http.StatusBadGateway, "Failed to send test email: "+err.Error())
			return
		}
		respondOK(w, map[string]string{"message": "Test email sent"})
	}
}

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fuomag9/kabomba-status/internal/models"
	"github.com/fuomag9/kabomba-status/internal/notification"
	"github.com/fuomag9/kabomba-status/internal/store"
)

// WebhookRequest is the body of a webhook create call
type WebhookRequest struct {
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Type        string   `json:"type"`
	MessageDown string   `json:"messageDown"`
	MessageUp   string   `json:"messageUp"`
	AvatarURL   *string  `json:"avatarUrl"`
	IsGlobal    *bool    `json:"isGlobal"`
	Groups      []string `json:"groups"`
	Enabled     *bool    `json:"enabled"`
}

func (req *WebhookRequest) toModel() *models.Webhook {
	hook := &models.Webhook{
		Name:        strings.TrimSpace(req.Name),
		URL:         strings.TrimSpace(req.URL),
		Type:        req.Type,
		MessageDown: req.MessageDown,
		MessageUp:   req.MessageUp,
		AvatarURL:   req.AvatarURL,
		IsGlobal:    true,
		Groups:      req.Groups,
		Enabled:     true,
	}
	if hook.Type == "" {
		hook.Type = models.WebhookTypeDiscord
	}
	if hook.MessageDown == "" {
		hook.MessageDown = models.DefaultMessageDown
	}
	if hook.MessageUp == "" {
		hook.MessageUp = models.DefaultMessageUp
	}
	if req.IsGlobal != nil {
		hook.IsGlobal = *req.IsGlobal
	}
	if req.Enabled != nil {
		hook.Enabled = *req.Enabled
	}
	if hook.Groups == nil {
		hook.Groups = []string{}
	}
	return hook
}

// HandleListWebhooks returns every webhook
func HandleListWebhooks(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hooks, err := st.ListWebhooks(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch webhooks")
			return
		}
		respondOK(w, map[string]any{"webhooks": hooks})
	}
}

// HandleCreateWebhook validates and stores a webhook. HTTP targets pass
// through the same address guard as probes.
func HandleCreateWebhook(st *store.Store, guard URLValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WebhookRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		hook := req.toModel()
		if hook.Name == "" || hook.URL == "" {
			respondError(w, http.StatusBadRequest, "Name and URL required")
			return
		}
		if err := notification.ValidateWebhook(hook); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		if hook.Type != models.WebhookTypeShoutrrr {
			if err := guard.ValidateURL(r.Context(), hook.URL); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid URL: "+err.Error())
				return
			}
		}

		if err := st.CreateWebhook(r.Context(), hook); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to create webhook")
			return
		}
		recordAudit(r.Context(), st, currentUser(r), AuditWebhookCreate, "webhook", hook.ID, map[string]string{"name": hook.Name, "type": hook.Type})
		respondCreated(w, map[string]any{"webhook": hook})
	}
}

// HandleDeleteWebhook removes a webhook
func HandleDeleteWebhook(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := st.DeleteWebhook(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Webhook not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to delete webhook")
			return
		}
		recordAudit(r.Context(), st, currentUser(r), AuditWebhookDelete, "webhook", id, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

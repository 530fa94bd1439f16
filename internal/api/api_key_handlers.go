package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/fuomag9/kabomba-status/internal/logger"
	"github.com/fuomag9/kabomba-status/internal/models"
	"github.com/fuomag9/kabomba-status/internal/store"
)

// apiKeyPrefix marks keys issued by this server
const apiKeyPrefix = "ks_"

var errInvalidAPIKey = errors.New("invalid API key")

// HandleGetAPIKeys returns all API keys for the current user
func HandleGetAPIKeys(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := st.ListAPIKeys(r.Context(), currentUser(r).ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch API keys")
			return
		}
		respondOK(w, map[string]any{"apiKeys": keys})
	}
}

// HandleCreateAPIKey creates a new API key. The plain key is returned once.
func HandleCreateAPIKey(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name      string  `json:"name"`
			ExpiresAt *string `json:"expiresAt,omitempty"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			respondError(w, http.StatusBadRequest, "Name is required")
			return
		}

		var expiresAt *time.Time
		if req.ExpiresAt != nil && *req.ExpiresAt != "" {
			t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Invalid expiresAt format")
				return
			}
			if t.Before(time.Now()) {
				respondError(w, http.StatusBadRequest, "expiresAt must be in the future")
				return
			}
			t = t.UTC()
			expiresAt = &t
		}

		plain, prefix, err := generateAPIKey()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to generate API key")
			return
		}
		keyHash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to hash API key")
			return
		}

		key := &models.APIKey{
			UserID:    currentUser(r).ID,
			Name:      req.Name,
			KeyHash:   string(keyHash),
			Prefix:    prefix,
			ExpiresAt: expiresAt,
		}
		if err := st.CreateAPIKey(r.Context(), key); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to create API key")
			return
		}

		respondCreated(w, map[string]any{"apiKey": key, "key": plain})
	}
}

// HandleDeleteAPIKey deletes an API key
func HandleDeleteAPIKey(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := st.DeleteAPIKey(r.Context(), chi.URLParam(r, "id"), currentUser(r).ID)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "API key not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to delete API key")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// generateAPIKey returns a key of the form ks_<prefix>_<secret>
func generateAPIKey() (plain, prefix string, err error) {
	prefixBytes := make([]byte, 4)
	if _, err := rand.Read(prefixBytes); err != nil {
		return "", "", err
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}
	prefix = hex.EncodeToString(prefixBytes)
	return apiKeyPrefix + prefix + "_" + base64.RawURLEncoding.EncodeToString(secret), prefix, nil
}

// parseAPIKeyPrefix extracts the lookup prefix from a plain key
func parseAPIKeyPrefix(plain string) (string, bool) {
	rest, ok := strings.CutPrefix(plain, apiKeyPrefix)
	if !ok {
		return "", false
	}
	prefix, secret, ok := strings.Cut(rest, "_")
	if !ok || len(prefix) != 8 || secret == "" {
		return "", false
	}
	return prefix, true
}

// authenticateAPIKey resolves a plain key to its owner
func authenticateAPIKey(ctx context.Context, st *store.Store, plain string) (*models.User, error) {
	prefix, ok := parseAPIKeyPrefix(plain)
	if !ok {
		return nil, errInvalidAPIKey
	}

	candidates, err := st.APIKeysByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		key := &candidates[i]
		if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(plain)) != nil {
			continue
		}
		if key.IsExpired() {
			return nil, errInvalidAPIKey
		}
		if err := st.TouchAPIKey(ctx, key.ID, time.Now()); err != nil {
			logger.Log().WithError(err).Debug("failed to update api key last use")
		}
		return st.GetUser(ctx, key.UserID)
	}
	return nil, errInvalidAPIKey
}

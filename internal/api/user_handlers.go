package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/fuomag9/kabomba-status/internal/models"
	"github.com/fuomag9/kabomba-status/internal/store"
)

// HandleListUsers returns every user
func HandleListUsers(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := st.ListUsers(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch users")
			return
		}
		respondOK(w, map[string]any{"users": users})
	}
}

// HandleGetUser returns a user to itself or to an admin
func HandleGetUser(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		caller := currentUser(r)
		if caller.ID != id && !caller.IsAdmin() {
			respondError(w, http.StatusForbidden, "Cannot access other users")
			return
		}
		user, ok := loadUser(w, r, st, id)
		if !ok {
			return
		}
		respondOK(w, map[string]any{"user": user})
	}
}

// HandleChangePassword lets a user replace its own password
func HandleChangePassword(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if currentUser(r).ID != id {
			respondError(w, http.StatusForbidden, "Cannot change other users' passwords")
			return
		}

		var req struct {
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.CurrentPassword == "" || req.NewPassword == "" {
			respondError(w, http.StatusBadRequest, "Current and new password required")
			return
		}
		if len(req.NewPassword) < 8 {
			respondError(w, http.StatusBadRequest, "New password must be at least 8 characters")
			return
		}

		user, ok := loadUser(w, r, st, id)
		if !ok {
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)) != nil {
			respondError(w, http.StatusUnauthorized, "Current password is incorrect")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}
		if err := st.UpdateUserPassword(r.Context(), id, string(hash)); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update password")
			return
		}
		recordAudit(r.Context(), st, user, AuditUserPassword, "user", id, nil)
		respondOK(w, map[string]string{"message": "Password updated"})
	}
}

// HandleUpdateUserRole promotes or demotes another user
func HandleUpdateUserRole(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		caller := currentUser(r)
		if caller.ID == id {
			respondError(w, http.StatusBadRequest, "Cannot change your own role")
			return
		}

		var req struct {
			Role string `json:"role"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Role != models.RoleAdmin && req.Role != models.RoleUser {
			respondError(w, http.StatusBadRequest, "Role must be admin or user")
			return
		}

		err := st.UpdateUserRole(r.Context(), id, req.Role)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update user")
			return
		}

		user, ok := loadUser(w, r, st, id)
		if !ok {
			return
		}
		recordAudit(r.Context(), st, caller, AuditUserRole, "user", id, req)
		respondOK(w, map[string]any{"user": user})
	}
}

// HandleDeleteUser removes another user and its API keys
func HandleDeleteUser(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		caller := currentUser(r)
		if caller.ID == id {
			respondError(w, http.StatusBadRequest, "Cannot delete yourself")
			return
		}

		err := st.DeleteUser(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to delete user")
			return
		}
		recordAudit(r.Context(), st, caller, AuditUserDelete, "user", id, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

// loadUser resolves id, writing a 404 when missing
func loadUser(w http.ResponseWriter, r *http.Request, st *store.Store, id string) (*models.User, bool) {
	user, err := st.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch user")
		return nil, false
	}
	return user, true
}

package api

import (
	"crypto/rand"
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

// inviteAlphabet omits characters that are easy to misread (0/O, 1/I)
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const inviteCodeLength = 8

// maxInviteDays bounds expiresInDays
const maxInviteDays = 365

// RegisterRequest is the body of an invite-based registration
type RegisterRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	InviteCode string `json:"inviteCode"`
}

// inviteError maps redemption failures to their user-facing message
func inviteError(err error) (string, bool) {
	switch {
	case errors.Is(err, store.ErrInviteInvalid):
		return "Invalid invite code", true
	case errors.Is(err, store.ErrInviteUsed):
		return "Invite already used", true
	case errors.Is(err, store.ErrInviteExpired):
		return "Invite expired", true
	}
	return "", false
}

// HandleListInvites returns every invite with its redeeming user
func HandleListInvites(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invites, err := st.ListInvites(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch invites")
			return
		}
		respondOK(w, map[string]any{"invites": invites})
	}
}

// HandleCreateInvite issues a new invite code, optionally expiring after
// expiresInDays.
func HandleCreateInvite(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExpiresInDays *int `json:"expiresInDays"`
		}
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, &req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
		}

		invite := &models.Invite{CreatedBy: currentUser(r).ID}
		if req.ExpiresInDays != nil {
			days := *req.ExpiresInDays
			if days < 1 || days > maxInviteDays {
				respondError(w, http.StatusBadRequest, "expiresInDays must be between 1 and 365")
				return
			}
			at := time.Now().UTC().AddDate(0, 0, days)
			invite.ExpiresAt = &at
		}

		code, err := generateInviteCode()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to generate invite code")
			return
		}
		invite.Code = code

		if err := st.CreateInvite(r.Context(), invite); err != nil {
			logger.Log().WithError(err).Error("failed to create invite")
			respondError(w, http.StatusInternalServerError, "Failed to create invite")
			return
		}
		recordAudit(r.Context(), st, currentUser(r), AuditInviteCreate, "invite", invite.ID, nil)
		respondCreated(w, map[string]any{"invite": invite})
	}
}

// HandleDeleteInvite revokes an invite
func HandleDeleteInvite(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := st.DeleteInvite(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Invite not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to delete invite")
			return
		}
		recordAudit(r.Context(), st, currentUser(r), AuditInviteDelete, "invite", id, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleValidateInvite reports whether a code can still be redeemed
func HandleValidateInvite(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Code string `json:"code"`
		}
		if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Code) == "" {
			respondError(w, http.StatusBadRequest, "Invite code required")
			return
		}

		_, err := st.CheckInvite(r.Context(), req.Code, time.Now())
		if msg, ok := inviteError(err); ok {
			respondOK(w, map[string]any{"valid": false, "error": msg})
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database error")
			return
		}
		respondOK(w, map[string]any{"valid": true})
	}
}

// HandleRegister creates a regular user by redeeming an invite code
func HandleRegister(st *store.Store, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request")
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if len(req.Username) < 3 {
			respondError(w, http.StatusBadRequest, "Username must be at least 3 characters")
			return
		}
		if len(req.Password) < 8 {
			respondError(w, http.StatusBadRequest, "Password must be at least 8 characters")
			return
		}
		if strings.TrimSpace(req.InviteCode) == "" {
			respondError(w, http.StatusBadRequest, "Invite code required")
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}

		user := &models.User{Username: req.Username, Password: string(hashedPassword), Role: models.RoleUser}
		err = st.RegisterWithInvite(r.Context(), user, req.InviteCode, time.Now())
		if msg, ok := inviteError(err); ok {
			respondError(w, http.StatusBadRequest, msg)
			return
		}
		if errors.Is(err, store.ErrUsernameTaken) {
			respondError(w, http.StatusConflict, "Username already exists")
			return
		}
		if err != nil {
			logger.Log().WithError(err).Error("failed to register user")
			respondError(w, http.StatusInternalServerError, "Failed to create user")
			return
		}

		token, err := generateJWT(user.ID, jwtSecret)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to generate token")
			return
		}
		recordAudit(r.Context(), st, user, AuditUserRegister, "user", user.ID, map[string]string{"username": user.Username})
		respondCreated(w, LoginResponse{Token: token, User: user})
	}
}

// generateInviteCode draws inviteCodeLength symbols from inviteAlphabet.
// The alphabet has 32 symbols, so masking a random byte is unbiased.
func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(buf), nil
}

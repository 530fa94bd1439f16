package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/fuomag9/kabomba-status/internal/logger"
	"github.com/fuomag9/kabomba-status/internal/models"
	"github.com/fuomag9/kabomba-status/internal/store"
)

type contextKey string

const userContextKey contextKey = "user"

// tokenTTL is the lifetime of a session token
const tokenTTL = 24 * time.Hour

// LoginRequest represents login credentials
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents login response
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// HandleSetup creates the first user as admin. It is refused once any
// user exists.
func HandleSetup(st *store.Store, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
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

		count, err := st.CountUsers(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database error")
			return
		}
		if count > 0 {
			respondError(w, http.StatusConflict, "Setup already completed")
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}

		user := &models.User{Username: req.Username, Password: string(hashedPassword), Role: models.RoleAdmin}
		if err := st.CreateUser(r.Context(), user); err != nil {
			logger.Log().WithError(err).Error("failed to create user")
			respondError(w, http.StatusInternalServerError, "Failed to create user")
			return
		}

		token, err := generateJWT(user.ID, jwtSecret)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to generate token")
			return
		}
		respondCreated(w, LoginResponse{Token: token, User: user})
	}
}

// HandleSetupStatus reports whether the first user exists
func HandleSetupStatus(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := st.CountUsers(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database error")
			return
		}
		respondOK(w, map[string]bool{"setupComplete": count > 0})
	}
}

// HandleLogin handles user login
func HandleLogin(st *store.Store, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request")
			return
		}

		user, err := st.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				logger.Log().WithError(err).Error("login lookup failed")
			}
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		token, err := generateJWT(user.ID, jwtSecret)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to generate token")
			return
		}
		respondOK(w, LoginResponse{Token: token, User: user})
	}
}

// HandleGetCurrentUser returns the current authenticated user
func HandleGetCurrentUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondOK(w, map[string]*models.User{"user": currentUser(r)})
	}
}

// AuthMiddleware accepts an X-API-Key header or a Bearer session token
func AuthMiddleware(jwtSecret string, st *store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				user *models.User
				err  error
			)

			if key := r.Header.Get("X-API-Key"); key != "" {
				user, err = authenticateAPIKey(r.Context(), st, key)
			} else {
				authHeader := r.Header.Get("Authorization")
				tokenString := strings.TrimPrefix(authHeader, "Bearer ")
				if authHeader == "" || tokenString == authHeader {
					respondError(w, http.StatusUnauthorized, "Authentication required")
					return
				}
				var userID string
				userID, err = parseJWT(tokenString, jwtSecret)
				if err == nil {
					user, err = st.GetUser(r.Context(), userID)
				}
			}

			if err != nil {
				respondError(w, http.StatusUnauthorized, "Invalid credentials")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects non-admin users
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		if user == nil || !user.IsAdmin() {
			respondError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(userContextKey).(*models.User)
	return user
}

// generateJWT generates a JWT token for a user
func generateJWT(userID, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(tokenTTL).Unix(),
	})
	return token.SignedString([]byte(secret))
}

// parseJWT validates a session token and returns its user id
func parseJWT(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("token has no user")
	}
	return userID, nil
}

// TokenValidator returns a validator for websocket handshakes
func TokenValidator(jwtSecret string) func(string) (string, error) {
	return func(token string) (string, error) {
		return parseJWT(token, jwtSecret)
	}
}

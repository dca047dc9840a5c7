package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Zerr0-C00L/CineShelf/internal/auth"
	"github.com/Zerr0-C00L/CineShelf/internal/database"
)

// LoginRequest represents login credentials
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResponse contains the JWT token
type LoginResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Register handles POST /api/v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password required")
		return
	}
	if len(req.Password) < 6 {
		respondError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Username, req.Email, req.Password)
	if errors.Is(err, database.ErrUserExists) {
		respondError(w, http.StatusConflict, "username or email already taken")
		return
	}
	if err != nil {
		h.logger.Error("create user failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.issueToken(w, http.StatusCreated, user, false)
}

// Login handles POST /api/v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := h.users.VerifyPassword(r.Context(), req.Username, req.Password)
	if errors.Is(err, database.ErrInvalidCredentials) {
		respondError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		h.logger.Error("login failed", "error", err)
		respondError(w, http.StatusInternalServerError, "authentication failed")
		return
	}

	h.issueToken(w, http.StatusOK, user, req.RememberMe)
}

func (h *Handler) issueToken(w http.ResponseWriter, status int, user *database.User, rememberMe bool) {
	token, err := h.tokens.Generate(user.ID, user.Username, rememberMe)
	if err != nil {
		h.logger.Error("generate token failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	claims, err := h.tokens.Validate(token)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	respondJSON(w, status, LoginResponse{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

// VerifyToken handles GET /api/v1/auth/verify
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":    true,
		"user_id":  claims.UserID,
		"username": claims.Username,
	})
}

// Logout ends the caller's server-side session. The token itself stays valid
// until it expires; clients drop it.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if userID, ok := auth.FromContext(r.Context()).CurrentUser(); ok {
		h.sessions.Remove(userID)
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}

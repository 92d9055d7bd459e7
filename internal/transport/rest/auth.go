package rest

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vibescape/vibescape-backend/internal/domain/account"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Register handles POST /api/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, account.ErrUserExists):
		writeError(w, http.StatusBadRequest, "User with that email or username already exists.")
	case errors.Is(err, account.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "Username, email and password are required.")
	case err != nil:
		log.Error().Err(err).Msg("Registration failed")
		writeError(w, http.StatusInternalServerError, "Server error during registration.")
	default:
		writeMessage(w, http.StatusCreated, "Registration successful! You can now log in.")
	}
}

// Login handles POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	token, username, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, account.ErrInvalidCredentials) {
		writeError(w, http.StatusBadRequest, "Invalid credentials.")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Login failed")
		writeError(w, http.StatusInternalServerError, "Server error during login.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Login successful! Redirecting...",
		"token":    token,
		"username": username,
	})
}

// ForgotPassword handles POST /api/forgot-password
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	link, err := h.accounts.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		log.Error().Err(err).Msg("Forgot password failed")
		writeError(w, http.StatusInternalServerError, "Server error.")
		return
	}
	if link == "" {
		writeMessage(w, http.StatusOK, "If an account with that email exists, a reset link has been generated.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Reset link generated.",
		"resetLink": link,
	})
}

// ResetPassword handles POST /api/reset-password
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	err := h.accounts.ResetPassword(r.Context(), req.Token, req.Password)
	if errors.Is(err, account.ErrInvalidResetToken) {
		writeError(w, http.StatusBadRequest, "Token is invalid or has expired.")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Password reset failed")
		writeError(w, http.StatusInternalServerError, "Server error.")
		return
	}
	writeMessage(w, http.StatusOK, "Password has been successfully reset.")
}

package handlers

import (
	"net/http"
	"strings"

	"merchantpay/internal/apperr"
	"merchantpay/internal/auth"
	"merchantpay/internal/middleware"
	"merchantpay/internal/models"
	"merchantpay/internal/store"
	"merchantpay/internal/validator"
	"merchantpay/internal/websocket"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const constraintUniqueEmail = "users_email_key"

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a merchant account. The very first account on a fresh
// install becomes the platform admin.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validator.ValidateEmail(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_email", err.Error())
		return
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_password", "password must be at least 8 characters")
		return
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	hasAdmin, err := h.users.HasAnyAdmin(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	user := models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleMerchant,
	}
	if !hasAdmin {
		user.Role = models.RoleAdmin
	}
	err = h.txRunner.WithTx(r.Context(), func(tx store.Tx) error {
		return h.users.Create(r.Context(), tx, user)
	})
	if err != nil {
		if store.IsUniqueViolation(err, constraintUniqueEmail) {
			respondError(w, http.StatusConflict, "email_taken", "email already registered")
			return
		}
		h.respondServiceError(w, r, err)
		return
	}
	h.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", user.Role))
	h.respondToken(w, r, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.respondServiceError(w, r, err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}
	h.respondToken(w, r, http.StatusOK, user)
}

func (h *Handler) respondToken(w http.ResponseWriter, r *http.Request, status int, user models.User) {
	token, err := auth.GenerateToken(h.cfg.JWTSecret, user.ID, user.Role, h.cfg.TokenTTL)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, status, map[string]string{
		"token": token,
		"role":  user.Role,
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	user, err := h.users.GetProfile(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// WSNotifications streams the caller's events over a websocket. Browsers
// cannot set headers on upgrade requests, so the token may also come from
// the query string.
func (h *Handler) WSNotifications(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok || token == "" {
		respondError(w, http.StatusUnauthorized, "missing_token", "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID, claims.Role == models.RoleAdmin)
}

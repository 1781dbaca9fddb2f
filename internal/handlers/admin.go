package handlers

import (
	"net/http"

	"merchantpay/internal/commission"
	"merchantpay/internal/config"
	"merchantpay/internal/middleware"
	"merchantpay/internal/models"
	"merchantpay/internal/psp"
	"merchantpay/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (h *Handler) AdminGetSubmission(w http.ResponseWriter, r *http.Request) {
	view, err := h.cards.GetSubmission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type reviewRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
	Code     string `json:"code"`
}

func (h *Handler) AdminReviewSubmission(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.cards.Review(r.Context(), psp.ReviewRequest{
		SubmissionID: chi.URLParam(r, "id"),
		Decision:     req.Decision,
		ReviewerID:   adminID,
		Notes:        req.Notes,
		Code:         req.Code,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

type profileRequest struct {
	Role              string  `json:"role"`
	MerchantLeaderID  *string `json:"merchant_leader_id"`
	CommissionPercent *string `json:"commission_percent"`
}

var assignableRoles = map[string]bool{
	models.RoleMerchant:       true,
	models.RoleMerchantLeader: true,
	models.RoleAdmin:          true,
}

// AdminUpdateProfile sets a user's role, merchant leader and personal
// bank-wire commission rate.
func (h *Handler) AdminUpdateProfile(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	userID := chi.URLParam(r, "id")
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !assignableRoles[req.Role] {
		respondError(w, http.StatusBadRequest, "invalid_role", "invalid role")
		return
	}
	if req.MerchantLeaderID != nil && *req.MerchantLeaderID == userID {
		respondError(w, http.StatusBadRequest, "invalid_leader", "a user cannot lead themselves")
		return
	}
	percent, err := parsePercent(req.CommissionPercent)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if percent.Valid {
		if err := commission.ValidatePercent(percent.Decimal); err != nil {
			h.respondServiceError(w, r, err)
			return
		}
	}
	if req.MerchantLeaderID != nil {
		leader, err := h.users.GetProfile(r.Context(), *req.MerchantLeaderID)
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		if leader.Role != models.RoleMerchantLeader {
			respondError(w, http.StatusBadRequest, "invalid_leader", "leader must have the merchant_leader role")
			return
		}
	}

	var updated int64
	err = h.txRunner.WithTx(r.Context(), func(tx store.Tx) error {
		var err error
		updated, err = h.users.UpdateProfile(r.Context(), tx, userID, store.ProfileUpdate{
			Role:              req.Role,
			MerchantLeaderID:  req.MerchantLeaderID,
			CommissionPercent: percent,
		})
		return err
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if updated == 0 {
		respondError(w, http.StatusNotFound, "user_not_found", "user not found")
		return
	}
	h.logger.Info("user profile updated",
		zap.String("user_id", userID),
		zap.String("role", req.Role),
		zap.String("admin_id", adminID))
	user, err := h.users.GetProfile(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type settingRequest struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

func (h *Handler) AdminPutSetting(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	key := chi.URLParam(r, "key")
	var req settingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	setting, err := config.ParseSetting(key, config.SettingKind(req.Kind), req.Value)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if key == config.SettingBankWireCommissionPercent {
		percent, err := setting.AsDecimal()
		if err == nil {
			err = commission.ValidatePercent(percent)
		}
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
	}
	err = h.txRunner.WithTx(r.Context(), func(tx store.Tx) error {
		return h.settings.Put(r.Context(), tx, key, setting.Kind, req.Value)
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.logger.Info("platform setting updated", zap.String("key", key), zap.String("admin_id", adminID))
	respondJSON(w, http.StatusOK, map[string]string{"key": key, "kind": string(setting.Kind), "value": req.Value})
}

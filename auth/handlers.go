package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"trattoria/middleware"
	"trattoria/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrUserExists):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidOTP):
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrNotVerified):
		utils.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidResetToken):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUserNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case utils.IsValidation(err):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Str("op", op).Msg("auth request failed")
		msg := "Internal server error"
		if errors.Is(err, ErrMailFailed) {
			msg = err.Error()
		}
		utils.RespondWithError(w, http.StatusInternalServerError, msg)
	}
}

// POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in RegisterInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	u, err := h.svc.Register(ctx, in)
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, map[string]any{
		"message": "OTP sent to email. Please verify to complete registration.",
		"userId":  u.ID,
	})
}

// POST /api/auth/verify-otp
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var in struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if err := h.svc.VerifyOTP(ctx, in.Email, in.OTP); err != nil {
		h.fail(w, "verify-otp", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "User verified successfully"})
}

// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	sess, err := h.svc.Login(ctx, in.Email, in.Password)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, sess)
}

// POST /api/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	claims, err := middleware.ValidateJWT(r.Header.Get("Authorization"))
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	if err := h.svc.Logout(ctx, claims); err != nil {
		h.fail(w, "logout", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out successfully"})
}

// POST /api/auth/forgot-password
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if err := utils.Validate(in); err != nil {
		h.fail(w, "forgot-password", err)
		return
	}
	if err := h.svc.ForgotPassword(ctx, in.Email); err != nil {
		h.fail(w, "forgot-password", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "If the email is registered, a reset link has been sent",
	})
}

// POST /api/auth/reset-password
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var in struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if err := h.svc.ResetPassword(ctx, in.Token, in.Password); err != nil {
		h.fail(w, "reset-password", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.svc.Me(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		h.fail(w, "me", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, u)
}

package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"

	"github.com/shelfspace/inventory-be/internal/auth"
	"github.com/shelfspace/inventory-be/internal/http/respond"
	"github.com/shelfspace/inventory-be/internal/middleware"
	"github.com/shelfspace/inventory-be/internal/models"
	"github.com/shelfspace/inventory-be/internal/models/dto"
	"github.com/shelfspace/inventory-be/internal/storage"
)

// AuthHandler owns the register/login/2FA/profile endpoints.
type AuthHandler struct {
	svc *auth.Service
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	role, err := validateRegistration(req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.svc.Register(r.Context(), req.Name, req.Email, req.Password, role)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			respond.Error(w, http.StatusConflict, "user already exists")
		default:
			log.Printf("register error: %v", err)
			respond.Error(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	respond.JSON(w, http.StatusCreated, map[string]any{
		"message": "User successfully registered",
		"user":    user,
	})
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respond.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respond.Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("login error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	if result.RequiresTwoFactor {
		respond.JSON(w, http.StatusOK, dto.ChallengeResponse{
			Requires2FA: true,
			TempToken:   result.ChallengeToken,
		})
		return
	}
	respond.JSON(w, http.StatusOK, dto.LoginResponse{
		AccessToken: result.AccessToken,
		User:        result.User,
	})
}

func (h *AuthHandler) HandleVerify2FA(w http.ResponseWriter, r *http.Request) {
	var req dto.Verify2FARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.TempToken == "" || req.Code == "" {
		respond.Error(w, http.StatusBadRequest, "temp_token and code are required")
		return
	}

	result, err := h.svc.VerifyTwoFactor(r.Context(), req.TempToken, req.Code)
	if err != nil {
		// Challenge and code failures deliberately share one body so the
		// response cannot reveal which factor failed.
		if errors.Is(err, auth.ErrInvalidChallenge) || errors.Is(err, auth.ErrInvalidCode) {
			respond.Error(w, http.StatusUnauthorized, "invalid or expired 2FA attempt")
			return
		}
		log.Printf("verify-2fa error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "verification failed")
		return
	}

	respond.JSON(w, http.StatusOK, dto.LoginResponse{
		AccessToken: result.AccessToken,
		User:        result.User,
	})
}

func (h *AuthHandler) HandleEnable2FA(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	secret, err := h.svc.EnableTwoFactor(r.Context(), user)
	if err != nil {
		log.Printf("enable-2fa error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to enable 2FA")
		return
	}
	respond.JSON(w, http.StatusOK, dto.Enable2FAResponse{Secret: secret})
}

func (h *AuthHandler) HandleDisable2FA(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.svc.DisableTwoFactor(r.Context(), user); err != nil {
		log.Printf("disable-2fa error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to disable 2FA")
		return
	}
	respond.Message(w, http.StatusOK, "2FA disabled successfully")
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	h.svc.Logout(r.Context(), user)
	respond.Message(w, http.StatusOK, "Successfully logged out")
}

func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

func validateRegistration(name, email, password, role string) (models.Role, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("name is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return "", errors.New("a valid email is required")
	}
	if len(password) < 6 {
		return "", errors.New("password must be at least 6 characters")
	}
	parsed, err := models.ParseRole(role)
	if err != nil {
		return "", errors.New("role must be admin, manager, or viewer")
	}
	return parsed, nil
}

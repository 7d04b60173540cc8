package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/shelfspace/inventory-be/internal/audit"
	"github.com/shelfspace/inventory-be/internal/auth"
	"github.com/shelfspace/inventory-be/internal/http/respond"
	"github.com/shelfspace/inventory-be/internal/middleware"
	"github.com/shelfspace/inventory-be/internal/models"
	"github.com/shelfspace/inventory-be/internal/models/dto"
	"github.com/shelfspace/inventory-be/internal/storage"
)

// UserHandler owns the admin-only user management endpoints. The router
// mounts these behind a RequireRole(admin) guard.
type UserHandler struct {
	users storage.UserStore
	audit *audit.Recorder
}

// NewUserHandler constructs the handler.
func NewUserHandler(users storage.UserStore, recorder *audit.Recorder) *UserHandler {
	return &UserHandler{users: users, audit: recorder}
}

func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		log.Printf("list users error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	respond.JSON(w, http.StatusOK, users)
}

func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UserFromContext(r.Context())

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

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	user, err := h.users.CreateUser(r.Context(), models.User{
		Name:         req.Name,
		Email:        auth.NormalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			respond.Error(w, http.StatusConflict, "user already exists")
		default:
			log.Printf("create user error: %v", err)
			respond.Error(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	h.audit.Record(r.Context(), actor.ID, "User created",
		fmt.Sprintf("User %s created by %s", user.Name, actor.Name))
	respond.JSON(w, http.StatusCreated, map[string]any{
		"message": "User successfully created",
		"user":    user,
	})
}

func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UserFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req dto.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	user, err := h.users.FindUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("update user error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = auth.NormalizeEmail(*req.Email)
	}
	if req.Role != nil {
		role, err := models.ParseRole(*req.Role)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "role must be admin, manager, or viewer")
			return
		}
		user.Role = role
	}
	if req.Password != nil && *req.Password != "" {
		if len(*req.Password) < 6 {
			respond.Error(w, http.StatusBadRequest, "password must be at least 6 characters")
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			respond.Error(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		user.PasswordHash = hash
	}

	updated, err := h.users.UpdateUser(r.Context(), user)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			respond.Error(w, http.StatusConflict, "email already in use")
		case errors.Is(err, storage.ErrNotFound):
			respond.Error(w, http.StatusNotFound, "user not found")
		default:
			log.Printf("update user error: %v", err)
			respond.Error(w, http.StatusInternalServerError, "failed to update user")
		}
		return
	}

	h.audit.Record(r.Context(), actor.ID, "User updated",
		fmt.Sprintf("User %s updated by %s", updated.Name, actor.Name))
	respond.JSON(w, http.StatusOK, map[string]any{
		"message": "User successfully updated",
		"user":    updated,
	})
}

func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UserFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if id == actor.ID {
		respond.Error(w, http.StatusBadRequest, "you cannot delete your own account")
		return
	}

	user, err := h.users.FindUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("delete user error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	if err := h.users.SoftDeleteUser(r.Context(), id); err != nil {
		log.Printf("delete user error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	h.audit.Record(r.Context(), actor.ID, "User deleted",
		fmt.Sprintf("User %s deleted by %s", user.Name, actor.Name))
	respond.Message(w, http.StatusOK, "User successfully deleted")
}

package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/todaycapital/statementlens/internal/api/response"
	"github.com/todaycapital/statementlens/internal/auth"
	"github.com/todaycapital/statementlens/internal/store"
	"github.com/todaycapital/statementlens/pkg/models"
)

// Accounts defines the account operations the auth handlers depend on.
type Accounts interface {
	Register(ctx context.Context, reg auth.Registration) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Me(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update store.ProfileUpdate) (*models.User, error)
}

// NewRegisterHandler returns an http.HandlerFunc for POST /api/auth/register.
func NewRegisterHandler(svc Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email        string  `json:"email"`
			Password     string  `json:"password"`
			BusinessName *string `json:"businessName"`
			Phone        *string `json:"phone"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		session, err := svc.Register(r.Context(), auth.Registration{
			Email:        req.Email,
			Password:     req.Password,
			BusinessName: req.BusinessName,
			Phone:        req.Phone,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Created(w, session)
	}
}

// NewLoginHandler returns an http.HandlerFunc for POST /api/auth/login.
func NewLoginHandler(svc Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		session, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, session)
	}
}

// NewMeHandler returns an http.HandlerFunc for GET /api/auth/me.
func NewMeHandler(svc Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		user, err := svc.Me(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, user)
	}
}

// NewUpdateProfileHandler returns an http.HandlerFunc for PUT /api/auth/profile.
func NewUpdateProfileHandler(svc Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req struct {
			BusinessName *string `json:"businessName"`
			Phone        *string `json:"phone"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		user, err := svc.UpdateProfile(r.Context(), userID, store.ProfileUpdate{
			BusinessName: req.BusinessName,
			Phone:        req.Phone,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, user)
	}
}

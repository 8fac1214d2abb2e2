package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/todaycapital/statementlens/internal/api/response"
	"github.com/todaycapital/statementlens/internal/store"
	"github.com/todaycapital/statementlens/pkg/models"
)

// Leads is the subset of store.Store the lead handlers use.
type Leads interface {
	CreateLead(ctx context.Context, lead *models.Lead) error
	GetLead(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	GetLeadByEmail(ctx context.Context, email string) (*models.Lead, error)
	MarkLeadAnalysisCompleted(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	UpdateLeadStatus(ctx context.Context, id uuid.UUID, status string) (*models.Lead, error)
}

type leadResponse struct {
	Lead        *models.Lead `json:"lead"`
	IsReturning bool         `json:"isReturning"`
}

// NewCreateLeadHandler returns an http.HandlerFunc for POST /api/leads.
// A known email returns the existing lead with 200.
func NewCreateLeadHandler(leads Leads) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email        string  `json:"email"`
			BusinessName *string `json:"businessName"`
			Phone        *string `json:"phone"`
			Source       string  `json:"source"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))
		if email == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "email is required", nil)
			return
		}

		existing, err := leads.GetLeadByEmail(r.Context(), email)
		switch {
		case err == nil:
			response.JSON(w, leadResponse{Lead: existing, IsReturning: true})
			return
		case !errors.Is(err, store.ErrNotFound):
			writeError(w, r, err)
			return
		}

		source := req.Source
		if source == "" {
			source = models.LeadSourceOrganic
		}
		ts := time.Now().UTC()
		lead := &models.Lead{
			ID:           uuid.New(),
			Email:        email,
			BusinessName: req.BusinessName,
			Phone:        req.Phone,
			Source:       source,
			Status:       models.LeadStatusNew,
			CreatedAt:    ts,
			UpdatedAt:    ts,
		}
		if err := leads.CreateLead(r.Context(), lead); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				// lost a race with a concurrent capture of the same email
				if existing, err := leads.GetLeadByEmail(r.Context(), email); err == nil {
					response.JSON(w, leadResponse{Lead: existing, IsReturning: true})
					return
				}
			}
			writeError(w, r, err)
			return
		}
		response.Created(w, leadResponse{Lead: lead})
	}
}

// NewGetLeadHandler returns an http.HandlerFunc for GET /api/leads/{id}.
func NewGetLeadHandler(leads Leads) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		lead, err := leads.GetLead(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, lead)
	}
}

// NewLeadAnalysisCompletedHandler returns an http.HandlerFunc for
// POST /api/leads/{id}/analysis-completed.
func NewLeadAnalysisCompletedHandler(leads Leads) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		lead, err := leads.MarkLeadAnalysisCompleted(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, lead)
	}
}

// NewUpdateLeadStatusHandler returns an http.HandlerFunc for
// PATCH /api/leads/{id}/status.
func NewUpdateLeadStatusHandler(leads Leads) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req struct {
			Status string `json:"status"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Status) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "status is required", nil)
			return
		}

		lead, err := leads.UpdateLeadStatus(r.Context(), id, strings.TrimSpace(req.Status))
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, lead)
	}
}

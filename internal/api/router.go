package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/todaycapital/statementlens/internal/api/middleware"
	"github.com/todaycapital/statementlens/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth        *mw.Auth
	RateLimit   *mw.RateLimit
	FrontendURL string

	HealthHandler http.HandlerFunc

	Register      http.HandlerFunc
	Login         http.HandlerFunc
	Me            http.HandlerFunc
	UpdateProfile http.HandlerFunc

	UploadStatements  http.HandlerFunc
	ListStatements    http.HandlerFunc
	DeleteStatement   http.HandlerFunc
	AnalyzeStatements http.HandlerFunc
	QuickAnalyze      http.HandlerFunc

	CreateReport   http.HandlerFunc
	ListReports    http.HandlerFunc
	LatestReport   http.HandlerFunc
	MonthlyHistory http.HandlerFunc
	GetReport      http.HandlerFunc
	AddStatements  http.HandlerFunc

	CreateLead            http.HandlerFunc
	GetLead               http.HandlerFunc
	LeadAnalysisCompleted http.HandlerFunc
	UpdateLeadStatus      http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.CORS(deps.FrontendURL))

	r.Get("/api/health", orNotImplemented(deps.HealthHandler))

	// Public routes, limited per client IP
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/auth/register", orNotImplemented(deps.Register))
		r.Post("/api/auth/login", orNotImplemented(deps.Login))

		r.Post("/api/leads", orNotImplemented(deps.CreateLead))
		r.Get("/api/leads/{id}", orNotImplemented(deps.GetLead))
		r.Post("/api/leads/{id}/analysis-completed", orNotImplemented(deps.LeadAnalysisCompleted))
		r.Patch("/api/leads/{id}/status", orNotImplemented(deps.UpdateLeadStatus))
	})

	// Anonymous or signed in
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.OptionalAuthenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/statements/quick-analyze", orNotImplemented(deps.QuickAnalyze))
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/auth/me", orNotImplemented(deps.Me))
		r.Put("/api/auth/profile", orNotImplemented(deps.UpdateProfile))

		r.Post("/api/statements/upload", orNotImplemented(deps.UploadStatements))
		r.Get("/api/statements", orNotImplemented(deps.ListStatements))
		r.Delete("/api/statements/{id}", orNotImplemented(deps.DeleteStatement))
		r.Post("/api/statements/analyze", orNotImplemented(deps.AnalyzeStatements))

		r.Post("/api/reports", orNotImplemented(deps.CreateReport))
		r.Get("/api/reports", orNotImplemented(deps.ListReports))
		r.Get("/api/reports/latest", orNotImplemented(deps.LatestReport))
		r.Get("/api/reports/history/monthly", orNotImplemented(deps.MonthlyHistory))
		r.Get("/api/reports/{id}", orNotImplemented(deps.GetReport))
		r.Post("/api/reports/{id}/add-statements", orNotImplemented(deps.AddStatements))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}

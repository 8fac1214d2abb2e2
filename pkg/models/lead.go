package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	LeadSourceOrganic = "organic"
	LeadStatusNew     = "new"
)

// Lead is an email captured from the landing page before sign-up.
type Lead struct {
	ID                uuid.UUID `db:"id"                 json:"id"`
	Email             string    `db:"email"              json:"email"`
	BusinessName      *string   `db:"business_name"      json:"businessName"`
	Phone             *string   `db:"phone"              json:"phone"`
	Source            string    `db:"source"             json:"source"`
	Status            string    `db:"status"             json:"status"`
	AnalysisCompleted bool      `db:"analysis_completed" json:"analysisCompleted"`
	CreatedAt         time.Time `db:"created_at"         json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at"         json:"updatedAt"`
}

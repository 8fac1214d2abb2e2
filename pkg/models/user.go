package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a merchant account. Every statement and report belongs to a user.
// Only the bcrypt hash of the password is stored.
type User struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	Email        string    `db:"email"         json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	BusinessName *string   `db:"business_name" json:"businessName"`
	Phone        *string   `db:"phone"         json:"phone"`
	CreatedAt    time.Time `db:"created_at"    json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updatedAt"`
}

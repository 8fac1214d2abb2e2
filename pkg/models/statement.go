package models

import (
	"time"

	"github.com/google/uuid"
)

// Statement is an uploaded bank statement file. The bytes live in blob
// storage under StorageKey; only metadata is kept in the database.
type Statement struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	OwnerID    uuid.UUID `db:"owner_id"    json:"-"`
	FileName   string    `db:"file_name"   json:"fileName"`
	StorageKey string    `db:"storage_key" json:"-"`
	FileType   string    `db:"file_type"   json:"fileType"`
	FileSize   int64     `db:"file_size"   json:"fileSize"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploadedAt"`
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Identity is an authentication record. PasswordHash never leaves the service layer.
type Identity struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Email        string          `json:"email" db:"email"`
	PasswordHash string          `json:"-" db:"password_hash"`
	Metadata     json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Identity model
func (Identity) TableName() string {
	return "identities"
}

// IdentityMetadata is the descriptive payload stored alongside an identity.
type IdentityMetadata struct {
	FullName string `json:"full_name"`
	WorkID   string `json:"work_id"`
	Role     Role   `json:"role"`
}

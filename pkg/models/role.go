package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a project-scoped label that endpoints and functions can require.
type Role struct {
	ProjectID   uuid.UUID `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// RoleMember binds a user subject to a role within a project.
type RoleMember struct {
	ProjectID uuid.UUID `json:"project_id"`
	RoleName  string    `json:"role_name"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

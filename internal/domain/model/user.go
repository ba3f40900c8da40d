package model

import (
	"time"
)

const (
	RolePlayer    = "PLAYER"
	RoleOrganizer = "ORGANIZER"
	RoleAdmin     = "ADMIN"
)

type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Not exposed
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ValidRole reports whether role is one of the known account roles.
func ValidRole(role string) bool {
	switch role {
	case RolePlayer, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

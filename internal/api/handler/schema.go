package handler

import (
	"time"

	"github.com/ifl-de/intake-api/internal/core/domain"
)

// --- Auth ---

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"required,max=200"`
	LastName  string `json:"last_name" validate:"required,max=200"`
	Phone     string `json:"phone" validate:"max=200"`
	Address   string `json:"address" validate:"max=200"`
}

type registerStaffRequest struct {
	registerRequest
	Role string `json:"role" validate:"required,oneof=admin assessor"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *domain.Actor `json:"user"`
}

type actorResponse struct {
	User *domain.Actor `json:"user"`
}

type statusResponse struct {
	Authenticated bool        `json:"authenticated"`
	ActorID       string      `json:"actor_id"`
	Role          domain.Role `json:"role"`
	ExpiresAt     time.Time   `json:"expires_at"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// --- Documents ---

type documentLinks struct {
	Self    string `json:"self"`
	Content string `json:"content"`
}

type documentResponse struct {
	*domain.Document
	Links documentLinks `json:"links"`
}

type documentListResponse struct {
	Documents []documentResponse `json:"documents"`
	Count     int                `json:"count"`
}

type reviewRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
	Note   string `json:"note" validate:"max=2000"`
}

// --- Profile ---

type updateProfileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=200"`
	LastName  *string `json:"last_name" validate:"omitempty,max=200"`
	Phone     *string `json:"phone" validate:"omitempty,max=200"`
	Address   *string `json:"address" validate:"omitempty,max=200"`
}

func (r updateProfileRequest) toPatch() domain.ProfilePatch {
	return domain.ProfilePatch{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
		Address:   r.Address,
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

package domain

import (
	"strings"
	"time"
)

// Role identifies the namespace an actor authenticates in.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleAdmin     Role = "admin"
	RoleAssessor  Role = "assessor"
)

// StaffRoles are the roles allowed to act on documents they do not own.
var StaffRoles = []Role{RoleAdmin, RoleAssessor}

// ParseRole returns the Role named by s, or false when s names none.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

func (r Role) Valid() bool {
	switch r {
	case RoleApplicant, RoleAdmin, RoleAssessor:
		return true
	}
	return false
}

// IsStaff reports whether r is an admin or assessor.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleAssessor
}

// Actor models an authenticated identity: an applicant or a staff member.
// Email is the login identifier and is unique within the actor's role.
type Actor struct {
	ID           string    `json:"id"`
	Role         Role      `json:"role"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName joins the actor's first and last name.
func (a *Actor) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// ProfilePatch carries the profile fields an actor may change. Nil fields
// are left untouched. Role, email and password are not patchable here.
type ProfilePatch struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *string
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil && p.Address == nil
}

// Apply writes the non-nil fields of p onto a.
func (p ProfilePatch) Apply(a *Actor) {
	if p.FirstName != nil {
		a.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		a.LastName = *p.LastName
	}
	if p.Phone != nil {
		a.Phone = *p.Phone
	}
	if p.Address != nil {
		a.Address = *p.Address
	}
}

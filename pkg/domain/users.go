package domain

import "time"

// Profile is the slice of a user record the contract core needs: enough to
// stamp collaborator and publisher fields. The full user store lives
// outside the core.
type Profile struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// Invitation records a collaborator invite addressed to an email that did
// not resolve to a known user at invite time.
type Invitation struct {
	ID         string    `json:"invitationId"`
	ContractID string    `json:"contractId"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

const (
	InvitationPending  = "Pending"
	InvitationAccepted = "Accepted"
)

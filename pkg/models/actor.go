package models

// RoleCustomer marks an external customer contact. Any other role value is
// an internal staff role and is treated opaquely by the messaging core.
const RoleCustomer = "customer"

// Actor is an identity participating in chat. It is produced by the external
// auth collaborator at session start and is immutable for the session.
type Actor struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
}

// IsCustomer reports whether the actor comes from the external customer
// directory rather than internal staff.
func (a Actor) IsCustomer() bool {
	return a.Role == RoleCustomer
}

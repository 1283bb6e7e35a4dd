package payments

import "github.com/google/uuid"

// Caller is the authenticated identity an operation runs on behalf of.
type Caller struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// CanActFor reports whether the caller may act on userID's behalf.
func (c Caller) CanActFor(userID uuid.UUID) bool {
	return c.IsAdmin || (c.UserID != uuid.Nil && c.UserID == userID)
}

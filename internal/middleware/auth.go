package middleware

import (
	"cleanup-backend/internal/payments"
	"cleanup-backend/internal/pkg/constants"
	"cleanup-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	userLocal   = "user"
	callerLocal = "caller"
)

// RequireAuth ensures a session user with a valid id is present. Returns 401 otherwise.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetUser(c)
		if user == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		id, err := uuid.Parse(user.UserID)
		if err != nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		c.Locals(callerLocal, payments.Caller{UserID: id, IsAdmin: constants.IsAdminRole(user.Role)})
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) *SessionUser {
	u, _ := c.Locals(userLocal).(*SessionUser)
	return u
}

// GetCaller returns the identity set by RequireAuth.
func GetCaller(c *fiber.Ctx) (payments.Caller, bool) {
	caller, ok := c.Locals(callerLocal).(payments.Caller)
	return caller, ok
}

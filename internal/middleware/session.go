package middleware

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	SessionCookieName  = "cleanup.sid"
	SessionRedisPrefix = "session:"
)

// SessionUser is the shape the auth service stores under "user".
type SessionUser struct {
	UserID   string `json:"user_id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Session loads the session written by the auth service from Redis and puts
// its user in Locals. Sessions are read-only here.
func Session(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(userLocal, nil)

		sessionID := c.Cookies(SessionCookieName)
		// connect-redis style cookies are "s:<id>.<signature>"
		if strings.HasPrefix(sessionID, "s:") {
			sessionID = strings.SplitN(sessionID[2:], ".", 2)[0]
		}
		if sessionID == "" || rdb == nil {
			return c.Next()
		}

		b, err := rdb.Get(context.Background(), SessionRedisPrefix+sessionID).Bytes()
		if err != nil {
			if err != redis.Nil {
				log.Warn().Err(err).Msg("session lookup failed")
			}
			return c.Next()
		}
		var data struct {
			User *SessionUser `json:"user"`
		}
		if err := json.Unmarshal(b, &data); err != nil {
			log.Warn().Err(err).Msg("session data unreadable")
			return c.Next()
		}
		if data.User != nil {
			c.Locals(userLocal, data.User)
		}
		return c.Next()
	}
}

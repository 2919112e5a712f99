package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

const identityKey = "identity"

// Identity is the verified session of the current request.  It lives on
// the echo.Context only and is discarded with it.
type Identity struct {
	UserID    uint64    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"exp"`
}

// CurrentIdentity returns the identity attached by the session guard.
func CurrentIdentity(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok
}

// userID returns the current user ID as a string, or "anon".
func userID(c echo.Context) string {
	if id, ok := CurrentIdentity(c); ok {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "anon"
}

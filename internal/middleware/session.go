package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-listings/internal/apperr"
	"github.com/iliyamo/estate-listings/internal/utils"
)

// TokenVerifier checks a raw session token.
type TokenVerifier interface {
	Verify(raw string) (utils.SessionClaims, error)
}

// SessionGuard authenticates requests from the session cookie or an
// Authorization bearer header.  It never refreshes or extends a token.
type SessionGuard struct {
	verifier TokenVerifier
	cookie   string
}

func NewSessionGuard(v TokenVerifier, cookieName string) *SessionGuard {
	return &SessionGuard{verifier: v, cookie: cookieName}
}

// Authenticate extracts and verifies the request token.  The cookie wins
// over the header.  Every verification failure yields the same error.
func (g *SessionGuard) Authenticate(r *http.Request) (Identity, error) {
	raw := g.extract(r)
	if raw == "" {
		return Identity{}, apperr.Auth("missing token")
	}
	claims, err := g.verifier.Verify(raw)
	if err != nil {
		return Identity{}, apperr.Auth("invalid or expired token")
	}
	id, err := claims.UserID()
	if err != nil {
		return Identity{}, apperr.Auth("invalid or expired token")
	}
	ident := Identity{UserID: id, Email: claims.Email, Role: claims.Role}
	if claims.ExpiresAt != nil {
		ident.ExpiresAt = claims.ExpiresAt.Time
	}
	return ident, nil
}

func (g *SessionGuard) extract(r *http.Request) string {
	if ck, err := r.Cookie(g.cookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get(echo.HeaderAuthorization)), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Require rejects unauthenticated requests and attaches the identity for
// the rest of the chain.
func (g *SessionGuard) Require() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, err := g.Authenticate(c.Request())
			if err != nil {
				return err
			}
			c.Set(identityKey, ident)
			return next(c)
		}
	}
}

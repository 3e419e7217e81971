package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"vidhub/internal/domain/models"
	jwtlib "vidhub/internal/lib/jwt"
	"vidhub/internal/metrics"
	"vidhub/internal/transport/http/response"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	accessTokenCookie  = "accessToken"
	identityContextKey = "auth.identity"
	bearerPrefix       = "Bearer "
)

// TokenVerifier checks the signature, expiry and kind of a token and
// returns its claims.
type TokenVerifier interface {
	Verify(tokenString string, kind jwtlib.TokenKind) (*jwtlib.Claims, error)
}

// IdentityProvider resolves the sanitized user snapshot for a verified
// user id.
type IdentityProvider interface {
	Identity(ctx context.Context, userID uuid.UUID) (models.Identity, error)
}

// Auth guards a route group: it accepts the access token from the
// accessToken cookie or, failing that, an Authorization: Bearer header,
// verifies it and attaches the resolved identity to the request context.
func Auth(log *slog.Logger, verifier TokenVerifier, identities IdentityProvider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := accessTokenFromRequest(c)
			if token == "" {
				metrics.AuthFailuresTotal.WithLabelValues("missing_token").Inc()

				return unauthorized(c, "Unauthorized request")
			}

			claims, err := verifier.Verify(token, jwtlib.TokenKindAccess)
			if err != nil {
				metrics.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()

				return unauthorized(c, "Invalid access token")
			}

			userID, err := claims.Subject()
			if err != nil {
				metrics.AuthFailuresTotal.WithLabelValues("invalid_subject").Inc()

				return unauthorized(c, "Invalid access token")
			}

			identity, err := identities.Identity(c.Request().Context(), userID)
			if err != nil {
				log.Debug("identity lookup failed",
					slog.String("user_id", userID.String()),
				)
				metrics.AuthFailuresTotal.WithLabelValues("unknown_user").Inc()

				return unauthorized(c, "Invalid access token")
			}

			c.Set(identityContextKey, identity)

			return next(c)
		}
	}
}

// CurrentIdentity returns the identity the Auth middleware attached to the
// request. The second value is false on routes that skipped the middleware.
func CurrentIdentity(c echo.Context) (models.Identity, bool) {
	identity, ok := c.Get(identityContextKey).(models.Identity)
	return identity, ok
}

// WithIdentity attaches an identity without going through token
// verification. Handler tests use it to simulate an authenticated request.
func WithIdentity(c echo.Context, identity models.Identity) {
	c.Set(identityContextKey, identity)
}

func accessTokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(accessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimPrefix(header, bearerPrefix)
	}

	return ""
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, message))
}

// Package middleware provides HTTP middleware shared by the API server.
package middleware

import (
	"errors"
	"strings"

	"threadline/internal/config"
	"threadline/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ViewerLocal is the fiber.Ctx local holding the authenticated user ID.
const ViewerLocal = "userID"

var cfg *config.Config

var (
	errMissingToken = errors.New("authorization header required")
	errBadScheme    = errors.New("invalid authorization header format")
)

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// ViewerID returns the authenticated user ID, or "" for anonymous requests.
func ViewerID(c *fiber.Ctx) string {
	if uid, ok := c.Locals(ViewerLocal).(string); ok {
		return uid
	}
	return ""
}

// AuthRequired is a middleware that enforces authentication for protected routes.
func AuthRequired(c *fiber.Ctx) error {
	userID, err := authenticate(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(unauthorizedMessage(err)))
	}
	setViewer(c, userID)
	return c.Next()
}

// OptionalAuth identifies the viewer when a valid bearer token is sent and
// lets the request through anonymously otherwise.
func OptionalAuth(c *fiber.Ctx) error {
	if userID, err := authenticate(c); err == nil {
		setViewer(c, userID)
	}
	return c.Next()
}

// ListenerAuth is OptionalAuth for websocket upgrades. Browsers cannot set
// headers on an upgrade, so the token may also arrive as ?token=.
func ListenerAuth(c *fiber.Ctx) error {
	userID, err := authenticate(c)
	if errors.Is(err, errMissingToken) {
		if token := c.Query("token"); token != "" {
			userID, err = ParseToken(token)
		}
	}
	if err == nil {
		setViewer(c, userID)
	}
	return c.Next()
}

func setViewer(c *fiber.Ctx, userID string) {
	c.Locals(ViewerLocal, userID)
	c.SetUserContext(WithViewer(c.UserContext(), userID))
}

func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, errMissingToken):
		return "Authorization header required"
	case errors.Is(err, errBadScheme):
		return "Invalid authorization header format"
	default:
		return "Invalid or expired token"
	}
}

func authenticate(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", errMissingToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errBadScheme
	}

	return ParseToken(parts[1])
}

// ParseToken validates an HMAC-signed token and returns its subject.
func ParseToken(tokenString string) (string, error) {
	if cfg == nil {
		return "", errors.New("auth middleware not initialized")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	if cfg.JWTAudience != "" {
		opts = append(opts, jwt.WithAudience(cfg.JWTAudience))
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", errors.New("invalid or expired token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errors.New("invalid token structure - missing subject")
	}
	return sub, nil
}

// SignToken issues a token for userID. It is used by the seed command and tests.
func SignToken(c *config.Config, userID string, claims jwt.MapClaims) (string, error) {
	if claims == nil {
		claims = jwt.MapClaims{}
	}
	claims["sub"] = userID
	if c.JWTIssuer != "" {
		claims["iss"] = c.JWTIssuer
	}
	if c.JWTAudience != "" {
		claims["aud"] = c.JWTAudience
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.JWTSecret))
}

package server

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// bearerPrefix is the expected Authorization scheme.
const bearerPrefix = "Bearer "

// ResolveAPIKey returns the grid API key for a request. A bearer token in
// the Authorization header takes precedence over the body's apiKey field;
// an empty string means neither was supplied.
func ResolveAPIKey(c echo.Context, bodyKey string) string {
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, bearerPrefix) {
		if token := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix)); token != "" {
			return token
		}
	}
	return bodyKey
}

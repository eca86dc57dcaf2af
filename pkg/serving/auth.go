package serving

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/serving/apierr"
)

// LoadKey reads a HS256 signing key from a file. Surrounding spaces are trimmed.
func LoadKey(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xe.WrapAs(xe.KindIO, err)
	}
	key := []byte(strings.TrimSpace(string(content)))
	if len(key) == 0 {
		return nil, xe.WrapAs(xe.KindSchema, fmt.Errorf("key file is empty: %s", path))
	}
	return key, nil
}

// IssueToken signs a bearer token for subject, valid for ttl from now.
func IssueToken(key []byte, subject string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// Guard is a middleware requiring "Authorization: Bearer <token>" signed with key.
func Guard(key []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
			if !ok || raw == "" {
				return apierr.Unauthorized(`set "Authorization: Bearer <token>" header.`, nil)
			}
			_, err := jwt.ParseWithClaims(
				raw, &jwt.RegisteredClaims{},
				func(*jwt.Token) (any, error) { return key, nil },
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
				jwt.WithExpirationRequired(),
			)
			if err != nil {
				return apierr.Unauthorized("issue a new token with `netsec token`.", err)
			}
			return next(c)
		}
	}
}

package authn

import (
	"context"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// JWT verifies an HS256-signed bearer token and reads the team_id claim.
// Grounded on the original CTFdAuthProvider.
type JWT struct {
	secret []byte
}

// NewJWT builds a JWT authenticator from provider args; "secret" is
// required.
func NewJWT(args map[string]string) (*JWT, error) {
	secret := args["secret"]
	if secret == "" {
		return nil, fmt.Errorf("secret argument is required for bearer-jwt auth provider")
	}
	return &JWT{secret: []byte(secret)}, nil
}

// Authenticate verifies the bearer token and extracts its team_id claim.
func (j *JWT) Authenticate(ctx context.Context, r *http.Request) (string, error) {
	token := ExtractBearerToken(r)
	if token == "" {
		return "", errMissingToken()
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return "", errInvalidToken("invalid authorization token")
	}

	teamID, ok := claims["team_id"].(string)
	if !ok || teamID == "" {
		return "", errInvalidToken("token missing team_id")
	}
	return teamID, nil
}

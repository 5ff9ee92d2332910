package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type tokenClaims struct {
	IsStaff  bool
	Username string
}

// readClaims extracts the role and username claims from an access token.
// The client has no signing secret, so the payload is read without
// verification; the server remains the authority on what the token grants.
func readClaims(token string) (tokenClaims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return tokenClaims{}, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return tokenClaims{}, fmt.Errorf("unexpected claims type")
	}

	out := tokenClaims{}
	if v, ok := claims["is_staff"].(bool); ok {
		out.IsStaff = v
	}
	if v, ok := claims["username"].(string); ok {
		out.Username = v
	}
	return out, nil
}

package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// SubjectResolver extracts the user identity from a bearer token.
// With a secret configured the token is verified; otherwise the claims are
// read without verification since the ERP backend remains the authority.
type SubjectResolver struct {
	secretKey []byte
}

func NewSubjectResolver(secret string) *SubjectResolver {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &SubjectResolver{}
	}
	return &SubjectResolver{secretKey: []byte(secret)}
}

// Subject returns the user id carried by tokenStr.
func (r *SubjectResolver) Subject(tokenStr string) (string, error) {
	claims, err := r.parse(tokenStr)
	if err != nil {
		return "", err
	}
	for _, key := range []string{"sub", "user_id", "userId", "username"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("token has no subject claim")
}

func (r *SubjectResolver) parse(tokenStr string) (jwt.MapClaims, error) {
	if r.secretKey == nil {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
			return nil, fmt.Errorf("malformed token: %w", err)
		}
		return claims, nil
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.secretKey, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// BearerToken strips the "Bearer " prefix from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	apperrors "mingle-gateway/pkg/errors"
)

// Identity is the trusted result of credential verification, attached to
// a connection for the lifetime of the session.
type Identity struct {
	ID    primitive.ObjectID
	Email string
	Role  string
}

type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates bearer credentials issued by the auth service.
// Token issuance lives outside the gateway; only verification happens here.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, apperrors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(credential, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.ErrUnauthorized
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, apperrors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, apperrors.ErrUnauthorized
	}

	userID, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return Identity{}, apperrors.ErrUnauthorized
	}

	return Identity{ID: userID, Email: claims.Email, Role: claims.Role}, nil
}

// ExtractToken pulls the bearer credential from a handshake: a dedicated
// query field first, then the Authorization header.
func ExtractToken(queryToken, authHeader string) string {
	if queryToken != "" {
		return queryToken
	}
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return ""
}

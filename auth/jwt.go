// Package auth implements the authorization collaborator: HMAC-signed JWT
// verification checked against the subject a mutating operation claims to act
// for. A mismatch short-circuits the write coordinator before any store is
// touched.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by an openpix session token.
type Claims struct {
	UserName string `json:"userName"`
	jwt.RegisteredClaims
}

// Verifier validates session tokens.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier builds a Verifier for tokens signed with secret by issuer.
func NewVerifier(secret []byte, issuer string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer}
}

// VerifyJWT parses and validates token and checks its subject against
// subjectID. It returns nil claims (with no error) when the token is valid
// but belongs to a different subject, matching the collaborator contract of
// "payload or null".
func (v *Verifier) VerifyJWT(token string, subjectID string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject != subjectID {
		return nil, nil
	}
	return claims, nil
}

// Issue signs a token for subjectID, mainly for tests and tooling.
func (v *Verifier) Issue(subjectID, userName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserName: userName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

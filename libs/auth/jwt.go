package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identifies the professional operating the dashboard.
type Claims struct {
	ProfessionalID string `json:"professional_id"`
	Role           string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// KeySource resolves RS256 public keys by kid. JWKSClient implements it.
type KeySource interface {
	Get(keyID string) (*rsa.PublicKey, error)
}

// Verifier accepts HS256 tokens signed with Secret and RS256 tokens whose kid
// resolves through Keys. Either may be left unset.
type Verifier struct {
	Secret   []byte
	Keys     KeySource
	Issuer   string
	Audience string
	Leeway   time.Duration
}

func (v Verifier) Verify(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods()),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.Leeway),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}

	var claims Claims
	if _, err := jwt.ParseWithClaims(token, &claims, v.keyFunc, opts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ProfessionalID == "" {
		claims.ProfessionalID = claims.Subject
	}
	if claims.ProfessionalID == "" {
		return nil, fmt.Errorf("%w: missing professional id", ErrInvalidToken)
	}
	return &claims, nil
}

func (v Verifier) methods() []string {
	var out []string
	if len(v.Secret) > 0 {
		out = append(out, jwt.SigningMethodHS256.Alg())
	}
	if v.Keys != nil {
		out = append(out, jwt.SigningMethodRS256.Alg())
	}
	return out
}

func (v Verifier) keyFunc(t *jwt.Token) (any, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return v.Secret, nil
	case *jwt.SigningMethodRSA:
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		return v.Keys.Get(kid)
	default:
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
}

// SignHS256 issues a token for local development and tests.
func SignHS256(claims Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

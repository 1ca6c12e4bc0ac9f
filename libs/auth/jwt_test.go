package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testClaims(exp time.Duration) Claims {
	now := time.Now()
	return Claims{
		ProfessionalID: "pro-1",
		Role:           "owner",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(exp)),
		},
	}
}

func TestHS256RoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := SignHS256(testClaims(time.Hour), secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	parsed, err := Verifier{Secret: secret}.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if parsed.ProfessionalID != "pro-1" || parsed.Role != "owner" {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
	if _, err := (Verifier{Secret: []byte("wrong-secret")}).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken with wrong secret, got %v", err)
	}
}

func TestVerify_RejectsExpired(t *testing.T) {
	secret := []byte("test-secret")
	token, _ := SignHS256(testClaims(-time.Minute), secret)
	if _, err := (Verifier{Secret: secret}).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejection, got %v", err)
	}
}

func TestVerify_SubjectFallback(t *testing.T) {
	secret := []byte("test-secret")
	c := testClaims(time.Hour)
	c.ProfessionalID = ""
	token, _ := SignHS256(c, secret)
	parsed, err := Verifier{Secret: secret}.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if parsed.ProfessionalID != "user-1" {
		t.Fatalf("expected subject fallback, got %q", parsed.ProfessionalID)
	}
}

func TestRS256ViaJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string][]jsonWebKey{"keys": {{
			Kty: "RSA",
			Kid: "kid-1",
			N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, testClaims(time.Hour))
	tok.Header["kid"] = "kid-1"
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	v := Verifier{Keys: NewJWKSClient(srv.URL, time.Minute)}
	parsed, err := v.Verify(signed)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if parsed.ProfessionalID != "pro-1" {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}

	// HS256 must not be accepted when only RS256 keys are configured.
	hs, _ := SignHS256(testClaims(time.Hour), []byte("x"))
	if _, err := v.Verify(hs); err == nil {
		t.Fatal("expected HS256 token to be rejected")
	}
}

func TestRequireBearer(t *testing.T) {
	secret := []byte("test-secret")
	h := RequireBearer(Verifier{Secret: secret})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Fatal("expected claims in context")
		}
		_, _ = w.Write([]byte(c.ProfessionalID))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	token, _ := SignHS256(testClaims(time.Hour), secret)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.String() != "pro-1" {
		t.Fatalf("expected 200 pro-1, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestJWKSClient_ThrottlesUnknownKid(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string][]jsonWebKey{"keys": {{
			Kty: "RSA",
			Kid: "kid-1",
			N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewJWKSClient(srv.URL, time.Hour)
	c.now = func() time.Time { return now }

	if _, err := c.Get("kid-1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := c.Get("kid-2"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected unknown kid to be throttled, got %d fetches", hits.Load())
	}

	now = now.Add(time.Minute)
	if _, err := c.Get("kid-2"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected refetch after the throttle window, got %d fetches", hits.Load())
	}
}

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignAndParse_RoundTrip(t *testing.T) {
	v, err := NewTokenVerifier("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}

	token, err := v.Sign(Caller{UserID: "u1", Admin: true})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	caller, err := v.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if caller.UserID != "u1" || !caller.Admin {
		t.Errorf("caller = %+v", caller)
	}
}

func TestParse_WrongSecretRejected(t *testing.T) {
	signer, _ := NewTokenVerifier("secret-a", time.Hour)
	verifier, _ := NewTokenVerifier("secret-b", time.Hour)

	token, err := signer.Sign(Caller{UserID: "u1"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	_, err = verifier.ParseAndValidate(token)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestParse_ExpiredTokenRejected(t *testing.T) {
	v, _ := NewTokenVerifier("test-secret", time.Hour)

	// Issue a token that expired well past the verifier's leeway.
	past := time.Now().Add(-2 * time.Hour)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, storeClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Minute)),
		},
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}

	if _, err := v.ParseAndValidate(token); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestParse_GarbageRejected(t *testing.T) {
	v, _ := NewTokenVerifier("test-secret", time.Hour)
	if _, err := v.ParseAndValidate("not.a.token"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestNewTokenVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewTokenVerifier("", time.Hour); err == nil {
		t.Fatal("empty secret must be rejected")
	}
}

func TestMiddleware_ResolvesCaller(t *testing.T) {
	v, _ := NewTokenVerifier("test-secret", time.Hour)
	token, _ := v.Sign(Caller{UserID: "u1", Admin: true})

	var got Caller
	var present bool
	handler := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, present = CallerFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !present || got.UserID != "u1" || !got.Admin {
		t.Errorf("caller = %+v (present=%v)", got, present)
	}
}

func TestMiddleware_AnonymousWithoutHeader(t *testing.T) {
	v, _ := NewTokenVerifier("test-secret", time.Hour)

	var present bool
	called := false
	handler := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, present = CallerFrom(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Fatal("anonymous requests must pass through")
	}
	if present {
		t.Error("anonymous request must not carry a caller")
	}
}

func TestMiddleware_InvalidTokenRejected(t *testing.T) {
	v, _ := NewTokenVerifier("test-secret", time.Hour)

	handler := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for an invalid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMiddleware_MalformedHeaderRejected(t *testing.T) {
	v, _ := NewTokenVerifier("test-secret", time.Hour)
	handler := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const testSecret = "test-secret-at-least-32-bytes-long!!"

func signToken(t *testing.T, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func runMiddleware(mw echo.MiddlewareFunc, req *http.Request) (echo.Context, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)
	return c, err
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	token := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{"counselor"},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	c, err := runMiddleware(JWTMiddleware(testSecret), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := UserIDFromContext(c); got != "user-1" {
		t.Errorf("expected user-1, got %s", got)
	}
	roles := RolesFromContext(c)
	if len(roles) != 1 || roles[0] != "counselor" {
		t.Errorf("unexpected roles: %v", roles)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := runMiddleware(JWTMiddleware(testSecret), req)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	token := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err := runMiddleware(JWTMiddleware(testSecret), req)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for expired token, got %v", err)
	}
}

func TestJWTMiddleware_WrongSecret(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	})
	s, err := token.SignedString([]byte("some-other-secret-entirely-32-bytes"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+s)

	_, mwErr := runMiddleware(JWTMiddleware(testSecret), req)
	he, ok := mwErr.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad signature, got %v", mwErr)
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c, err := runMiddleware(DevAuthMiddleware(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := UserIDFromContext(c); got != "dev-user" {
		t.Errorf("expected dev-user, got %s", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Dev-User", "clin-7")
	c, err = runMiddleware(DevAuthMiddleware(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := UserIDFromContext(c); got != "clin-7" {
		t.Errorf("expected clin-7, got %s", got)
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name    string
		held    []string
		want    []string
		allowed bool
	}{
		{"exact match", []string{"counselor"}, []string{"counselor"}, true},
		{"admin override", []string{"admin"}, []string{"counselor"}, true},
		{"no match", []string{"peer"}, []string{"counselor"}, false},
		{"no roles", nil, []string{"counselor"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.Set(UserRolesKey, tc.held)

			err := RequireRole(tc.want...)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})(c)

			if tc.allowed && err != nil {
				t.Errorf("expected access, got %v", err)
			}
			if !tc.allowed {
				he, ok := err.(*echo.HTTPError)
				if !ok || he.Code != http.StatusForbidden {
					t.Errorf("expected 403, got %v", err)
				}
			}
		})
	}
}

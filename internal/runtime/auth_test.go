package runtime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestEchoAuthMiddlewareBearer(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := SignJWT("user-123", secret, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	e := echo.New()
	handler := EchoAuthMiddleware(secret)(func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("user_id").(string))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Body.String() != "user-123" {
		t.Fatalf("user_id = %q", rec.Body.String())
	}

	sub, ok := SubjectFromContext(c.Request().Context())
	if !ok || sub != "user-123" {
		t.Fatalf("subject = %q ok=%v", sub, ok)
	}
}

func TestEchoAuthMiddlewareCookie(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := SignJWT("user-456", secret, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	e := echo.New()
	handler := EchoAuthMiddleware(secret)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth", Value: tok})
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler: %v", err)
	}
}

func TestEchoAuthMiddlewareRejects(t *testing.T) {
	e := echo.New()
	handler := EchoAuthMiddleware([]byte("s1"))(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// missing token
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := handler(e.NewContext(req, httptest.NewRecorder())); err == nil {
		t.Fatalf("expected error for missing token")
	}

	// wrong secret
	tok, _ := SignJWT("u", []byte("other"), time.Hour)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	err := handler(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

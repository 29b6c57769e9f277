package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"heliactyl/config"
	"heliactyl/internal/auth"
	"heliactyl/internal/domain"

	"github.com/gin-gonic/gin"
)

func TestAuthAndRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.JWTConfig{AccessSecret: "s", AccessExpiry: time.Minute, Issuer: "test"}

	r := gin.New()
	r.GET("/admin", AuthRequired(cfg), RequireRole(domain.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c)})
	})

	userTok, _ := auth.GenerateAccessToken(cfg, 3, "u@example.com", domain.RoleUser)
	adminTok, _ := auth.GenerateAccessToken(cfg, 4, "a@example.com", domain.RoleAdmin)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "bad scheme", header: "Token abc", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc", want: http.StatusUnauthorized},
		{name: "user role", header: "Bearer " + userTok, want: http.StatusForbidden},
		{name: "admin role", header: "Bearer " + adminTok, want: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + adminTok, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestAuthRequiredReportsExpiry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.JWTConfig{AccessSecret: "s", AccessExpiry: -time.Minute}
	tok, _ := auth.GenerateAccessToken(cfg, 9, "", domain.RoleUser)

	r := gin.New()
	r.GET("/me", AuthRequired(cfg), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "token expired") {
		t.Fatalf("expected 401 token expired, got %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate challenge")
	}
}

func TestClaimsAvailableToHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.JWTConfig{AccessSecret: "s", AccessExpiry: time.Minute}
	tok, _ := auth.GenerateAccessToken(cfg, 11, "ops@example.com", domain.RoleAdmin)

	var got *auth.Claims
	r := gin.New()
	r.GET("/me", AuthRequired(cfg), func(c *gin.Context) {
		got = Claims(c)
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.UserID != 11 || got.Email != "ops@example.com" || !got.IsAdmin() {
		t.Fatalf("unexpected claims %+v", got)
	}
}

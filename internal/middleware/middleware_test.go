package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/internal/apperr"
	"github.com/wiktoriasw/Invitations/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubResolver struct {
	users map[string]*models.User
}

func (s stubResolver) ResolvePrincipal(_ context.Context, token string) (*models.User, error) {
	if u, ok := s.users[token]; ok {
		return u, nil
	}
	return nil, apperr.New(apperr.ErrUnauthenticated, "could not validate credentials")
}

func newRouter(resolver PrincipalResolver, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{Authenticate(resolver)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUser(c).Email)
	})
	r.GET("/me", handlers...)
	return r
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	tok, ok = BearerToken("bearer  xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer   ")
	assert.False(t, ok)
}

func TestAuthenticate(t *testing.T) {
	user := &models.User{ID: 1, UUID: uuid.New(), Email: "a@b.c", Role: models.RoleUser}
	r := newRouter(stubResolver{users: map[string]*models.User{"good": user}})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			} else {
				assert.Equal(t, "a@b.c", w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	admin := &models.User{ID: 1, Email: "admin@x.y", Role: models.RoleAdmin}
	plain := &models.User{ID: 2, Email: "user@x.y", Role: models.RoleUser}
	r := newRouter(stubResolver{users: map[string]*models.User{"admin": admin, "user": plain}}, RequireRole(models.RoleAdmin))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer user")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer admin")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

type countingLimiter struct {
	left int
	err  error
}

func (l *countingLimiter) Allow(context.Context, string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.left <= 0 {
		return false, nil
	}
	l.left--
	return true, nil
}

func TestRateLimit(t *testing.T) {
	limiter := &countingLimiter{left: 1}
	r := gin.New()
	r.POST("/token", RateLimit(limiter, "token", zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/token", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/token", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	r := gin.New()
	r.POST("/token", RateLimit(&countingLimiter{err: errors.New("redis down")}, "token", zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/token", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(NewOriginPolicy("https://app.example.com, https://admin.example.com")))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginPolicy(t *testing.T) {
	open := NewOriginPolicy("*")
	assert.True(t, open.Allows("https://whatever.example.com"))
	assert.True(t, NewOriginPolicy("").Allows("https://whatever.example.com"))

	list := NewOriginPolicy("https://app.example.com")
	assert.True(t, list.Allows("https://app.example.com"))
	assert.True(t, list.Allows(""))
	assert.False(t, list.Allows("https://app.example.com.evil.io"))
}

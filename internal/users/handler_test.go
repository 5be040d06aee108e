package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/internal/apperr"
	"github.com/wiktoriasw/Invitations/internal/middleware"
	"github.com/wiktoriasw/Invitations/internal/models"
)

// tokenResolver treats the bearer token as the user's email.
type tokenResolver struct{ store *memStore }

func (r tokenResolver) ResolvePrincipal(ctx context.Context, token string) (*models.User, error) {
	u, _ := r.store.GetUserByEmail(ctx, token)
	if u == nil {
		return nil, apperr.New(apperr.ErrUnauthenticated, "could not validate credentials")
	}
	return u, nil
}

func setupRouter(store *memStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewService(store, nil, zap.NewNop()), zap.NewNop())
	r := gin.New()
	r.POST("/users", h.Create)
	authed := r.Group("", middleware.Authenticate(tokenResolver{store}))
	authed.DELETE("/users/:uuid", h.Delete)
	admin := authed.Group("", middleware.RequireRole(models.RoleAdmin))
	admin.GET("/users", h.List)
	admin.GET("/users/:uuid", h.Get)
	admin.POST("/users/:uuid/role", h.ChangeRole)
	return r
}

func do(r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_CreateDuplicate(t *testing.T) {
	r := setupRouter(newMemStore())

	w := do(r, http.MethodPost, "/users", "", CreateRequest{Email: "ann@example.com", Password: "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	w = do(r, http.MethodPost, "/users", "", CreateRequest{Email: "ann@example.com", Password: "pw"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_AdminSelfProtection(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, zap.NewNop())
	admin := seed(t, svc, store, "admin@example.com", models.RoleAdmin)
	user := seed(t, svc, store, "ann@example.com", models.RoleUser)
	r := setupRouter(store)

	w := do(r, http.MethodPost, "/users/"+admin.UUID.String()+"/role", "admin@example.com", ChangeRoleRequest{Role: "user"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodDelete, "/users/"+admin.UUID.String(), "admin@example.com", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/users/"+user.UUID.String()+"/role", "ann@example.com", ChangeRoleRequest{Role: "admin"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/users/"+user.UUID.String()+"/role", "admin@example.com", ChangeRoleRequest{Role: "admin"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_GetAndDelete(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, zap.NewNop())
	seed(t, svc, store, "admin@example.com", models.RoleAdmin)
	user := seed(t, svc, store, "ann@example.com", models.RoleUser)
	r := setupRouter(store)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/users/not-a-uuid", "admin@example.com", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/users/"+user.UUID.String(), "admin@example.com", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/users", "admin@example.com", nil).Code)

	assert.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/users/"+user.UUID.String(), "ann@example.com", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/users/"+user.UUID.String(), "admin@example.com", nil).Code)
}

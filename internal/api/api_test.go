package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadpress/loadpress/internal/auth"
	"github.com/loadpress/loadpress/pkg/config"
	"github.com/loadpress/loadpress/pkg/errors"
	"github.com/loadpress/loadpress/pkg/logging"
	"github.com/loadpress/loadpress/pkg/types"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func newAuthService(t *testing.T) *auth.Service {
	t.Helper()
	logger, err := logging.NewLogger(nil)
	require.NoError(t, err)
	return auth.NewService(nil, &config.AuthConfig{
		JWTSecret:     "test-secret",
		JWTExpiration: time.Hour,
		BcryptCost:    4,
	}, logger)
}

func doRequest(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestErrorResponseFromErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errors.NewValidationError("bad input"), http.StatusBadRequest},
		{"authentication", errors.NewAuthenticationError("nope"), http.StatusUnauthorized},
		{"authorization", errors.NewAuthorizationError("forbidden"), http.StatusForbidden},
		{"not found", errors.NewNotFoundError("task"), http.StatusNotFound},
		{"conflict", errors.NewConflictError("duplicate"), http.StatusConflict},
		{"invalid state", errors.NewInvalidStateError("cannot cancel"), http.StatusConflict},
		{"malformed artifact", errors.NewMalformedArtifactError("garbage"), http.StatusUnprocessableEntity},
		{"missing artifact", errors.NewMissingArtifactError("/tmp/x.json"), http.StatusUnprocessableEntity},
		{"rate limit", errors.NewRateLimitError("slow down"), http.StatusTooManyRequests},
		{"timeout", errors.NewTimeoutError("run"), http.StatusRequestTimeout},
		{"internal", errors.NewInternalError("boom"), http.StatusInternalServerError},
		{"plain error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/", func(c *gin.Context) {
				ErrorResponseFromError(c, tt.err)
			})

			w := doRequest(router, http.MethodGet, "/", "")
			assert.Equal(t, tt.want, w.Code)

			var resp APIResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	authSvc := newAuthService(t)

	router := gin.New()
	router.Use(AuthMiddleware(authSvc))
	router.GET("/me", func(c *gin.Context) {
		SuccessResponse(c, gin.H{
			"user_id": currentUserID(c),
			"role":    currentRole(c),
		})
	})

	t.Run("missing header", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/me", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Basic abc123")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/me", "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		tokens, err := authSvc.IssueToken(&types.User{
			ID:       7,
			Username: "alice",
			Role:     types.RoleUser,
		})
		require.NoError(t, err)

		w := doRequest(router, http.MethodGet, "/me", tokens.AccessToken)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp APIResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(7), data["user_id"])
		assert.Equal(t, types.RoleUser, data["role"])
	})
}

func TestAdminRequired(t *testing.T) {
	authSvc := newAuthService(t)

	router := gin.New()
	router.Use(AuthMiddleware(authSvc))
	router.GET("/admin", AdminRequired(), func(c *gin.Context) {
		SuccessResponse(c, gin.H{"ok": true})
	})

	userToken, err := authSvc.IssueToken(&types.User{ID: 1, Username: "bob", Role: types.RoleUser})
	require.NoError(t, err)
	adminToken, err := authSvc.IssueToken(&types.User{ID: 2, Username: "root", Role: types.RoleAdmin})
	require.NoError(t, err)

	w := doRequest(router, http.MethodGet, "/admin", userToken.AccessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(router, http.MethodGet, "/admin", adminToken.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParseIDParam(t *testing.T) {
	router := gin.New()
	router.GET("/items/:id", func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		SuccessResponse(c, gin.H{"id": id})
	})

	w := doRequest(router, http.MethodGet, "/items/42", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/items/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/items/-3", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePagination(t *testing.T) {
	router := gin.New()
	router.GET("/list", func(c *gin.Context) {
		p := parsePagination(c)
		SuccessResponse(c, gin.H{"page": p.Page, "page_size": p.PageSize})
	})

	tests := []struct {
		query    string
		page     float64
		pageSize float64
	}{
		{"", 1, 20},
		{"?page=3&page_size=50", 3, 50},
		{"?page=0&page_size=1000", 1, 20},
		{"?page=abc", 1, 20},
	}

	for _, tt := range tests {
		w := doRequest(router, http.MethodGet, "/list"+tt.query, "")
		var resp APIResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, tt.page, data["page"], tt.query)
		assert.Equal(t, tt.pageSize, data["page_size"], tt.query)
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 20, 45)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	p = NewPagination(1, 20, 0)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.False(t, p.HasPrev)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/infrastructure/auth"
	"github.com/groceryshare/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWTService(ttl time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:  "test-secret-key-at-least-32-chars",
		Issuer:  "test-issuer",
		DevMint: true,
		DevTTL:  ttl,
	})
}

func mintToken(t *testing.T, svc *auth.JWTService, actor identity.Actor) string {
	t.Helper()
	token, _, err := svc.Mint(actor)
	require.NoError(t, err)
	return token
}

func serve(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	svc := newTestJWTService(time.Hour)
	want := identity.NewVolunteerActor(uuid.New(), uuid.New())

	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	router.GET("/test", func(c *gin.Context) {
		actor, ok := GetActor(c)
		assert.True(t, ok)
		assert.Equal(t, want, actor)
		assert.NotNil(t, GetJWTClaims(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	rec := serve(router, "Bearer "+mintToken(t, svc, want))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTAuthMiddleware_Rejections(t *testing.T) {
	svc := newTestJWTService(time.Hour)
	other := auth.NewJWTService(config.JWTConfig{
		Secret:  "another-secret-key-of-32-characters!",
		Issuer:  "test-issuer",
		DevMint: true,
		DevTTL:  time.Hour,
	})
	expired := newTestJWTService(-time.Hour)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "UNAUTHORIZED"},
		{"wrong scheme", "Basic abc", "UNAUTHORIZED"},
		{"empty token", "Bearer ", "UNAUTHORIZED"},
		{"garbage", "Bearer not.a.jwt", "INVALID_TOKEN"},
		{"wrong secret", "Bearer " + mintToken(t, other, identity.NewAdminActor(uuid.New())), "INVALID_TOKEN"},
		{"expired", "Bearer " + mintToken(t, expired, identity.NewAdminActor(uuid.New())), "TOKEN_EXPIRED"},
	}

	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			if tt.code != "UNAUTHORIZED" {
				assert.Contains(t, rec.Body.String(), tt.code)
			}
		})
	}
}

func TestJWTAuthMiddleware_SkipPaths(t *testing.T) {
	router := gin.New()
	router.Use(JWTAuthMiddleware(newTestJWTService(time.Hour)))
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	svc := newTestJWTService(time.Hour)
	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	router.GET("/test", RequireRole(identity.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := serve(router, "Bearer "+mintToken(t, svc, identity.NewAdminActor(uuid.New())))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, "Bearer "+mintToken(t, svc, identity.NewRecipientActor(uuid.New(), uuid.New())))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access denied")
}

package router_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appaudit "github.com/groceryshare/backend/internal/application/audit"
	deliveryapp "github.com/groceryshare/backend/internal/application/delivery"
	"github.com/groceryshare/backend/internal/application/profile"
	"github.com/groceryshare/backend/internal/application/retention"
	"github.com/groceryshare/backend/internal/application/vetting"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/infrastructure/auth"
	"github.com/groceryshare/backend/internal/infrastructure/cache"
	"github.com/groceryshare/backend/internal/infrastructure/config"
	"github.com/groceryshare/backend/internal/infrastructure/persistence"
	"github.com/groceryshare/backend/internal/interfaces/http/dto"
	"github.com/groceryshare/backend/internal/interfaces/http/handler"
	"github.com/groceryshare/backend/internal/interfaces/http/middleware"
	"github.com/groceryshare/backend/internal/interfaces/http/router"
	"github.com/groceryshare/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type api struct {
	t      *testing.T
	db     *testutil.TestDB
	cipher identity.ContactCipher
	jwt    *auth.JWTService
	engine *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	middleware.SetupValidator()

	tdb := testutil.NewTestDB(t)
	cipher := testutil.NewCipher(t, "k1", 7)
	log := zap.NewNop()
	recorder := appaudit.NewRecorder(log)
	policy := deliveryapp.DefaultPolicy()
	lock := cache.NewInMemoryMaintenanceLock()

	profiles := profile.NewService(tdb.Scope, cipher, recorder, lock, log)
	ret := retention.NewService(tdb.Scope, recorder, nil, lock, retention.DefaultConfig(), log)
	h := router.Handlers{
		Delivery: handler.NewDeliveryHandler(
			deliveryapp.NewClaimService(tdb.Scope, recorder, policy, log),
			deliveryapp.NewViewService(tdb.Scope, cipher, recorder, log),
		),
		Message: handler.NewMessageHandler(
			deliveryapp.NewMessageService(tdb.Scope, recorder, policy, log),
			deliveryapp.NewRatingService(tdb.Scope, recorder, log),
		),
		Recipient: handler.NewRecipientHandler(profiles, ret),
		Volunteer: handler.NewVolunteerHandler(vetting.NewService(tdb.Scope, recorder, nil, nil, 0, log)),
		Audit:     handler.NewAuditHandler(appaudit.NewQueryService(persistence.NewGormAuditRepository(tdb.DB))),
		System:    handler.NewSystemHandler("test"),
	}

	jwt := auth.NewJWTService(config.JWTConfig{
		Secret:  "router-test-secret-at-least-32-chars",
		Issuer:  "test",
		DevMint: true,
		DevTTL:  time.Hour,
	})
	engine := router.NewEngine(router.EngineConfig{
		Outer: []gin.HandlerFunc{middleware.RequestID()},
		API:   []gin.HandlerFunc{middleware.JWTAuthMiddleware(jwt)},
	}, h)

	return &api{t: t, db: tdb, cipher: cipher, jwt: jwt, engine: engine}
}

func (a *api) token(actor identity.Actor) string {
	a.t.Helper()
	tok, _, err := a.jwt.Mint(actor)
	require.NoError(a.t, err)
	return tok
}

func createBody() map[string]any {
	return map[string]any{
		"store_name":      "Corner Market",
		"pickup_address":  "1 Market Square",
		"order_name":      "Order 7",
		"pickup_time":     time.Now().UTC().Add(3 * time.Hour).Format(time.RFC3339),
		"estimated_items": "2 bags",
	}
}

func TestAPI_ClaimAndVisibility(t *testing.T) {
	a := newAPI(t)
	recipient := a.db.SeedRecipient(t, a.cipher, "Riverside")
	v1 := a.db.SeedVolunteer(t, identity.VettingApproved)
	v2 := a.db.SeedVolunteer(t, identity.VettingApproved)
	owner := testutil.RecipientActor(recipient)
	first := testutil.VolunteerActor(v1)
	second := testutil.VolunteerActor(v2)
	admin := testutil.AdminActor()

	w := testutil.DoJSON(t, a.engine, http.MethodPost, "/api/v1/deliveries", a.token(owner), createBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := testutil.DecodeData[deliveryapp.RequestResponse](t, w)
	base := "/api/v1/deliveries/" + created.ID.String()

	w = testutil.DoJSON(t, a.engine, http.MethodGet, "/api/v1/deliveries/pool", a.token(first), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), created.ID.String())
	assert.Contains(t, w.Body.String(), "Riverside")
	assert.NotContains(t, w.Body.String(), testutil.SeedAddress)

	w = testutil.DoJSON(t, a.engine, http.MethodPost, base+"/claim", a.token(first), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = testutil.DoJSON(t, a.engine, http.MethodPost, base+"/claim", a.token(second), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), dto.MessageChooseAnother)

	w = testutil.DoJSON(t, a.engine, http.MethodGet, base, a.token(first), nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := testutil.DecodeData[deliveryapp.DeliveryView](t, w)
	require.NotNil(t, view.Contact)
	assert.Equal(t, testutil.SeedAddress, view.Contact.Address)

	w = testutil.DoJSON(t, a.engine, http.MethodGet, base, a.token(second), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrCodeForbidden, testutil.ErrorCode(t, w))
	assert.NotContains(t, w.Body.String(), testutil.SeedAddress)

	missing := "/api/v1/deliveries/" + uuid.NewString()
	w = testutil.DoJSON(t, a.engine, http.MethodGet, missing, a.token(second), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = testutil.DoJSON(t, a.engine, http.MethodGet, missing, a.token(admin), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutil.DoJSON(t, a.engine, http.MethodPost, base+"/messages", a.token(first), map[string]string{"body": "On my way"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = testutil.DoJSON(t, a.engine, http.MethodGet, base+"/messages/unread", a.token(owner), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), testutil.DecodeData[handler.UnreadResponse](t, w).Unread)

	w = testutil.DoJSON(t, a.engine, http.MethodPost, base+"/pickup", a.token(first), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = testutil.DoJSON(t, a.engine, http.MethodPost, base+"/complete", a.token(first), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = testutil.DoJSON(t, a.engine, http.MethodPost, base+"/complete", a.token(owner), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = testutil.DoJSON(t, a.engine, http.MethodPost, base+"/rating", a.token(owner), map[string]any{"score": 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = testutil.DoJSON(t, a.engine, http.MethodPost, base+"/rating", a.token(owner), map[string]any{"score": 4})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeAlreadyRated, testutil.ErrorCode(t, w))

	w = testutil.DoJSON(t, a.engine, http.MethodGet, base, a.token(first), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), testutil.SeedAddress)

	w = testutil.DoJSON(t, a.engine, http.MethodGet, base+"/audit", a.token(admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := testutil.DecodeData[[]appaudit.EntryResponse](t, w)
	assert.NotEmpty(t, entries)
	for _, needle := range []string{testutil.SeedAddress, testutil.SeedPhone, testutil.SeedNotes, "On my way"} {
		assert.NotContains(t, w.Body.String(), needle)
	}
}

func TestAPI_AuthAndRoles(t *testing.T) {
	a := newAPI(t)
	recipient := testutil.RecipientActor(a.db.SeedRecipient(t, a.cipher, "North"))
	volunteer := testutil.VolunteerActor(a.db.SeedVolunteer(t, identity.VettingApproved))

	tests := []struct {
		name   string
		method string
		path   string
		actor  *identity.Actor
		body   any
		status int
		code   string
	}{
		{"no token", http.MethodGet, "/api/v1/deliveries/mine", nil, nil, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"recipient on admin route", http.MethodGet, "/api/v1/admin/audit", &recipient, nil, http.StatusForbidden, dto.ErrCodeForbidden},
		{"volunteer creating a request", http.MethodPost, "/api/v1/deliveries", &volunteer, createBody(), http.StatusForbidden, dto.ErrCodeForbidden},
		{"recipient browsing the pool", http.MethodGet, "/api/v1/deliveries/pool", &recipient, nil, http.StatusForbidden, dto.ErrCodeForbidden},
		{"bad path id", http.MethodGet, "/api/v1/deliveries/not-a-uuid", &recipient, nil, http.StatusBadRequest, dto.ErrCodeBadRequest},
		{"blank store name", http.MethodPost, "/api/v1/deliveries", &recipient, map[string]any{
			"store_name": "  ", "pickup_address": "x", "order_name": "y",
			"pickup_time": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		}, http.StatusBadRequest, dto.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := ""
			if tt.actor != nil {
				token = a.token(*tt.actor)
			}
			w := testutil.DoJSON(t, a.engine, tt.method, tt.path, token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.True(t, strings.Contains(w.Body.String(), tt.code), w.Body.String())
		})
	}
}

func TestAPI_PublicEndpoints(t *testing.T) {
	a := newAPI(t)

	w := testutil.DoJSON(t, a.engine, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = testutil.DoJSON(t, a.engine, http.MethodGet, "/api/v1/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_RecipientSelfService(t *testing.T) {
	a := newAPI(t)
	newcomer := identity.Actor{UserID: uuid.New(), Role: identity.RoleRecipient}

	w := testutil.DoJSON(t, a.engine, http.MethodPost, "/api/v1/recipients", a.token(newcomer), map[string]any{
		"display_alias": "K.",
		"general_area":  "Harbour",
		"contact":       map[string]string{"address": "9 Dock Road", "phone": "+44 20 7946 0000"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "ciphertext")

	w = testutil.DoJSON(t, a.engine, http.MethodPut, "/api/v1/recipients/me/contact", a.token(newcomer), map[string]any{
		"address": "11 Dock Road",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = testutil.DoJSON(t, a.engine, http.MethodGet, "/api/v1/recipients/me", a.token(newcomer), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "11 Dock Road")

	w = testutil.DoJSON(t, a.engine, http.MethodDelete, "/api/v1/recipients/me", a.token(newcomer), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = testutil.DoJSON(t, a.engine, http.MethodGet, "/api/v1/recipients/me", a.token(newcomer), nil)
	assert.NotContains(t, w.Body.String(), "11 Dock Road")
}

func TestAPI_VolunteerVetting(t *testing.T) {
	a := newAPI(t)
	applicant := identity.Actor{UserID: uuid.New(), Role: identity.RoleVolunteer}
	admin := testutil.AdminActor()

	w := testutil.DoJSON(t, a.engine, http.MethodPost, "/api/v1/volunteers", a.token(applicant), map[string]any{
		"full_name":    "Robin Carter",
		"service_area": "Harbour",
		"attested":     true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	registered := testutil.DecodeData[vetting.VolunteerResponse](t, w)
	assert.Equal(t, "pending", registered.Status)

	w = testutil.DoJSON(t, a.engine, http.MethodGet, "/api/v1/deliveries/pool", a.token(applicant), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutil.DoJSON(t, a.engine, http.MethodGet, "/api/v1/admin/volunteers/pending", a.token(admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), registered.ID.String())

	w = testutil.DoJSON(t, a.engine, http.MethodPost, "/api/v1/admin/volunteers/"+registered.ID.String()+"/approve", a.token(admin), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	approved := identity.NewVolunteerActor(applicant.UserID, registered.ID)
	w = testutil.DoJSON(t, a.engine, http.MethodGet, "/api/v1/deliveries/pool", a.token(approved), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoJSON(t, a.engine, http.MethodPost, "/api/v1/admin/volunteers/"+registered.ID.String()+"/approve", a.token(admin), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

package persistence

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a private in-memory SQLite database with every table
// migrated. One connection keeps all queries on the same database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type testSealer struct{}

func (testSealer) Seal(field identity.ContactField, plaintext string) (string, error) {
	return "sealed:" + string(field) + ":" + plaintext, nil
}

func (testSealer) Open(field identity.ContactField, ciphertext string) (string, error) {
	return strings.TrimPrefix(ciphertext, "sealed:"+string(field)+":"), nil
}

func (testSealer) KeyID() string { return "test" }

func seedRecipient(t *testing.T, db *gorm.DB, area string) *identity.Recipient {
	t.Helper()
	sealed, err := identity.SealContact(testSealer{}, identity.Contact{Address: "12 Elm Street", Phone: "555 0100"})
	require.NoError(t, err)
	r, err := identity.NewRecipient(uuid.New(), "J.", area, sealed)
	require.NoError(t, err)
	require.NoError(t, NewGormRecipientRepository(db).Create(context.Background(), r))
	return r
}

func seedVolunteer(t *testing.T, db *gorm.DB) *identity.Volunteer {
	t.Helper()
	v, err := identity.NewVolunteer(uuid.New(), "Sam Helper", "", "North", "evenings", true)
	require.NoError(t, err)
	require.NoError(t, v.Approve(uuid.New(), time.Now().UTC()))
	require.NoError(t, NewGormVolunteerRepository(db).Create(context.Background(), v))
	return v
}

func seedRequest(t *testing.T, db *gorm.DB, recipientID uuid.UUID) *delivery.DeliveryRequest {
	t.Helper()
	req, err := delivery.NewDeliveryRequest(recipientID, delivery.PickupDetails{
		StoreName:      "Corner Market",
		PickupAddress:  "1 Market Square",
		OrderName:      "Order 7",
		PickupTime:     time.Now().UTC().Add(2 * time.Hour),
		EstimatedItems: "2 bags",
	})
	require.NoError(t, err)
	require.NoError(t, NewGormDeliveryRequestRepository(db).Create(context.Background(), req))
	return req
}

package subscriptions

import (
	"testing"
	"time"

	"dataforge/internal/domain/plans"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&Subscription{}))
	return db
}

func TestForUserCreatesImplicitFreeRow(t *testing.T) {
	db := newTestDB(t)

	sub, err := ForUser(db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, plans.TierFree, sub.Tier)
	assert.Equal(t, StatusActive, sub.Status)
	assert.False(t, sub.HasProviderSubscription())

	// Second touch returns the same row, not a new one.
	again, err := ForUser(db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&Subscription{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestProviderLookups(t *testing.T) {
	db := newTestDB(t)
	subID := "sub_1"
	cusID := "cus_1"
	require.NoError(t, db.Create(&Subscription{
		UserID:                 "user-1",
		Tier:                   plans.TierPro,
		Status:                 StatusActive,
		ProviderSubscriptionID: &subID,
		ProviderCustomerID:     &cusID,
	}).Error)

	bySub, err := ByProviderSubscriptionID(db, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", bySub.UserID)

	byCus, err := ByProviderCustomerID(db, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", byCus.UserID)

	_, err = ByProviderSubscriptionID(db, "sub_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = ByProviderCustomerID(db, "cus_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPendingChangeDue(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	target := plans.TierBasic

	var sub Subscription
	assert.False(t, sub.PendingChangeDue(now), "no pending change")

	effective := now.Add(time.Hour)
	sub.PendingTier = &target
	sub.PendingEffectiveAt = &effective
	assert.True(t, sub.HasPendingChange())
	assert.False(t, sub.PendingChangeDue(now), "not yet effective")

	assert.True(t, sub.PendingChangeDue(effective), "due exactly at the boundary")
	assert.True(t, sub.PendingChangeDue(effective.Add(time.Minute)))

	sub.ClearPendingChange()
	assert.False(t, sub.HasPendingChange())
}

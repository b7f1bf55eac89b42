package subscriptions

import (
	"errors"

	"dataforge/internal/domain/plans"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUser loads a user's subscription, materializing the implicit free-tier
// row on first touch. Signup itself is owned by the auth system, so the first
// billing-path access is where the row comes into existence.
func ForUser(db *gorm.DB, userID string) (*Subscription, error) {
	var sub Subscription
	err := db.Where("user_id = ?", userID).First(&sub).Error
	if err == nil {
		return &sub, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	sub = Subscription{
		UserID: userID,
		Tier:   plans.TierFree,
		Status: StatusActive,
	}
	// Two requests can race here; the user_id unique index makes one insert
	// win and the loser re-reads.
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&sub).Error; err != nil {
		return nil, err
	}
	if err := db.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// ByProviderSubscriptionID resolves the local row a provider event refers to.
// Returns gorm.ErrRecordNotFound if no row is bound to that subscription.
func ByProviderSubscriptionID(db *gorm.DB, providerSubID string) (*Subscription, error) {
	var sub Subscription
	err := db.Where("provider_subscription_id = ?", providerSubID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ByProviderCustomerID resolves the local row for a provider customer, used by
// invoice events which carry the customer but not always subscription metadata.
func ByProviderCustomerID(db *gorm.DB, customerID string) (*Subscription, error) {
	var sub Subscription
	err := db.Where("provider_customer_id = ?", customerID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

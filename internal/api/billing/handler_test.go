package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "dataforge/internal/domain/billing"
	"dataforge/internal/domain/plans"
	"dataforge/internal/domain/subscriptions"
	"dataforge/internal/ledger"
	"dataforge/internal/reconcile"
	"dataforge/internal/stripegw"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	plans.BindPriceIDs("price_basic", "price_pro", "price_enterprise")
}

type stubGateway struct {
	checkoutRes *stripegw.CheckoutResult
	changeRes   *stripegw.SubscriptionState
	cancelRes   *stripegw.SubscriptionState
	err         error
	invoices    []stripegw.Invoice
}

func (s *stubGateway) CreateCheckoutSession(context.Context, stripegw.CheckoutRequest) (*stripegw.CheckoutResult, error) {
	return s.checkoutRes, s.err
}
func (s *stubGateway) ChangePlan(context.Context, string, string, stripegw.ChangeMode) (*stripegw.SubscriptionState, error) {
	return s.changeRes, s.err
}
func (s *stubGateway) Cancel(context.Context, string, bool) (*stripegw.SubscriptionState, error) {
	return s.cancelRes, s.err
}
func (s *stubGateway) GetSubscription(context.Context, string) (*stripegw.SubscriptionState, error) {
	return nil, s.err
}
func (s *stubGateway) ListInvoices(context.Context, string, int) ([]stripegw.Invoice, error) {
	return s.invoices, s.err
}

// testAuth stands in for the JWT middleware: it injects the identity claims
// the handlers read from the context.
func testAuth(userID, email string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("email", email)
		c.Next()
	}
}

func newBillingRouter(t *testing.T, gw stripegw.Gateway) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&subscriptions.Subscription{},
		&domain.EventLedgerEntry{},
		&domain.HistoryEntry{},
	))

	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)
	rec := reconcile.New(db, gw, ledger.New(db), log, "http://app.test")
	h := NewHandler(db, rec, gw, log)

	r := gin.New()
	r.Use(testAuth("user-1", "u@example.com"))
	r.GET("/subscription", h.GetSubscription)
	r.GET("/subscription/history", h.GetHistory)
	r.GET("/subscription/invoices", h.GetInvoices)
	r.POST("/create-checkout-session", h.CreateCheckoutSession)
	r.POST("/change-plan", h.ChangePlan)
	r.POST("/cancel-subscription", h.CancelSubscription)
	return r, db
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetSubscriptionDefaultsToFreePlan(t *testing.T) {
	r, _ := newBillingRouter(t, &stubGateway{})

	w := doJSON(r, http.MethodGet, "/subscription", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "free", resp["tier"])
	assert.Equal(t, true, resp["is_active"])
	assert.EqualValues(t, 5, resp["monthly_quota"])
}

func TestChangePlanRedirectsNewUserToCheckout(t *testing.T) {
	gw := &stubGateway{checkoutRes: &stripegw.CheckoutResult{
		SessionID:   "cs_1",
		CheckoutURL: "https://checkout.test/cs_1",
		CustomerID:  "cus_1",
	}}
	r, db := newBillingRouter(t, gw)

	w := doJSON(r, http.MethodPost, "/change-plan", gin.H{"new_plan": "basic"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, reconcile.OutcomeRedirect, resp["status"])
	assert.Equal(t, "https://checkout.test/cs_1", resp["checkout_url"])

	sub, err := subscriptions.ForUser(db, "user-1")
	require.NoError(t, err)
	require.NotNil(t, sub.ProviderCustomerID)
	assert.Equal(t, "cus_1", *sub.ProviderCustomerID)
}

func TestChangePlanUpgradeReturnsSuccess(t *testing.T) {
	end := time.Now().Add(720 * time.Hour).UTC().Truncate(time.Second)
	gw := &stubGateway{changeRes: &stripegw.SubscriptionState{
		ProviderSubscriptionID: "sub_1",
		PriceID:                "price_pro",
		Tier:                   plans.TierPro,
		Status:                 subscriptions.StatusActive,
		CurrentPeriodEnd:       end,
	}}
	r, db := newBillingRouter(t, gw)

	subID := "sub_1"
	cusID := "cus_1"
	require.NoError(t, db.Create(&subscriptions.Subscription{
		UserID:                 "user-1",
		Tier:                   plans.TierBasic,
		Status:                 subscriptions.StatusActive,
		ProviderSubscriptionID: &subID,
		ProviderCustomerID:     &cusID,
	}).Error)

	w := doJSON(r, http.MethodPost, "/change-plan", gin.H{"new_plan": "pro"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, reconcile.OutcomeSuccess, resp["status"])

	sub, err := subscriptions.ForUser(db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, plans.TierPro, sub.Tier)
}

func TestChangePlanRejectsMissingOrSamePlan(t *testing.T) {
	r, db := newBillingRouter(t, &stubGateway{})

	w := doJSON(r, http.MethodPost, "/change-plan", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	subID := "sub_1"
	require.NoError(t, db.Create(&subscriptions.Subscription{
		UserID:                 "user-1",
		Tier:                   plans.TierBasic,
		Status:                 subscriptions.StatusActive,
		ProviderSubscriptionID: &subID,
	}).Error)

	w = doJSON(r, http.MethodPost, "/change-plan", gin.H{"new_plan": "basic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangePlanProviderOutageIsBadGateway(t *testing.T) {
	gw := &stubGateway{err: domain.ErrProviderCall}
	r, db := newBillingRouter(t, gw)

	subID := "sub_1"
	require.NoError(t, db.Create(&subscriptions.Subscription{
		UserID:                 "user-1",
		Tier:                   plans.TierBasic,
		Status:                 subscriptions.StatusActive,
		ProviderSubscriptionID: &subID,
	}).Error)

	w := doJSON(r, http.MethodPost, "/change-plan", gin.H{"new_plan": "pro"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "was not changed")

	sub, err := subscriptions.ForUser(db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, plans.TierBasic, sub.Tier)
}

func TestCancelSubscriptionDefaultsToPeriodEnd(t *testing.T) {
	end := time.Now().Add(240 * time.Hour).UTC().Truncate(time.Second)
	gw := &stubGateway{cancelRes: &stripegw.SubscriptionState{
		ProviderSubscriptionID: "sub_1",
		Tier:                   plans.TierBasic,
		Status:                 subscriptions.StatusActive,
		CurrentPeriodEnd:       end,
		CancelAtPeriodEnd:      true,
	}}
	r, db := newBillingRouter(t, gw)

	subID := "sub_1"
	require.NoError(t, db.Create(&subscriptions.Subscription{
		UserID:                 "user-1",
		Tier:                   plans.TierBasic,
		Status:                 subscriptions.StatusActive,
		ProviderSubscriptionID: &subID,
	}).Error)

	w := doJSON(r, http.MethodPost, "/cancel-subscription", gin.H{})
	require.Equal(t, http.StatusOK, w.Code)

	sub, err := subscriptions.ForUser(db, "user-1")
	require.NoError(t, err)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, plans.TierBasic, sub.Tier, "access kept until period end")
}

func TestCancelWithoutSubscriptionIsBadRequest(t *testing.T) {
	r, _ := newBillingRouter(t, &stubGateway{})
	w := doJSON(r, http.MethodPost, "/cancel-subscription", gin.H{"at_period_end": false})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateCheckoutSessionRejectsFreeAndUnknownPlans(t *testing.T) {
	r, _ := newBillingRouter(t, &stubGateway{})

	w := doJSON(r, http.MethodPost, "/create-checkout-session", gin.H{"plan": "free"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/create-checkout-session", gin.H{"plan": "platinum"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetHistoryReflectsTransitions(t *testing.T) {
	gw := &stubGateway{changeRes: &stripegw.SubscriptionState{
		ProviderSubscriptionID: "sub_1",
		PriceID:                "price_pro",
		Tier:                   plans.TierPro,
		Status:                 subscriptions.StatusActive,
		CurrentPeriodEnd:       time.Now().Add(720 * time.Hour).UTC(),
	}}
	r, db := newBillingRouter(t, gw)

	subID := "sub_1"
	require.NoError(t, db.Create(&subscriptions.Subscription{
		UserID:                 "user-1",
		Tier:                   plans.TierBasic,
		Status:                 subscriptions.StatusActive,
		ProviderSubscriptionID: &subID,
	}).Error)

	require.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/change-plan", gin.H{"new_plan": "pro"}).Code)

	w := doJSON(r, http.MethodGet, "/subscription/history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		History []struct {
			Action       string `json:"action"`
			PreviousTier string `json:"previous_tier"`
			Tier         string `json:"tier"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.History, 1)
	assert.Equal(t, domain.ActionUpgraded, resp.History[0].Action)
	assert.Equal(t, plans.TierBasic, resp.History[0].PreviousTier)
	assert.Equal(t, plans.TierPro, resp.History[0].Tier)
}

func TestGetInvoicesWithoutCustomerIsEmptyList(t *testing.T) {
	r, _ := newBillingRouter(t, &stubGateway{})

	w := doJSON(r, http.MethodGet, "/subscription/invoices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"invoices":[]}`, w.Body.String())
}

func TestGetInvoicesPassesThroughProviderList(t *testing.T) {
	gw := &stubGateway{invoices: []stripegw.Invoice{{
		ID:              "in_1",
		Status:          "paid",
		AmountPaidCents: 999,
		Currency:        "usd",
	}}}
	r, db := newBillingRouter(t, gw)

	cusID := "cus_1"
	require.NoError(t, db.Create(&subscriptions.Subscription{
		UserID:             "user-1",
		Tier:               plans.TierBasic,
		Status:             subscriptions.StatusActive,
		ProviderCustomerID: &cusID,
	}).Error)

	w := doJSON(r, http.MethodGet, "/subscription/invoices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "in_1")
}

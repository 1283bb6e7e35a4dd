package payoutaccounts

import (
	"context"
	"errors"
	"testing"

	"cleanup-backend/internal/domain"
	"cleanup-backend/internal/payments"
	"cleanup-backend/internal/payments/paymentstest"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAccountsTest(t *testing.T) (*Service, *gorm.DB, *paymentstest.FakeProcessor) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.PayoutAccount{}))
	proc := paymentstest.New()
	return &Service{
		DB:         db,
		Processor:  proc,
		RefreshURL: "https://app.example.test/onboarding/refresh",
		ReturnURL:  "https://app.example.test/onboarding/done",
	}, db, proc
}

func TestStartOnboarding_CreatesAccountOnce(t *testing.T) {
	svc, db, _ := setupAccountsTest(t)
	ctx := context.Background()
	user := uuid.New()

	first, err := svc.StartOnboarding(ctx, user, "vol@example.test")
	require.NoError(t, err)
	assert.Equal(t, "acct_test_1", first.AccountID)
	assert.Equal(t, "https://connect.example.test/setup/acct_test_1", first.OnboardingURL)

	second, err := svc.StartOnboarding(ctx, user, "vol@example.test")
	require.NoError(t, err)
	assert.Equal(t, first.AccountID, second.AccountID)

	var count int64
	require.NoError(t, db.Model(&domain.PayoutAccount{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGet_NotFound(t *testing.T) {
	svc, _, _ := setupAccountsTest(t)
	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, payments.ErrPayoutAccountNotFound))
}

func TestApplyAccountUpdate(t *testing.T) {
	svc, db, _ := setupAccountsTest(t)
	ctx := context.Background()
	user := uuid.New()
	require.NoError(t, db.Create(&domain.PayoutAccount{UserID: user, ExternalAccountID: "acct_1"}).Error)

	known, err := svc.ApplyAccountUpdate(ctx, payments.AccountDetails{ExternalID: "acct_1", PayoutsEnabled: true, DetailsSubmitted: true})
	require.NoError(t, err)
	assert.True(t, known)

	// Replaying the same update is harmless.
	known, err = svc.ApplyAccountUpdate(ctx, payments.AccountDetails{ExternalID: "acct_1", PayoutsEnabled: true, DetailsSubmitted: true})
	require.NoError(t, err)
	assert.True(t, known)

	acct, err := svc.Get(ctx, user)
	require.NoError(t, err)
	assert.True(t, acct.PayoutsEnabled)
	assert.True(t, acct.DetailsSubmitted)
	assert.False(t, acct.ChargesEnabled)

	known, err = svc.ApplyAccountUpdate(ctx, payments.AccountDetails{ExternalID: "acct_unknown", PayoutsEnabled: true})
	require.NoError(t, err)
	assert.False(t, known)
	var count int64
	require.NoError(t, db.Model(&domain.PayoutAccount{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRequireReady_RefreshesDisabledAccountOnce(t *testing.T) {
	svc, db, proc := setupAccountsTest(t)
	ctx := context.Background()
	user := uuid.New()
	require.NoError(t, db.Create(&domain.PayoutAccount{UserID: user, ExternalAccountID: "acct_1"}).Error)

	proc.SetAccount(payments.AccountDetails{ExternalID: "acct_1"})
	_, err := svc.RequireReady(ctx, user)
	assert.True(t, errors.Is(err, payments.ErrPayoutAccountNotFound))

	proc.SetAccount(payments.AccountDetails{ExternalID: "acct_1", PayoutsEnabled: true, ChargesEnabled: true, DetailsSubmitted: true})
	acct, err := svc.RequireReady(ctx, user)
	require.NoError(t, err)
	assert.True(t, acct.PayoutsEnabled)

	stored, err := svc.Get(ctx, user)
	require.NoError(t, err)
	assert.True(t, stored.PayoutsEnabled)
}

func TestRequireReady_MissingAccount(t *testing.T) {
	svc, _, _ := setupAccountsTest(t)
	_, err := svc.RequireReady(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, payments.ErrPayoutAccountNotFound))
}

func TestRequireReady_ProcessorDownReadsAsNotReady(t *testing.T) {
	svc, db, proc := setupAccountsTest(t)
	user := uuid.New()
	require.NoError(t, db.Create(&domain.PayoutAccount{UserID: user, ExternalAccountID: "acct_1"}).Error)
	proc.GetAccountErr = payments.ErrProcessorUnavailable

	_, err := svc.RequireReady(context.Background(), user)
	assert.True(t, errors.Is(err, payments.ErrPayoutAccountNotFound))
}

package payoutaccounts

import (
	"context"
	"errors"

	"cleanup-backend/internal/domain"
	"cleanup-backend/internal/payments"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service maps performers to processor payout accounts and tracks onboarding readiness.
type Service struct {
	DB         *gorm.DB
	Processor  payments.Processor
	RefreshURL string
	ReturnURL  string
}

type OnboardingResult struct {
	AccountID     string `json:"accountId"`
	OnboardingURL string `json:"onboardingUrl"`
}

// StartOnboarding creates the user's payout account on first use and returns
// a fresh hosted onboarding link every time.
func (s *Service) StartOnboarding(ctx context.Context, userID uuid.UUID, email string) (OnboardingResult, error) {
	acct, err := s.Get(ctx, userID)
	if err != nil && !errors.Is(err, payments.ErrPayoutAccountNotFound) {
		return OnboardingResult{}, err
	}
	if err != nil {
		details, err := s.Processor.CreateAccount(ctx, payments.AccountRequest{
			Email:          email,
			Metadata:       map[string]string{payments.MetaUserID: userID.String()},
			IdempotencyKey: "account-" + userID.String(),
		})
		if err != nil {
			return OnboardingResult{}, err
		}
		acct = domain.PayoutAccount{
			UserID:            userID,
			ExternalAccountID: details.ExternalID,
			ChargesEnabled:    details.ChargesEnabled,
			PayoutsEnabled:    details.PayoutsEnabled,
			DetailsSubmitted:  details.DetailsSubmitted,
		}
		res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&acct)
		if res.Error != nil {
			return OnboardingResult{}, res.Error
		}
		if res.RowsAffected == 0 {
			if acct, err = s.Get(ctx, userID); err != nil {
				return OnboardingResult{}, err
			}
		} else {
			log.Info().Str("user_id", userID.String()).Str("account_id", acct.ExternalAccountID).Msg("payout account created")
		}
	}

	url, err := s.Processor.CreateOnboardingLink(ctx, payments.OnboardingLinkRequest{
		AccountID:  acct.ExternalAccountID,
		RefreshURL: s.RefreshURL,
		ReturnURL:  s.ReturnURL,
	})
	if err != nil {
		return OnboardingResult{}, err
	}
	return OnboardingResult{AccountID: acct.ExternalAccountID, OnboardingURL: url}, nil
}

func (s *Service) Get(ctx context.Context, userID uuid.UUID) (domain.PayoutAccount, error) {
	var acct domain.PayoutAccount
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PayoutAccount{}, payments.ErrPayoutAccountNotFound
		}
		return domain.PayoutAccount{}, err
	}
	return acct, nil
}

// Refresh pulls the account's current flags from the processor and stores them.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID) (domain.PayoutAccount, error) {
	acct, err := s.Get(ctx, userID)
	if err != nil {
		return domain.PayoutAccount{}, err
	}
	details, err := s.Processor.GetAccount(ctx, acct.ExternalAccountID)
	if err != nil {
		return domain.PayoutAccount{}, err
	}
	if _, err := s.ApplyAccountUpdate(ctx, details); err != nil {
		return domain.PayoutAccount{}, err
	}
	acct.ChargesEnabled = details.ChargesEnabled
	acct.PayoutsEnabled = details.PayoutsEnabled
	acct.DetailsSubmitted = details.DetailsSubmitted
	return acct, nil
}

// ApplyAccountUpdate stores the readiness flags keyed by external account id.
// It reports false, without error, when no local account has that id.
func (s *Service) ApplyAccountUpdate(ctx context.Context, details payments.AccountDetails) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&domain.PayoutAccount{}).
		Where("external_account_id = ?", details.ExternalID).
		Updates(map[string]interface{}{
			"charges_enabled":   details.ChargesEnabled,
			"payouts_enabled":   details.PayoutsEnabled,
			"details_submitted": details.DetailsSubmitted,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var count int64
	if err := s.DB.WithContext(ctx).Model(&domain.PayoutAccount{}).
		Where("external_account_id = ?", details.ExternalID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// RequireReady returns the user's account when it can receive payouts. A
// locally disabled account is refreshed from the processor once first.
func (s *Service) RequireReady(ctx context.Context, userID uuid.UUID) (domain.PayoutAccount, error) {
	acct, err := s.Get(ctx, userID)
	if err != nil {
		return domain.PayoutAccount{}, err
	}
	if acct.PayoutsEnabled {
		return acct, nil
	}
	acct, err = s.Refresh(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("payout account refresh failed")
		return domain.PayoutAccount{}, payments.ErrPayoutAccountNotFound
	}
	if !acct.PayoutsEnabled {
		return domain.PayoutAccount{}, payments.ErrPayoutAccountNotFound
	}
	return acct, nil
}

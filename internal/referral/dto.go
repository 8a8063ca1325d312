// AngelaMos | 2026
// dto.go

package referral

import (
	"fmt"
	"time"

	"github.com/sikaplatform/referral-backend/internal/core"
)

type ListParams struct {
	Page  int
	Limit int
}

// Validate rejects non-positive pagination instead of correcting it.
func (p ListParams) Validate() error {
	if p.Page < 1 {
		return fmt.Errorf("page must be >= 1: %w", core.ErrInvalidInput)
	}
	if p.Limit < 1 {
		return fmt.Errorf("limit must be > 0: %w", core.ErrInvalidInput)
	}
	return nil
}

func (p ListParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

func (p *ListParams) Clamp(maxLimit int) {
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
}

type Sort string

const (
	SortRecent Sort = "recent"
	SortName   Sort = "name"
)

type CreateReferralRequest struct {
	ReferrerID        string `json:"referrer_id"         validate:"required,uuid"`
	ReferredUserID    string `json:"referred_user_id"    validate:"required,uuid"`
	ReferralLevel     int    `json:"referral_level"      validate:"required,min=1,max=3"`
	ReferredUserName  string `json:"referred_user_name"  validate:"omitempty,max=200"`
	ReferredUserEmail string `json:"referred_user_email" validate:"omitempty,max=255"`
	ReferredUserPhone string `json:"referred_user_phone" validate:"omitempty,max=32"`
}

type CreateManyRequest struct {
	Referrals []CreateReferralRequest `json:"referrals" validate:"required,min=1,max=500,dive"`
}

type UpdateSnapshotRequest struct {
	Name        *string `json:"name,omitempty"         validate:"omitempty,min=1,max=200"`
	Email       *string `json:"email,omitempty"        validate:"omitempty,email,max=255"`
	PhoneNumber *string `json:"phone_number,omitempty" validate:"omitempty,max=32"`
}

type LifecycleResponse struct {
	Modified int64 `json:"modified"`
}

// MonthlyStat is one entry of the dense Jan-Dec series for the current
// year. Months with no activity are present with all-zero counts.
type MonthlyStat struct {
	Month                   string `json:"month"`
	MonthName               string `json:"month_name"`
	Level1                  int    `json:"level1"`
	Level2                  int    `json:"level2"`
	Level3                  int    `json:"level3"`
	Total                   int    `json:"total"`
	Level1ActiveSubscribers int    `json:"level1_active_subscribers"`
	Level2ActiveSubscribers int    `json:"level2_active_subscribers"`
	Level3ActiveSubscribers int    `json:"level3_active_subscribers"`
	TotalActiveSubscribers  int    `json:"total_active_subscribers"`
}

type StatsResponse struct {
	ReferrerID              string        `json:"referrer_id"`
	TotalReferrals          int           `json:"total_referrals"`
	Level1Count             int           `json:"level1_count"`
	Level2Count             int           `json:"level2_count"`
	Level3Count             int           `json:"level3_count"`
	Level1ActiveSubscribers int           `json:"level1_active_subscribers"`
	Level2ActiveSubscribers int           `json:"level2_active_subscribers"`
	Level3ActiveSubscribers int           `json:"level3_active_subscribers"`
	TotalActiveSubscribers  int           `json:"total_active_subscribers"`
	MonthlyStats            []MonthlyStat `json:"monthly_stats"`
}

func monthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

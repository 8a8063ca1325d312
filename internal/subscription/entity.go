// AngelaMos | 2026
// entity.go

package subscription

import (
	"time"
)

const (
	StatusActive    = "ACTIVE"
	StatusExpired   = "EXPIRED"
	StatusCancelled = "CANCELLED"
)

// Category separates paid platform access from recurring add-ons. Rows
// created before the column existed have a NULL category and count as
// REGISTRATION everywhere.
const (
	CategoryRegistration = "REGISTRATION"
	CategoryFeature      = "FEATURE"
)

// Platform subscription type tokens.
const (
	TypeClassique = "CLASSIQUE"
	TypePremium   = "PREMIUM"
	TypeRelance   = "RELANCE"
)

// Subscription is the read-only view this backend holds over the billing
// subsystem's data. It is never written here.
type Subscription struct {
	ID               string    `db:"id"                json:"id"`
	UserID           string    `db:"user_id"           json:"user_id"`
	SubscriptionType string    `db:"subscription_type" json:"subscription_type"`
	Category         *string   `db:"category"          json:"category,omitempty"`
	Status           string    `db:"status"            json:"status"`
	StartDate        time.Time `db:"start_date"        json:"start_date"`
	EndDate          time.Time `db:"end_date"          json:"end_date"`
	CreatedAt        time.Time `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"        json:"updated_at"`
}

func (s *Subscription) IsActive(now time.Time) bool {
	return s.Status == StatusActive && s.EndDate.After(now)
}

func (s *Subscription) IsRegistration() bool {
	return s.Category == nil || *s.Category == CategoryRegistration
}

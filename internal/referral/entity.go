// AngelaMos | 2026
// entity.go

package referral

import (
	"time"

	"github.com/sikaplatform/referral-backend/internal/user"
)

const (
	MinLevel = 1
	MaxLevel = 3
)

// Subscription-status filter tokens for eligibility listings. Anything else
// is treated as a specific subscription-type token (e.g. "CLASSIQUE").
const (
	SubTypeNone = "none"
	SubTypeAll  = "all"
)

func ValidLevel(level int) bool {
	return level >= MinLevel && level <= MaxLevel
}

// ReferralRecord is one edge in the referral graph: referrer -> referred
// user at a depth of 1 (direct) to 3. The referred_user_* columns are a
// denormalized snapshot of the profile, refreshed only through the lifecycle
// propagation path; they exist to keep free-text search off the users table
// and are never authoritative.
type ReferralRecord struct {
	ID                string     `db:"id"                  json:"id"`
	ReferrerID        string     `db:"referrer_id"         json:"referrer_id"`
	ReferredUserID    string     `db:"referred_user_id"    json:"referred_user_id"`
	ReferralLevel     int        `db:"referral_level"      json:"referral_level"`
	ReferredUserName  string     `db:"referred_user_name"  json:"referred_user_name"`
	ReferredUserEmail string     `db:"referred_user_email" json:"referred_user_email"`
	ReferredUserPhone string     `db:"referred_user_phone" json:"referred_user_phone"`
	Archived          bool       `db:"archived"            json:"archived"`
	ArchivedAt        *time.Time `db:"archived_at"         json:"archived_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at"          json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"          json:"updated_at"`
}

// Edge is the projection the stats aggregator loads: enough to partition a
// referrer's network by level and month without pulling full rows.
type Edge struct {
	ReferredUserID string    `db:"referred_user_id"`
	ReferralLevel  int       `db:"referral_level"`
	CreatedAt      time.Time `db:"created_at"`
}

// PopulatedReferral is an edge joined with the live profile of its referred
// user. Rows whose referred user is deleted or blocked never reach this
// type; the join predicate drops them from data and count alike.
type PopulatedReferral struct {
	ReferralRecord
	UserName      string    `db:"user_name"       json:"user_name"`
	UserEmail     string    `db:"user_email"      json:"user_email"`
	UserPhone     string    `db:"user_phone"      json:"user_phone"`
	UserRegion    string    `db:"user_region"     json:"user_region"`
	UserAvatar    *string   `db:"user_avatar"     json:"user_avatar,omitempty"`
	UserCreatedAt time.Time `db:"user_created_at" json:"user_created_at"`
}

// SearchResult pairs a matched edge with the referred user's live profile.
// The snapshot decided the match; the profile is what callers should show.
type SearchResult struct {
	ReferralRecord
	Profile             *user.User `json:"profile"`
	ActiveSubscriptions []string   `json:"active_subscriptions,omitempty"`
}

// SnapshotUpdate is a partial update of the denormalized profile snapshot.
// Nil fields are left untouched.
type SnapshotUpdate struct {
	Name        *string
	Email       *string
	PhoneNumber *string
}

func (u SnapshotUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.PhoneNumber == nil
}

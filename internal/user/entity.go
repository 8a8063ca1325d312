// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

// User is the profile record owned by the platform's account subsystem.
// This backend reads it for population and dead-account filtering; the
// referral tables never treat it as anything but the source of truth for
// profile fields.
type User struct {
	ID          string     `db:"id"           json:"id"`
	Name        string     `db:"name"         json:"name"`
	Email       string     `db:"email"        json:"email"`
	PhoneNumber string     `db:"phone_number" json:"phone_number"`
	Region      string     `db:"region"       json:"region"`
	Avatar      *string    `db:"avatar"       json:"avatar,omitempty"`
	Blocked     bool       `db:"blocked"      json:"blocked"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at"   json:"-"`
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// Reachable reports whether the account should surface in referral reads.
func (u *User) Reachable() bool {
	return !u.IsDeleted() && !u.Blocked
}

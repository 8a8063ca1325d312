// AngelaMos | 2026
// entity_test.go

package subscription

import (
	"context"
	"testing"
	"time"
)

func TestIsActive(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{
			"active with future end date",
			Subscription{Status: StatusActive, EndDate: now.Add(24 * time.Hour)},
			true,
		},
		{
			"active but lapsed",
			Subscription{Status: StatusActive, EndDate: now.Add(-time.Hour)},
			false,
		},
		{
			"active ending exactly now",
			Subscription{Status: StatusActive, EndDate: now},
			false,
		},
		{
			"expired status with future end date",
			Subscription{Status: StatusExpired, EndDate: now.Add(24 * time.Hour)},
			false,
		},
		{
			"cancelled",
			Subscription{Status: StatusCancelled, EndDate: now.Add(24 * time.Hour)},
			false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.sub.IsActive(now); got != tc.want {
				t.Errorf("IsActive = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsRegistration(t *testing.T) {
	reg := CategoryRegistration
	feat := CategoryFeature

	if !(&Subscription{Category: nil}).IsRegistration() {
		t.Error("NULL category must count as registration")
	}
	if !(&Subscription{Category: &reg}).IsRegistration() {
		t.Error("registration category must count")
	}
	if (&Subscription{Category: &feat}).IsRegistration() {
		t.Error("feature add-ons must not count as registration")
	}
}

func TestCountActiveRegistration_EmptyIDsSkipsQuery(t *testing.T) {
	// A nil handle would panic if the empty set ever reached SQL.
	repo := NewRepository(nil)

	count, err := repo.CountActiveRegistration(context.Background(), nil)
	if err != nil {
		t.Fatalf("CountActiveRegistration: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestActiveTypesByUsers_EmptyIDsSkipsQuery(t *testing.T) {
	repo := NewRepository(nil)

	types, err := repo.ActiveTypesByUsers(context.Background(), nil)
	if err != nil {
		t.Fatalf("ActiveTypesByUsers: %v", err)
	}
	if len(types) != 0 {
		t.Errorf("types = %v, want empty map", types)
	}
}

// AngelaMos | 2026
// entity_test.go

package user

import (
	"testing"
	"time"
)

func TestReachable(t *testing.T) {
	deleted := time.Now()

	cases := []struct {
		name string
		user User
		want bool
	}{
		{"normal account", User{}, true},
		{"blocked", User{Blocked: true}, false},
		{"soft-deleted", User{DeletedAt: &deleted}, false},
		{"blocked and deleted", User{Blocked: true, DeletedAt: &deleted}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.user.Reachable(); got != tc.want {
				t.Errorf("Reachable = %v, want %v", got, tc.want)
			}
		})
	}
}

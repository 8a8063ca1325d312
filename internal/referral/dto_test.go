// AngelaMos | 2026
// dto_test.go

package referral

import (
	"errors"
	"testing"
	"time"

	"github.com/sikaplatform/referral-backend/internal/core"
)

func TestListParamsValidate(t *testing.T) {
	cases := []struct {
		name    string
		params  ListParams
		wantErr bool
	}{
		{"valid", ListParams{Page: 1, Limit: 20}, false},
		{"zero page", ListParams{Page: 0, Limit: 20}, true},
		{"negative page", ListParams{Page: -3, Limit: 20}, true},
		{"zero limit", ListParams{Page: 1, Limit: 0}, true},
		{"negative limit", ListParams{Page: 1, Limit: -10}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.params.Validate()
			if tc.wantErr {
				if !errors.Is(err, core.ErrInvalidInput) {
					t.Errorf("error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestListParamsOffset(t *testing.T) {
	cases := []struct {
		params ListParams
		want   int
	}{
		{ListParams{Page: 1, Limit: 20}, 0},
		{ListParams{Page: 2, Limit: 20}, 20},
		{ListParams{Page: 5, Limit: 7}, 28},
	}

	for _, tc := range cases {
		if got := tc.params.Offset(); got != tc.want {
			t.Errorf("Offset(%+v) = %d, want %d", tc.params, got, tc.want)
		}
	}
}

func TestListParamsClamp(t *testing.T) {
	p := ListParams{Page: 1, Limit: 500}
	p.Clamp(100)
	if p.Limit != 100 {
		t.Errorf("Limit = %d, want 100", p.Limit)
	}

	p = ListParams{Page: 1, Limit: 50}
	p.Clamp(100)
	if p.Limit != 50 {
		t.Errorf("Limit = %d, want 50 untouched", p.Limit)
	}
}

func TestMonthKey(t *testing.T) {
	if got := monthKey(2026, time.March); got != "2026-03" {
		t.Errorf("monthKey = %q, want 2026-03", got)
	}
	if got := monthKey(2026, time.December); got != "2026-12" {
		t.Errorf("monthKey = %q, want 2026-12", got)
	}
}

func TestValidLevel(t *testing.T) {
	for level := MinLevel; level <= MaxLevel; level++ {
		if !ValidLevel(level) {
			t.Errorf("ValidLevel(%d) = false", level)
		}
	}
	for _, level := range []int{0, -1, 4, 100} {
		if ValidLevel(level) {
			t.Errorf("ValidLevel(%d) = true", level)
		}
	}
}

func TestSnapshotUpdateIsEmpty(t *testing.T) {
	if !(SnapshotUpdate{}).IsEmpty() {
		t.Error("zero patch should be empty")
	}

	name := "x"
	if (SnapshotUpdate{Name: &name}).IsEmpty() {
		t.Error("patch with a field should not be empty")
	}
}

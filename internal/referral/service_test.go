// AngelaMos | 2026
// service_test.go

package referral

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sikaplatform/referral-backend/internal/core"
	"github.com/sikaplatform/referral-backend/internal/subscription"
	"github.com/sikaplatform/referral-backend/internal/user"
)

func newTestService(
	repo *mockRepository,
	subs *mockSubscriptionReader,
	profiles *mockProfileReader,
) *Service {
	if repo == nil {
		repo = &mockRepository{}
	}
	if subs == nil {
		subs = &mockSubscriptionReader{}
	}
	if profiles == nil {
		profiles = &mockProfileReader{}
	}
	return NewService(ServiceConfig{
		Repo:          repo,
		Subscriptions: subs,
		Profiles:      profiles,
	})
}

func edgeAt(userID string, level int, created time.Time) Edge {
	return Edge{
		ReferredUserID: userID,
		ReferralLevel:  level,
		CreatedAt:      created,
	}
}

func TestGetReferralStats_LevelPartition(t *testing.T) {
	now := time.Now()
	march := time.Date(now.Year(), time.March, 10, 0, 0, 0, 0, time.UTC)

	edges := []Edge{
		edgeAt("l1-a", 1, march),
		edgeAt("l1-b", 1, march),
		edgeAt("l1-c", 1, march),
		edgeAt("l1-d", 1, march),
		edgeAt("l1-e", 1, march),
		edgeAt("l2-a", 2, march),
		edgeAt("l2-b", 2, march),
		edgeAt("l2-c", 2, march),
		edgeAt("l3-a", 3, march),
	}

	repo := &mockRepository{
		EdgesFunc: func(ctx context.Context, referrerID string) ([]Edge, error) {
			return edges, nil
		},
	}
	subs := &mockSubscriptionReader{
		Active: map[string]bool{
			"l1-a": true, "l1-b": true, "l1-c": true,
			"l2-a": true,
			"l3-a": true,
		},
	}

	svc := newTestService(repo, subs, nil)

	stats, err := svc.GetReferralStats(context.Background(), "referrer-1")
	if err != nil {
		t.Fatalf("GetReferralStats: %v", err)
	}

	if stats.Level1Count != 5 || stats.Level2Count != 3 || stats.Level3Count != 1 {
		t.Errorf("level counts = %d/%d/%d, want 5/3/1",
			stats.Level1Count, stats.Level2Count, stats.Level3Count)
	}
	if stats.TotalReferrals != 9 {
		t.Errorf("TotalReferrals = %d, want 9", stats.TotalReferrals)
	}
	if stats.Level1ActiveSubscribers != 3 {
		t.Errorf("Level1ActiveSubscribers = %d, want 3",
			stats.Level1ActiveSubscribers)
	}
	if stats.Level2ActiveSubscribers != 1 || stats.Level3ActiveSubscribers != 1 {
		t.Errorf("level 2/3 active = %d/%d, want 1/1",
			stats.Level2ActiveSubscribers, stats.Level3ActiveSubscribers)
	}
	if stats.TotalActiveSubscribers != 5 {
		t.Errorf("TotalActiveSubscribers = %d, want 5",
			stats.TotalActiveSubscribers)
	}
}

func TestGetReferralStats_DenseMonthlySeries(t *testing.T) {
	year := time.Now().Year()
	march := time.Date(year, time.March, 5, 0, 0, 0, 0, time.UTC)
	july := time.Date(year, time.July, 20, 0, 0, 0, 0, time.UTC)
	lastYear := time.Date(year-1, time.July, 20, 0, 0, 0, 0, time.UTC)

	repo := &mockRepository{
		EdgesFunc: func(ctx context.Context, referrerID string) ([]Edge, error) {
			return []Edge{
				edgeAt("u1", 1, march),
				edgeAt("u2", 2, march),
				edgeAt("u3", 1, july),
				edgeAt("u4", 1, lastYear),
			}, nil
		},
	}
	subs := &mockSubscriptionReader{Active: map[string]bool{"u1": true}}

	svc := newTestService(repo, subs, nil)

	stats, err := svc.GetReferralStats(context.Background(), "referrer-1")
	if err != nil {
		t.Fatalf("GetReferralStats: %v", err)
	}

	if len(stats.MonthlyStats) != 12 {
		t.Fatalf("MonthlyStats has %d entries, want 12", len(stats.MonthlyStats))
	}

	for i, month := range stats.MonthlyStats {
		wantKey := fmt.Sprintf("%04d-%02d", year, i+1)
		if month.Month != wantKey {
			t.Errorf("month %d key = %q, want %q", i, month.Month, wantKey)
		}
		if month.MonthName != time.Month(i+1).String() {
			t.Errorf("month %d name = %q, want %q",
				i, month.MonthName, time.Month(i+1).String())
		}
	}

	marchStat := stats.MonthlyStats[2]
	if marchStat.Level1 != 1 || marchStat.Level2 != 1 || marchStat.Total != 2 {
		t.Errorf("march = L1 %d, L2 %d, total %d, want 1/1/2",
			marchStat.Level1, marchStat.Level2, marchStat.Total)
	}
	if marchStat.Level1ActiveSubscribers != 1 ||
		marchStat.TotalActiveSubscribers != 1 {
		t.Errorf("march active = %d/%d, want 1/1",
			marchStat.Level1ActiveSubscribers,
			marchStat.TotalActiveSubscribers)
	}

	julyStat := stats.MonthlyStats[6]
	if julyStat.Level1 != 1 || julyStat.Total != 1 {
		t.Errorf("july = L1 %d, total %d, want 1/1",
			julyStat.Level1, julyStat.Total)
	}

	// The previous year's edge counts toward totals but no month.
	if stats.TotalReferrals != 4 {
		t.Errorf("TotalReferrals = %d, want 4", stats.TotalReferrals)
	}
	janStat := stats.MonthlyStats[0]
	if janStat.Total != 0 || janStat.TotalActiveSubscribers != 0 {
		t.Errorf("january should be all-zero, got %+v", janStat)
	}
}

func TestGetReferralStats_EmptyReferrerIsAllZero(t *testing.T) {
	subs := &mockSubscriptionReader{}
	svc := newTestService(nil, subs, nil)

	stats, err := svc.GetReferralStats(context.Background(), "referrer-1")
	if err != nil {
		t.Fatalf("GetReferralStats: %v", err)
	}

	if stats.TotalReferrals != 0 || stats.TotalActiveSubscribers != 0 {
		t.Errorf("totals = %d/%d, want 0/0",
			stats.TotalReferrals, stats.TotalActiveSubscribers)
	}
	if len(stats.MonthlyStats) != 12 {
		t.Errorf("MonthlyStats has %d entries, want 12", len(stats.MonthlyStats))
	}
	if subs.CallCount != 0 {
		t.Errorf(
			"subscription store queried %d times for empty ID sets, want 0",
			subs.CallCount,
		)
	}
}

func TestGetReferralStats_CountFailureFailsAggregate(t *testing.T) {
	repo := &mockRepository{
		EdgesFunc: func(ctx context.Context, referrerID string) ([]Edge, error) {
			return []Edge{edgeAt("u1", 1, time.Now())}, nil
		},
	}
	subs := &mockSubscriptionReader{
		CountFunc: func(ctx context.Context, userIDs []string) (int, error) {
			return 0, errMockStorage
		},
	}

	svc := newTestService(repo, subs, nil)

	if _, err := svc.GetReferralStats(context.Background(), "referrer-1"); !errors.Is(err, errMockStorage) {
		t.Errorf("error = %v, want wrapped %v", err, errMockStorage)
	}
}

func TestGetReferralStats_RequiresReferrerID(t *testing.T) {
	svc := newTestService(nil, nil, nil)

	if _, err := svc.GetReferralStats(context.Background(), ""); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestSearch_LiveProfileWinsOverSnapshot(t *testing.T) {
	// The snapshot still says "Alice Martin"; the account has since been
	// renamed. The stale snapshot gets the row matched, the live profile
	// is what comes back.
	repo := &mockRepository{
		SearchFunc: func(ctx context.Context, referrerID, term string, levels []int, params ListParams) ([]ReferralRecord, int, error) {
			return []ReferralRecord{{
				ID:               "edge-1",
				ReferrerID:       referrerID,
				ReferredUserID:   "user-1",
				ReferralLevel:    1,
				ReferredUserName: "Alice Martin",
			}}, 1, nil
		},
	}
	profiles := &mockProfileReader{
		Users: map[string]user.User{
			"user-1": {ID: "user-1", Name: "Alice Dupont"},
		},
	}
	subs := &mockSubscriptionReader{
		TypesByUser: map[string][]string{
			"user-1": {subscription.TypeClassique},
		},
	}

	svc := newTestService(repo, subs, profiles)

	results, total, err := svc.Search(
		context.Background(),
		"referrer-1",
		"Martin",
		nil,
		ListParams{Page: 1, Limit: 20},
	)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if total != 1 || len(results) != 1 {
		t.Fatalf("got %d results, total %d, want 1/1", len(results), total)
	}
	if results[0].ReferredUserName != "Alice Martin" {
		t.Errorf("snapshot name = %q, want stale value kept",
			results[0].ReferredUserName)
	}
	if results[0].Profile == nil || results[0].Profile.Name != "Alice Dupont" {
		t.Errorf("profile = %+v, want live name Alice Dupont",
			results[0].Profile)
	}
	if len(results[0].ActiveSubscriptions) != 1 ||
		results[0].ActiveSubscriptions[0] != subscription.TypeClassique {
		t.Errorf("active subscriptions = %v, want [CLASSIQUE]",
			results[0].ActiveSubscriptions)
	}
	if profiles.CallCount != 1 {
		t.Errorf("profile store queried %d times, want 1 batch",
			profiles.CallCount)
	}
}

func TestSearch_UnreachableUsersDroppedButCounted(t *testing.T) {
	deleted := time.Now()

	repo := &mockRepository{
		SearchFunc: func(ctx context.Context, referrerID, term string, levels []int, params ListParams) ([]ReferralRecord, int, error) {
			return []ReferralRecord{
				{ID: "edge-1", ReferredUserID: "alive", ReferralLevel: 1},
				{ID: "edge-2", ReferredUserID: "blocked", ReferralLevel: 1},
				{ID: "edge-3", ReferredUserID: "deleted", ReferralLevel: 2},
			}, 3, nil
		},
	}
	profiles := &mockProfileReader{
		Users: map[string]user.User{
			"alive":   {ID: "alive", Name: "Ok"},
			"blocked": {ID: "blocked", Name: "Blocked", Blocked: true},
			"deleted": {ID: "deleted", Name: "Gone", DeletedAt: &deleted},
		},
	}

	svc := newTestService(repo, nil, profiles)

	results, total, err := svc.Search(
		context.Background(),
		"referrer-1",
		"x",
		nil,
		ListParams{Page: 1, Limit: 20},
	)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(results) != 1 || results[0].ReferredUserID != "alive" {
		t.Errorf("results = %+v, want only the reachable user", results)
	}
	if total != 3 {
		t.Errorf("total = %d, want edge-based count 3 kept", total)
	}
}

func TestSearch_RejectsBlankTerm(t *testing.T) {
	svc := newTestService(nil, nil, nil)

	_, _, err := svc.Search(
		context.Background(),
		"referrer-1",
		"   ",
		nil,
		ListParams{Page: 1, Limit: 20},
	)
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestCreate_RejectsOutOfRangeLevel(t *testing.T) {
	svc := newTestService(nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateReferralRequest{
		ReferrerID:     "a",
		ReferredUserID: "b",
		ReferralLevel:  4,
	})
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestCreate_AssignsID(t *testing.T) {
	var stored *ReferralRecord
	repo := &mockRepository{
		CreateFunc: func(ctx context.Context, rec *ReferralRecord) error {
			stored = rec
			return nil
		},
	}

	svc := newTestService(repo, nil, nil)

	rec, err := svc.Create(context.Background(), CreateReferralRequest{
		ReferrerID:     "referrer-1",
		ReferredUserID: "user-1",
		ReferralLevel:  2,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == "" {
		t.Error("record ID not assigned")
	}
	if stored != rec {
		t.Error("record not passed through to repository")
	}
}

func TestArchiveByUserID_ReportsModifiedEdges(t *testing.T) {
	archived := false
	repo := &mockRepository{
		ArchiveFunc: func(ctx context.Context, userID string) ([]string, error) {
			if archived {
				return nil, nil
			}
			archived = true
			return []string{"ref-1", "ref-1", "ref-2"}, nil
		},
	}

	svc := newTestService(repo, nil, nil)

	modified, err := svc.ArchiveByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ArchiveByUserID: %v", err)
	}
	if modified != 3 {
		t.Errorf("modified = %d, want 3", modified)
	}

	// Second call finds nothing left to archive.
	modified, err = svc.ArchiveByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ArchiveByUserID (repeat): %v", err)
	}
	if modified != 0 {
		t.Errorf("repeat modified = %d, want 0", modified)
	}
}

func TestUpdateDenormalizedUserFields_EmptyPatchIsNoOp(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestService(repo, nil, nil)

	modified, err := svc.UpdateDenormalizedUserFields(
		context.Background(),
		"user-1",
		SnapshotUpdate{},
	)
	if err != nil {
		t.Fatalf("UpdateDenormalizedUserFields: %v", err)
	}
	if modified != 0 {
		t.Errorf("modified = %d, want 0", modified)
	}
	if repo.UpdateSnapshotCalls != 0 {
		t.Errorf("repository called %d times for empty patch, want 0",
			repo.UpdateSnapshotCalls)
	}
}

func TestUpdateDenormalizedUserFields_PartialPatch(t *testing.T) {
	name := "New Name"
	var got SnapshotUpdate
	repo := &mockRepository{
		UpdateSnapshotFunc: func(ctx context.Context, userID string, patch SnapshotUpdate) ([]string, error) {
			got = patch
			return []string{"ref-1"}, nil
		},
	}

	svc := newTestService(repo, nil, nil)

	modified, err := svc.UpdateDenormalizedUserFields(
		context.Background(),
		"user-1",
		SnapshotUpdate{Name: &name},
	)
	if err != nil {
		t.Fatalf("UpdateDenormalizedUserFields: %v", err)
	}
	if modified != 1 {
		t.Errorf("modified = %d, want 1", modified)
	}
	if got.Name == nil || *got.Name != name {
		t.Errorf("patch name = %v, want %q", got.Name, name)
	}
	if got.Email != nil || got.PhoneNumber != nil {
		t.Error("untouched fields leaked into the patch")
	}
}

func TestListByReferrer_RejectsInvalidListArgs(t *testing.T) {
	svc := newTestService(nil, nil, nil)

	cases := []struct {
		name   string
		level  int
		params ListParams
	}{
		{"zero page", 1, ListParams{Page: 0, Limit: 10}},
		{"zero limit", 1, ListParams{Page: 1, Limit: 0}},
		{"level too high", 4, ListParams{Page: 1, Limit: 10}},
		{"negative level", -1, ListParams{Page: 1, Limit: 10}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.ListByReferrer(
				context.Background(),
				"referrer-1",
				tc.level,
				tc.params,
				SortRecent,
			)
			if !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestListEligible_PinnedToDirectReferrals(t *testing.T) {
	var gotLevel int
	repo := &mockRepository{
		ListFilteredFunc: func(ctx context.Context, referrerID string, level int, params ListParams, filters ...ListFilter) ([]PopulatedReferral, int, error) {
			gotLevel = level
			return nil, 0, nil
		},
	}

	svc := newTestService(repo, nil, nil)

	_, _, err := svc.ListEligible(
		context.Background(),
		"referrer-1",
		ListParams{Page: 1, Limit: 20},
		SubTypeAll,
		nil,
		nil,
	)
	if err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	if gotLevel != MinLevel {
		t.Errorf("level = %d, want %d", gotLevel, MinLevel)
	}
}

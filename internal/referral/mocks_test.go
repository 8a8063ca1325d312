// AngelaMos | 2026
// mocks_test.go

package referral

import (
	"context"
	"errors"
	"sync"

	"github.com/sikaplatform/referral-backend/internal/user"
)

var (
	errMockStorage  = errors.New("mock storage error")
	errMockProfiles = errors.New("mock profile error")
)

type mockRepository struct {
	CreateFunc          func(ctx context.Context, rec *ReferralRecord) error
	CreateManyFunc      func(ctx context.Context, recs []ReferralRecord) ([]ReferralRecord, error)
	EdgesFunc           func(ctx context.Context, referrerID string) ([]Edge, error)
	ListFunc            func(ctx context.Context, referrerID string, level int, params ListParams, sort Sort) ([]ReferralRecord, int, error)
	ListPopulatedFunc   func(ctx context.Context, referrerID string, level int, params ListParams, sort Sort) ([]PopulatedReferral, int, error)
	SearchFunc          func(ctx context.Context, referrerID, term string, levels []int, params ListParams) ([]ReferralRecord, int, error)
	ListFilteredFunc    func(ctx context.Context, referrerID string, level int, params ListParams, filters ...ListFilter) ([]PopulatedReferral, int, error)
	ArchiveFunc         func(ctx context.Context, userID string) ([]string, error)
	UnarchiveFunc       func(ctx context.Context, userID string) ([]string, error)
	UpdateSnapshotFunc  func(ctx context.Context, userID string, patch SnapshotUpdate) ([]string, error)
	ArchiveCalls        int
	UpdateSnapshotCalls int
}

func (m *mockRepository) Create(ctx context.Context, rec *ReferralRecord) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, rec)
	}
	return nil
}

func (m *mockRepository) CreateMany(ctx context.Context, recs []ReferralRecord) ([]ReferralRecord, error) {
	if m.CreateManyFunc != nil {
		return m.CreateManyFunc(ctx, recs)
	}
	return recs, nil
}

func (m *mockRepository) EdgesByReferrer(ctx context.Context, referrerID string) ([]Edge, error) {
	if m.EdgesFunc != nil {
		return m.EdgesFunc(ctx, referrerID)
	}
	return nil, nil
}

func (m *mockRepository) List(ctx context.Context, referrerID string, level int, params ListParams, sort Sort) ([]ReferralRecord, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, referrerID, level, params, sort)
	}
	return nil, 0, nil
}

func (m *mockRepository) ListPopulated(ctx context.Context, referrerID string, level int, params ListParams, sort Sort) ([]PopulatedReferral, int, error) {
	if m.ListPopulatedFunc != nil {
		return m.ListPopulatedFunc(ctx, referrerID, level, params, sort)
	}
	return nil, 0, nil
}

func (m *mockRepository) Search(ctx context.Context, referrerID, term string, levels []int, params ListParams) ([]ReferralRecord, int, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, referrerID, term, levels, params)
	}
	return nil, 0, nil
}

func (m *mockRepository) ListFiltered(ctx context.Context, referrerID string, level int, params ListParams, filters ...ListFilter) ([]PopulatedReferral, int, error) {
	if m.ListFilteredFunc != nil {
		return m.ListFilteredFunc(ctx, referrerID, level, params, filters...)
	}
	return nil, 0, nil
}

func (m *mockRepository) ArchiveByUser(ctx context.Context, userID string) ([]string, error) {
	m.ArchiveCalls++
	if m.ArchiveFunc != nil {
		return m.ArchiveFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockRepository) UnarchiveByUser(ctx context.Context, userID string) ([]string, error) {
	if m.UnarchiveFunc != nil {
		return m.UnarchiveFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockRepository) UpdateSnapshot(ctx context.Context, userID string, patch SnapshotUpdate) ([]string, error) {
	m.UpdateSnapshotCalls++
	if m.UpdateSnapshotFunc != nil {
		return m.UpdateSnapshotFunc(ctx, userID, patch)
	}
	return nil, nil
}

// mockSubscriptionReader answers conversion counts from a fixed set of
// active user IDs. Safe for the aggregator's concurrent calls.
type mockSubscriptionReader struct {
	mu          sync.Mutex
	Active      map[string]bool
	TypesByUser map[string][]string
	CountFunc   func(ctx context.Context, userIDs []string) (int, error)
	CallCount   int
}

func (m *mockSubscriptionReader) CountActiveRegistration(ctx context.Context, userIDs []string) (int, error) {
	m.mu.Lock()
	m.CallCount++
	m.mu.Unlock()

	if m.CountFunc != nil {
		return m.CountFunc(ctx, userIDs)
	}

	count := 0
	for _, id := range userIDs {
		if m.Active[id] {
			count++
		}
	}
	return count, nil
}

func (m *mockSubscriptionReader) ActiveTypesByUsers(ctx context.Context, userIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(userIDs))
	for _, id := range userIDs {
		if types, ok := m.TypesByUser[id]; ok {
			result[id] = types
		}
	}
	return result, nil
}

type mockProfileReader struct {
	Users       map[string]user.User
	GetByIDsErr error
	CallCount   int
	LastIDs     []string
}

func (m *mockProfileReader) GetByIDs(ctx context.Context, ids []string) ([]user.User, error) {
	m.CallCount++
	m.LastIDs = ids

	if m.GetByIDsErr != nil {
		return nil, m.GetByIDsErr
	}

	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.Users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

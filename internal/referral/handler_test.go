// AngelaMos | 2026
// handler_test.go

package referral

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func passThrough(next http.Handler) http.Handler { return next }

func newTestRouter(repo *mockRepository) *chi.Mux {
	svc := newTestService(repo, nil, nil)
	handler := NewHandler(HandlerConfig{
		Service:         svc,
		DefaultPageSize: 20,
		MaxPageSize:     100,
	})

	router := chi.NewRouter()
	handler.RegisterRoutes(router, passThrough, passThrough)
	handler.RegisterInternalRoutes(router, passThrough)
	return router
}

func TestListByReferrer_DefaultsPagination(t *testing.T) {
	var gotParams ListParams
	var gotLevel int
	repo := &mockRepository{
		ListFunc: func(ctx context.Context, referrerID string, level int, params ListParams, sort Sort) ([]ReferralRecord, int, error) {
			gotParams = params
			gotLevel = level
			return nil, 0, nil
		},
	}
	router := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/referrals/referrer-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotParams.Page != 1 || gotParams.Limit != 20 {
		t.Errorf("params = %+v, want page 1 limit 20", gotParams)
	}
	if gotLevel != 0 {
		t.Errorf("level = %d, want 0 (all levels)", gotLevel)
	}
}

func TestListByReferrer_CapsPageSize(t *testing.T) {
	var gotParams ListParams
	repo := &mockRepository{
		ListFunc: func(ctx context.Context, referrerID string, level int, params ListParams, sort Sort) ([]ReferralRecord, int, error) {
			gotParams = params
			return nil, 0, nil
		},
	}
	router := newTestRouter(repo)

	req := httptest.NewRequest(
		http.MethodGet,
		"/referrals/referrer-1?limit=5000",
		nil,
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotParams.Limit != 100 {
		t.Errorf("limit = %d, want capped at 100", gotParams.Limit)
	}
}

func TestListByReferrer_RejectsInvalidPagination(t *testing.T) {
	router := newTestRouter(&mockRepository{})

	for _, query := range []string{"?page=0", "?limit=-1", "?level=9"} {
		req := httptest.NewRequest(
			http.MethodGet,
			"/referrals/referrer-1"+query,
			nil,
		)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", query, rec.Code)
		}
	}
}

func TestListByReferrer_PopulateSwitchesQuery(t *testing.T) {
	populated := false
	repo := &mockRepository{
		ListPopulatedFunc: func(ctx context.Context, referrerID string, level int, params ListParams, sort Sort) ([]PopulatedReferral, int, error) {
			populated = true
			return nil, 0, nil
		},
	}
	router := newTestRouter(repo)

	req := httptest.NewRequest(
		http.MethodGet,
		"/referrals/referrer-1?populate=true&level=2",
		nil,
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !populated {
		t.Error("populate=true did not use the joined query")
	}
}

func TestSearch_RequiresTerm(t *testing.T) {
	router := newTestRouter(&mockRepository{})

	req := httptest.NewRequest(
		http.MethodGet,
		"/referrals/referrer-1/search",
		nil,
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetStats_ReturnsEnvelope(t *testing.T) {
	router := newTestRouter(&mockRepository{})

	req := httptest.NewRequest(
		http.MethodGet,
		"/referrals/referrer-1/stats",
		nil,
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Success bool          `json:"success"`
		Data    StatsResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success {
		t.Error("success = false")
	}
	if body.Data.ReferrerID != "referrer-1" {
		t.Errorf("referrer = %q", body.Data.ReferrerID)
	}
	if len(body.Data.MonthlyStats) != 12 {
		t.Errorf("monthly series has %d entries, want 12",
			len(body.Data.MonthlyStats))
	}
}

func TestCreate_ValidatesBody(t *testing.T) {
	router := newTestRouter(&mockRepository{})

	body := `{"referrer_id":"not-a-uuid","referred_user_id":"x","referral_level":1}`
	req := httptest.NewRequest(
		http.MethodPost,
		"/internal/referrals/",
		strings.NewReader(body),
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreate_Succeeds(t *testing.T) {
	router := newTestRouter(&mockRepository{})

	body := `{
		"referrer_id": "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		"referred_user_id": "550e8400-e29b-41d4-a716-446655440000",
		"referral_level": 1,
		"referred_user_name": "Alice"
	}`
	req := httptest.NewRequest(
		http.MethodPost,
		"/internal/referrals/",
		strings.NewReader(body),
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestArchiveUser_ReturnsModifiedCount(t *testing.T) {
	repo := &mockRepository{
		ArchiveFunc: func(ctx context.Context, userID string) ([]string, error) {
			return []string{"ref-1", "ref-2"}, nil
		},
	}
	router := newTestRouter(repo)

	req := httptest.NewRequest(
		http.MethodPost,
		"/internal/referrals/users/user-1/archive",
		nil,
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Data LifecycleResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Modified != 2 {
		t.Errorf("modified = %d, want 2", body.Data.Modified)
	}
}

func TestUpdateSnapshot_EmptyPatchReturnsZero(t *testing.T) {
	repo := &mockRepository{}
	router := newTestRouter(repo)

	req := httptest.NewRequest(
		http.MethodPatch,
		"/internal/referrals/users/user-1/snapshot",
		strings.NewReader(`{}`),
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if repo.UpdateSnapshotCalls != 0 {
		t.Errorf("repository called %d times, want 0", repo.UpdateSnapshotCalls)
	}
}

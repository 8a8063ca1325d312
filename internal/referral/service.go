// AngelaMos | 2026
// service.go

package referral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/sikaplatform/referral-backend/internal/core"
	"github.com/sikaplatform/referral-backend/internal/user"
)

// SubscriptionReader is the contract required from the subscription
// subsystem: conversion counts for the stats aggregator and per-user active
// types for search decoration.
type SubscriptionReader interface {
	CountActiveRegistration(ctx context.Context, userIDs []string) (int, error)
	ActiveTypesByUsers(
		ctx context.Context,
		userIDs []string,
	) (map[string][]string, error)
}

// ProfileReader is the contract required from the account subsystem.
type ProfileReader interface {
	GetByIDs(ctx context.Context, ids []string) ([]user.User, error)
}

type ServiceConfig struct {
	Repo          Repository
	Subscriptions SubscriptionReader
	Profiles      ProfileReader
	Cache         *redis.Client
	CacheTTL      time.Duration
	Logger        *slog.Logger
}

type Service struct {
	repo     Repository
	subs     SubscriptionReader
	profiles ProfileReader
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}

	return &Service{
		repo:     cfg.Repo,
		subs:     cfg.Subscriptions,
		profiles: cfg.Profiles,
		cache:    cfg.Cache,
		cacheTTL: cacheTTL,
		logger:   logger.With("component", "referral"),
	}
}

func (s *Service) Create(
	ctx context.Context,
	req CreateReferralRequest,
) (*ReferralRecord, error) {
	rec, err := recordFromRequest(req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, rec.ReferrerID)
	return rec, nil
}

func (s *Service) CreateMany(
	ctx context.Context,
	req CreateManyRequest,
) ([]ReferralRecord, error) {
	if len(req.Referrals) == 0 {
		return nil, fmt.Errorf(
			"no referrals to create: %w",
			core.ErrInvalidInput,
		)
	}

	recs := make([]ReferralRecord, 0, len(req.Referrals))
	referrers := make([]string, 0, len(req.Referrals))
	for _, r := range req.Referrals {
		rec, err := recordFromRequest(r)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
		referrers = append(referrers, rec.ReferrerID)
	}

	inserted, err := s.repo.CreateMany(ctx, recs)
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, referrers...)
	return inserted, nil
}

func recordFromRequest(req CreateReferralRequest) (*ReferralRecord, error) {
	if req.ReferrerID == "" || req.ReferredUserID == "" {
		return nil, fmt.Errorf(
			"referrer and referred user are required: %w",
			core.ErrInvalidInput,
		)
	}
	if !ValidLevel(req.ReferralLevel) {
		return nil, fmt.Errorf(
			"referral level %d out of range: %w",
			req.ReferralLevel,
			core.ErrInvalidInput,
		)
	}

	return &ReferralRecord{
		ID:                uuid.New().String(),
		ReferrerID:        req.ReferrerID,
		ReferredUserID:    req.ReferredUserID,
		ReferralLevel:     req.ReferralLevel,
		ReferredUserName:  req.ReferredUserName,
		ReferredUserEmail: req.ReferredUserEmail,
		ReferredUserPhone: req.ReferredUserPhone,
	}, nil
}

// GetReferralStats aggregates a referrer's full network: per-level totals,
// per-level active-subscriber counts, and a dense Jan-Dec series for the
// current year. Any failed sub-count fails the whole aggregate; a partially
// populated dashboard is worse than an error.
func (s *Service) GetReferralStats(
	ctx context.Context,
	referrerID string,
) (*StatsResponse, error) {
	if referrerID == "" {
		return nil, fmt.Errorf(
			"referrer id is required: %w",
			core.ErrInvalidInput,
		)
	}

	if cached := s.cachedStats(ctx, referrerID); cached != nil {
		return cached, nil
	}

	edges, err := s.repo.EdgesByReferrer(ctx, referrerID)
	if err != nil {
		return nil, err
	}

	year := time.Now().Year()

	var byLevel [MaxLevel + 1][]string
	var byMonth [12][MaxLevel + 1][]string
	for _, e := range edges {
		if !ValidLevel(e.ReferralLevel) {
			continue
		}
		byLevel[e.ReferralLevel] = append(
			byLevel[e.ReferralLevel],
			e.ReferredUserID,
		)
		if e.CreatedAt.Year() == year {
			m := int(e.CreatedAt.Month()) - 1
			byMonth[m][e.ReferralLevel] = append(
				byMonth[m][e.ReferralLevel],
				e.ReferredUserID,
			)
		}
	}

	monthly := make([]MonthlyStat, 12)
	for m := range monthly {
		month := time.Month(m + 1)
		monthly[m] = MonthlyStat{
			Month:     monthKey(year, month),
			MonthName: month.String(),
			Level1:    len(byMonth[m][1]),
			Level2:    len(byMonth[m][2]),
			Level3:    len(byMonth[m][3]),
		}
		monthly[m].Total = monthly[m].Level1 +
			monthly[m].Level2 +
			monthly[m].Level3
	}

	var activeByLevel [MaxLevel + 1]int

	g, gctx := errgroup.WithContext(ctx)
	for level := MinLevel; level <= MaxLevel; level++ {
		g.Go(func() error {
			count, err := s.countActive(gctx, byLevel[level])
			if err != nil {
				return err
			}
			activeByLevel[level] = count
			return nil
		})
	}

	for m := range monthly {
		g.Go(func() error {
			var counts [MaxLevel + 1]int
			for level := MinLevel; level <= MaxLevel; level++ {
				count, err := s.countActive(gctx, byMonth[m][level])
				if err != nil {
					return err
				}
				counts[level] = count
			}

			monthly[m].Level1ActiveSubscribers = counts[1]
			monthly[m].Level2ActiveSubscribers = counts[2]
			monthly[m].Level3ActiveSubscribers = counts[3]
			monthly[m].TotalActiveSubscribers = counts[1] +
				counts[2] +
				counts[3]
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate referral stats: %w", err)
	}

	resp := &StatsResponse{
		ReferrerID:              referrerID,
		Level1Count:             len(byLevel[1]),
		Level2Count:             len(byLevel[2]),
		Level3Count:             len(byLevel[3]),
		Level1ActiveSubscribers: activeByLevel[1],
		Level2ActiveSubscribers: activeByLevel[2],
		Level3ActiveSubscribers: activeByLevel[3],
		MonthlyStats:            monthly,
	}
	resp.TotalReferrals = resp.Level1Count +
		resp.Level2Count +
		resp.Level3Count
	resp.TotalActiveSubscribers = activeByLevel[1] +
		activeByLevel[2] +
		activeByLevel[3]

	s.storeStats(ctx, referrerID, resp)
	return resp, nil
}

// countActive short-circuits empty ID sets so no empty IN-list query is
// ever issued.
func (s *Service) countActive(
	ctx context.Context,
	userIDs []string,
) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	return s.subs.CountActiveRegistration(ctx, userIDs)
}

// ListByReferrer pages a referrer's edges. level 0 spans all levels.
func (s *Service) ListByReferrer(
	ctx context.Context,
	referrerID string,
	level int,
	params ListParams,
	sort Sort,
) ([]ReferralRecord, int, error) {
	if err := s.checkListArgs(referrerID, level, params); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, referrerID, level, params, sort)
}

// ListByReferrerPopulated is ListByReferrer with the live profile joined
// in. Edges pointing at deleted or blocked accounts disappear from both
// the page and the total.
func (s *Service) ListByReferrerPopulated(
	ctx context.Context,
	referrerID string,
	level int,
	params ListParams,
	sort Sort,
) ([]PopulatedReferral, int, error) {
	if err := s.checkListArgs(referrerID, level, params); err != nil {
		return nil, 0, err
	}
	return s.repo.ListPopulated(ctx, referrerID, level, params, sort)
}

// Search runs the fast snapshot-only match, then resolves live profiles
// for the page in a single batch. Unreachable users are dropped from the
// page but remain in the total, which stays edge-based.
func (s *Service) Search(
	ctx context.Context,
	referrerID, term string,
	levels []int,
	params ListParams,
) ([]SearchResult, int, error) {
	if referrerID == "" {
		return nil, 0, fmt.Errorf(
			"referrer id is required: %w",
			core.ErrInvalidInput,
		)
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, 0, fmt.Errorf(
			"search term is required: %w",
			core.ErrInvalidInput,
		)
	}
	if err := params.Validate(); err != nil {
		return nil, 0, err
	}

	records, total, err := s.repo.Search(ctx, referrerID, term, levels, params)
	if err != nil {
		return nil, 0, err
	}
	if len(records) == 0 {
		return []SearchResult{}, total, nil
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ReferredUserID)
	}

	profiles, err := s.profiles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	activeTypes, err := s.subs.ActiveTypesByUsers(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	byID := make(map[string]*user.User, len(profiles))
	for i := range profiles {
		byID[profiles[i].ID] = &profiles[i]
	}

	results := make([]SearchResult, 0, len(records))
	for _, rec := range records {
		profile, ok := byID[rec.ReferredUserID]
		if !ok || !profile.Reachable() {
			s.logger.Warn("search dropped edge with unreachable user",
				"referral_id", rec.ID,
				"referred_user_id", rec.ReferredUserID,
			)
			continue
		}
		results = append(results, SearchResult{
			ReferralRecord:      rec,
			Profile:             profile,
			ActiveSubscriptions: activeTypes[rec.ReferredUserID],
		})
	}

	return results, total, nil
}

// ListWithSubType filters one level of a referrer's network by
// subscription status, optionally bounded by the referred users' account
// creation dates.
func (s *Service) ListWithSubType(
	ctx context.Context,
	referrerID string,
	level int,
	params ListParams,
	subType string,
	since, until *time.Time,
) ([]PopulatedReferral, int, error) {
	if !ValidLevel(level) {
		return nil, 0, fmt.Errorf(
			"referral level %d out of range: %w",
			level,
			core.ErrInvalidInput,
		)
	}
	if err := s.checkListArgs(referrerID, level, params); err != nil {
		return nil, 0, err
	}

	return s.repo.ListFiltered(ctx, referrerID, level, params,
		SubTypeFilter{SubType: subType},
		DateRangeFilter{Since: since, Until: until},
	)
}

// ListEligible is the campaign-eligibility variant of ListWithSubType.
// It is pinned to direct (level-1) referrals: indirect referrals are not
// campaign targets.
func (s *Service) ListEligible(
	ctx context.Context,
	referrerID string,
	params ListParams,
	subType string,
	since, until *time.Time,
) ([]PopulatedReferral, int, error) {
	return s.ListWithSubType(
		ctx,
		referrerID,
		MinLevel,
		params,
		subType,
		since,
		until,
	)
}

// ArchiveByUserID soft-deletes every edge touching the user, as referrer
// or referred. Re-running against an already archived set modifies zero
// rows.
func (s *Service) ArchiveByUserID(
	ctx context.Context,
	userID string,
) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf(
			"user id is required: %w",
			core.ErrInvalidInput,
		)
	}

	referrers, err := s.repo.ArchiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.invalidateStats(ctx, append(referrers, userID)...)
	return int64(len(referrers)), nil
}

func (s *Service) UnarchiveByUserID(
	ctx context.Context,
	userID string,
) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf(
			"user id is required: %w",
			core.ErrInvalidInput,
		)
	}

	referrers, err := s.repo.UnarchiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.invalidateStats(ctx, append(referrers, userID)...)
	return int64(len(referrers)), nil
}

// UpdateDenormalizedUserFields propagates profile changes into the search
// snapshot on every edge referring to the user. A call with no fields is a
// no-op, not an error.
func (s *Service) UpdateDenormalizedUserFields(
	ctx context.Context,
	userID string,
	patch SnapshotUpdate,
) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf(
			"user id is required: %w",
			core.ErrInvalidInput,
		)
	}
	if patch.IsEmpty() {
		return 0, nil
	}

	referrers, err := s.repo.UpdateSnapshot(ctx, userID, patch)
	if err != nil {
		return 0, err
	}

	s.invalidateStats(ctx, referrers...)
	return int64(len(referrers)), nil
}

func (s *Service) checkListArgs(
	referrerID string,
	level int,
	params ListParams,
) error {
	if referrerID == "" {
		return fmt.Errorf(
			"referrer id is required: %w",
			core.ErrInvalidInput,
		)
	}
	if level != 0 && !ValidLevel(level) {
		return fmt.Errorf(
			"referral level %d out of range: %w",
			level,
			core.ErrInvalidInput,
		)
	}
	return params.Validate()
}

func statsCacheKey(referrerID string) string {
	return "referral:stats:" + referrerID
}

func (s *Service) cachedStats(
	ctx context.Context,
	referrerID string,
) *StatsResponse {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.Get(ctx, statsCacheKey(referrerID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Debug("stats cache read failed", "error", err)
		}
		return nil
	}

	var resp StatsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		s.logger.Debug("stats cache entry corrupt", "error", err)
		return nil
	}

	return &resp
}

func (s *Service) storeStats(
	ctx context.Context,
	referrerID string,
	resp *StatsResponse,
) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return
	}

	if err := s.cache.Set(
		ctx,
		statsCacheKey(referrerID),
		data,
		s.cacheTTL,
	).Err(); err != nil {
		s.logger.Debug("stats cache write failed", "error", err)
	}
}

func (s *Service) invalidateStats(ctx context.Context, referrerIDs ...string) {
	if s.cache == nil || len(referrerIDs) == 0 {
		return
	}

	seen := make(map[string]struct{}, len(referrerIDs))
	keys := make([]string, 0, len(referrerIDs))
	for _, id := range referrerIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, statsCacheKey(id))
	}

	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Debug("stats cache invalidation failed", "error", err)
	}
}

// AngelaMos | 2026
// repository.go

package referral

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sikaplatform/referral-backend/internal/core"
)

type Repository interface {
	Create(ctx context.Context, rec *ReferralRecord) error
	CreateMany(
		ctx context.Context,
		recs []ReferralRecord,
	) ([]ReferralRecord, error)

	// EdgesByReferrer loads every non-archived edge of a referrer. The
	// stats aggregator needs the full set to produce exact counts; fan-out
	// is capped in practice.
	EdgesByReferrer(ctx context.Context, referrerID string) ([]Edge, error)

	// List pages non-archived edges without touching the users table.
	// level 0 means all levels. The count is exact over the edge set.
	List(
		ctx context.Context,
		referrerID string,
		level int,
		params ListParams,
		sort Sort,
	) ([]ReferralRecord, int, error)

	// ListPopulated joins the live profile and drops edges whose referred
	// user is missing, soft-deleted or blocked. Count and data use the
	// identical join predicate, so they can never disagree.
	ListPopulated(
		ctx context.Context,
		referrerID string,
		level int,
		params ListParams,
		sort Sort,
	) ([]PopulatedReferral, int, error)

	// Search matches the denormalized snapshot fields only. The count is
	// edge-based and deliberately approximate: rows dropped later for
	// unreachable users still count. That asymmetry with ListPopulated is
	// the documented price of keeping search off the users table.
	Search(
		ctx context.Context,
		referrerID, term string,
		levels []int,
		params ListParams,
	) ([]ReferralRecord, int, error)

	// ListFiltered pages reachable referred users through the composed
	// filter plan (subscription status, registration date bounds).
	ListFiltered(
		ctx context.Context,
		referrerID string,
		level int,
		params ListParams,
		filters ...ListFilter,
	) ([]PopulatedReferral, int, error)

	// ArchiveByUser / UnarchiveByUser flip every edge touching the user,
	// as referrer or referred, in one statement. Both return the referrer
	// ID of each modified edge; a second identical call modifies nothing.
	ArchiveByUser(ctx context.Context, userID string) ([]string, error)
	UnarchiveByUser(ctx context.Context, userID string) ([]string, error)

	// UpdateSnapshot pushes changed profile fields into every edge where
	// the user is the referred party. This is the only sanctioned write
	// path for the denormalized columns.
	UpdateSnapshot(
		ctx context.Context,
		userID string,
		patch SnapshotUpdate,
	) ([]string, error)
}

const edgeColumns = `r.id, r.referrer_id, r.referred_user_id,
		r.referral_level, r.referred_user_name, r.referred_user_email,
		r.referred_user_phone, r.archived, r.archived_at, r.created_at,
		r.updated_at`

const populatedColumns = edgeColumns + `,
		u.name AS user_name, u.email AS user_email,
		u.phone_number AS user_phone, u.region AS user_region,
		u.avatar AS user_avatar, u.created_at AS user_created_at`

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, rec *ReferralRecord) error {
	query := `
		INSERT INTO referral_records (
			id, referrer_id, referred_user_id, referral_level,
			referred_user_name, referred_user_email, referred_user_phone
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, rec, query,
		rec.ID,
		rec.ReferrerID,
		rec.ReferredUserID,
		rec.ReferralLevel,
		rec.ReferredUserName,
		rec.ReferredUserEmail,
		rec.ReferredUserPhone,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create referral: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create referral: %w", err)
	}

	return nil
}

func (r *repository) CreateMany(
	ctx context.Context,
	recs []ReferralRecord,
) ([]ReferralRecord, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	var values strings.Builder
	args := make([]any, 0, len(recs)*7)
	for i, rec := range recs {
		if i > 0 {
			values.WriteString(", ")
		}
		base := i * 7
		values.WriteString("(")
		for j := 1; j <= 7; j++ {
			if j > 1 {
				values.WriteString(", ")
			}
			values.WriteString("$" + strconv.Itoa(base+j))
		}
		values.WriteString(")")

		args = append(args,
			rec.ID,
			rec.ReferrerID,
			rec.ReferredUserID,
			rec.ReferralLevel,
			rec.ReferredUserName,
			rec.ReferredUserEmail,
			rec.ReferredUserPhone,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO referral_records (
			id, referrer_id, referred_user_id, referral_level,
			referred_user_name, referred_user_email, referred_user_phone
		)
		VALUES %s
		RETURNING id, referrer_id, referred_user_id, referral_level,
			referred_user_name, referred_user_email, referred_user_phone,
			archived, archived_at, created_at, updated_at`,
		values.String())

	var inserted []ReferralRecord
	if err := r.db.SelectContext(ctx, &inserted, query, args...); err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf(
				"create referrals: %w",
				core.ErrDuplicateKey,
			)
		}
		return nil, fmt.Errorf("create referrals: %w", err)
	}

	return inserted, nil
}

func (r *repository) EdgesByReferrer(
	ctx context.Context,
	referrerID string,
) ([]Edge, error) {
	query := `
		SELECT referred_user_id, referral_level, created_at
		FROM referral_records
		WHERE referrer_id = $1 AND archived = FALSE`

	var edges []Edge
	if err := r.db.SelectContext(ctx, &edges, query, referrerID); err != nil {
		return nil, fmt.Errorf("load referrer edges: %w", err)
	}

	return edges, nil
}

func (r *repository) List(
	ctx context.Context,
	referrerID string,
	level int,
	params ListParams,
	sort Sort,
) ([]ReferralRecord, int, error) {
	plan := newQueryPlan(referrerID, level)
	if sort == SortName {
		plan.orderBy = "LOWER(r.referred_user_name) ASC"
	}

	total, err := r.runCount(ctx, plan)
	if err != nil {
		return nil, 0, fmt.Errorf("count referrals: %w", err)
	}

	query, args, err := plan.selectQuery(
		edgeColumns,
		params.Limit,
		params.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}

	var records []ReferralRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list referrals: %w", err)
	}

	return records, total, nil
}

func (r *repository) ListPopulated(
	ctx context.Context,
	referrerID string,
	level int,
	params ListParams,
	sort Sort,
) ([]PopulatedReferral, int, error) {
	plan := newQueryPlan(referrerID, level)
	plan.joinUsers = true
	if sort == SortName {
		plan.orderBy = "LOWER(u.name) ASC"
	}

	total, err := r.runCount(ctx, plan)
	if err != nil {
		return nil, 0, fmt.Errorf("count populated referrals: %w", err)
	}

	query, args, err := plan.selectQuery(
		populatedColumns,
		params.Limit,
		params.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}

	var records []PopulatedReferral
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list populated referrals: %w", err)
	}

	return records, total, nil
}

func (r *repository) Search(
	ctx context.Context,
	referrerID, term string,
	levels []int,
	params ListParams,
) ([]ReferralRecord, int, error) {
	plan := newQueryPlan(referrerID, 0)

	if len(levels) > 0 {
		placeholders := make([]string, len(levels))
		args := make([]any, len(levels))
		for i, level := range levels {
			if !ValidLevel(level) {
				return nil, 0, fmt.Errorf(
					"referral level %d out of range: %w",
					level,
					core.ErrInvalidInput,
				)
			}
			placeholders[i] = "?"
			args[i] = level
		}
		plan.where(
			"r.referral_level IN ("+strings.Join(placeholders, ", ")+")",
			args...,
		)
	}

	pattern := "%" + escapeLike(term) + "%"
	plan.where(
		`(r.referred_user_name ILIKE ?
			OR r.referred_user_email ILIKE ?
			OR r.referred_user_phone ILIKE ?)`,
		pattern, pattern, pattern,
	)

	total, err := r.runCount(ctx, plan)
	if err != nil {
		return nil, 0, fmt.Errorf("count search matches: %w", err)
	}

	query, args, err := plan.selectQuery(
		edgeColumns,
		params.Limit,
		params.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}

	var records []ReferralRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("search referrals: %w", err)
	}

	return records, total, nil
}

func (r *repository) ListFiltered(
	ctx context.Context,
	referrerID string,
	level int,
	params ListParams,
	filters ...ListFilter,
) ([]PopulatedReferral, int, error) {
	plan := newQueryPlan(referrerID, level)
	plan.joinUsers = true

	if err := plan.apply(filters...); err != nil {
		return nil, 0, err
	}

	total, err := r.runCount(ctx, plan)
	if err != nil {
		return nil, 0, fmt.Errorf("count filtered referrals: %w", err)
	}

	query, args, err := plan.selectQuery(
		populatedColumns,
		params.Limit,
		params.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}

	var records []PopulatedReferral
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list filtered referrals: %w", err)
	}

	return records, total, nil
}

func (r *repository) ArchiveByUser(
	ctx context.Context,
	userID string,
) ([]string, error) {
	query := `
		UPDATE referral_records
		SET archived = TRUE, archived_at = NOW(), updated_at = NOW()
		WHERE (referrer_id = $1 OR referred_user_id = $1)
		  AND archived = FALSE
		RETURNING referrer_id`

	var referrers []string
	if err := r.db.SelectContext(ctx, &referrers, query, userID); err != nil {
		return nil, fmt.Errorf("archive referrals: %w", err)
	}

	return referrers, nil
}

func (r *repository) UnarchiveByUser(
	ctx context.Context,
	userID string,
) ([]string, error) {
	query := `
		UPDATE referral_records
		SET archived = FALSE, archived_at = NULL, updated_at = NOW()
		WHERE (referrer_id = $1 OR referred_user_id = $1)
		  AND archived = TRUE
		RETURNING referrer_id`

	var referrers []string
	if err := r.db.SelectContext(ctx, &referrers, query, userID); err != nil {
		return nil, fmt.Errorf("unarchive referrals: %w", err)
	}

	return referrers, nil
}

func (r *repository) UpdateSnapshot(
	ctx context.Context,
	userID string,
	patch SnapshotUpdate,
) ([]string, error) {
	var sets []string
	args := []any{userID}
	argIdx := 2

	if patch.Name != nil {
		sets = append(sets,
			fmt.Sprintf("referred_user_name = $%d", argIdx))
		args = append(args, *patch.Name)
		argIdx++
	}
	if patch.Email != nil {
		sets = append(sets,
			fmt.Sprintf("referred_user_email = $%d", argIdx))
		args = append(args, *patch.Email)
		argIdx++
	}
	if patch.PhoneNumber != nil {
		sets = append(sets,
			fmt.Sprintf("referred_user_phone = $%d", argIdx))
		args = append(args, *patch.PhoneNumber)
		argIdx++
	}

	if len(sets) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		UPDATE referral_records
		SET %s, updated_at = NOW()
		WHERE referred_user_id = $1
		RETURNING referrer_id`,
		strings.Join(sets, ", "))

	var referrers []string
	if err := r.db.SelectContext(ctx, &referrers, query, args...); err != nil {
		return nil, fmt.Errorf("update referral snapshot: %w", err)
	}

	return referrers, nil
}

func (r *repository) runCount(
	ctx context.Context,
	plan *queryPlan,
) (int, error) {
	query, args, err := plan.countQuery()
	if err != nil {
		return 0, err
	}

	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, err
	}

	return total, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

// AngelaMos | 2026
// repository.go

package subscription

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sikaplatform/referral-backend/internal/core"
)

type Repository interface {
	// CountActiveRegistration returns how many of the given users hold at
	// least one active REGISTRATION-category subscription. Legacy rows with
	// no category count as REGISTRATION. Feature add-ons never count.
	CountActiveRegistration(ctx context.Context, userIDs []string) (int, error)

	// ActiveTypesByUsers returns every active subscription type each user
	// holds, regardless of category.
	ActiveTypesByUsers(
		ctx context.Context,
		userIDs []string,
	) (map[string][]string, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) CountActiveRegistration(
	ctx context.Context,
	userIDs []string,
) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`
		SELECT COUNT(DISTINCT user_id)
		FROM subscriptions
		WHERE user_id IN (?)
		  AND status = ?
		  AND end_date > NOW()
		  AND (category = ? OR category IS NULL)`,
		userIDs, StatusActive, CategoryRegistration)
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count active registrations: %w", err)
	}

	return count, nil
}

func (r *repository) ActiveTypesByUsers(
	ctx context.Context,
	userIDs []string,
) (map[string][]string, error) {
	if len(userIDs) == 0 {
		return map[string][]string{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT DISTINCT user_id, subscription_type
		FROM subscriptions
		WHERE user_id IN (?)
		  AND status = ?
		  AND end_date > NOW()`,
		userIDs, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("build types query: %w", err)
	}

	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var rows []struct {
		UserID           string `db:"user_id"`
		SubscriptionType string `db:"subscription_type"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("active types by users: %w", err)
	}

	result := make(map[string][]string, len(rows))
	for _, row := range rows {
		result[row.UserID] = append(result[row.UserID], row.SubscriptionType)
	}

	return result, nil
}

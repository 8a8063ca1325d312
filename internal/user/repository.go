// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sikaplatform/referral-backend/internal/core"
)

type Repository interface {
	GetByIDs(ctx context.Context, ids []string) ([]User, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// GetByIDs resolves a batch of profiles in one round-trip. Deleted and
// blocked accounts are returned as-is; callers decide whether to drop them.
func (r *repository) GetByIDs(
	ctx context.Context,
	ids []string,
) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, name, email, phone_number, region, avatar, blocked,
		       created_at, updated_at, deleted_at
		FROM users
		WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build users query: %w", err)
	}

	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}

	return users, nil
}

// AngelaMos | 2026
// filters.go

package referral

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sikaplatform/referral-backend/internal/core"
	"github.com/sikaplatform/referral-backend/internal/subscription"
)

// ListFilter is a typed predicate composed into a query plan before any SQL
// runs. Filters either extend the plan or reject it; there is no ad-hoc
// string concatenation at call sites.
type ListFilter interface {
	applyTo(p *queryPlan) error
}

type NoFilter struct{}

func (NoFilter) applyTo(*queryPlan) error { return nil }

// SubTypeFilter restricts edges by the referred user's active subscriptions.
// "none" and "all" speak about conversion and therefore only consider
// REGISTRATION-category subscriptions (NULL category counts as REGISTRATION).
// Any other token matches that exact subscription type in any category, so
// feature add-ons like RELANCE can be targeted directly.
type SubTypeFilter struct {
	SubType string
}

const activeRegistrationSubquery = `SELECT 1 FROM subscriptions s
			WHERE s.user_id = r.referred_user_id
			  AND s.status = ?
			  AND s.end_date > NOW()
			  AND (s.category = ? OR s.category IS NULL)`

const activeTypedSubquery = `SELECT 1 FROM subscriptions s
			WHERE s.user_id = r.referred_user_id
			  AND s.status = ?
			  AND s.end_date > NOW()
			  AND s.subscription_type = ?`

func (f SubTypeFilter) applyTo(p *queryPlan) error {
	switch f.SubType {
	case "":
		return fmt.Errorf("empty subscription filter: %w", core.ErrInvalidInput)
	case SubTypeNone:
		p.where(
			"NOT EXISTS ("+activeRegistrationSubquery+")",
			subscription.StatusActive,
			subscription.CategoryRegistration,
		)
	case SubTypeAll:
		p.where(
			"EXISTS ("+activeRegistrationSubquery+")",
			subscription.StatusActive,
			subscription.CategoryRegistration,
		)
	default:
		p.where(
			"EXISTS ("+activeTypedSubquery+")",
			subscription.StatusActive,
			f.SubType,
		)
	}
	return nil
}

// DateRangeFilter bounds the referred user's account creation time. This is
// the users.created_at column, deliberately not the edge's created_at.
type DateRangeFilter struct {
	Since *time.Time
	Until *time.Time
}

func (f DateRangeFilter) applyTo(p *queryPlan) error {
	if f.Since == nil && f.Until == nil {
		return nil
	}
	if f.Since != nil && f.Until != nil && f.Since.After(*f.Until) {
		return fmt.Errorf(
			"registration date range is inverted: %w",
			core.ErrInvalidInput,
		)
	}

	p.joinUsers = true
	if f.Since != nil {
		p.where("u.created_at >= ?", *f.Since)
	}
	if f.Until != nil {
		p.where("u.created_at <= ?", *f.Until)
	}
	return nil
}

// queryPlan accumulates predicates with '?' placeholders and renders them
// as numbered Postgres parameters once, keeping count and data queries on
// the exact same predicate set.
type queryPlan struct {
	conds     []string
	args      []any
	joinUsers bool
	orderBy   string
	err       error
}

func newQueryPlan(referrerID string, level int) *queryPlan {
	p := &queryPlan{orderBy: "r.referral_level ASC, r.created_at DESC"}
	p.where("r.referrer_id = ?", referrerID)
	p.where("r.archived = FALSE")
	if level != 0 {
		if !ValidLevel(level) {
			p.err = fmt.Errorf(
				"referral level %d out of range: %w",
				level,
				core.ErrInvalidInput,
			)
			return p
		}
		p.where("r.referral_level = ?", level)
	}
	return p
}

func (p *queryPlan) where(cond string, args ...any) {
	if p.err != nil {
		return
	}
	if strings.Count(cond, "?") != len(args) {
		p.err = fmt.Errorf(
			"filter placeholder mismatch in %q",
			cond,
		)
		return
	}

	var b strings.Builder
	argIdx := len(p.args)
	for _, ch := range cond {
		if ch == '?' {
			argIdx++
			b.WriteString("$" + strconv.Itoa(argIdx))
			continue
		}
		b.WriteRune(ch)
	}

	p.conds = append(p.conds, b.String())
	p.args = append(p.args, args...)
}

func (p *queryPlan) apply(filters ...ListFilter) error {
	for _, f := range filters {
		if err := f.applyTo(p); err != nil {
			return err
		}
	}
	return p.err
}

func (p *queryPlan) fromClause() string {
	if p.joinUsers {
		return `FROM referral_records r
		JOIN users u ON u.id = r.referred_user_id
			AND u.deleted_at IS NULL
			AND u.blocked = FALSE`
	}
	return "FROM referral_records r"
}

func (p *queryPlan) countQuery() (string, []any, error) {
	if p.err != nil {
		return "", nil, p.err
	}

	query := fmt.Sprintf(
		"SELECT COUNT(*) %s WHERE %s",
		p.fromClause(),
		strings.Join(p.conds, " AND "),
	)
	return query, p.args, nil
}

func (p *queryPlan) selectQuery(
	columns string,
	limit, offset int,
) (string, []any, error) {
	if p.err != nil {
		return "", nil, p.err
	}

	n := len(p.args)
	query := fmt.Sprintf(
		"SELECT %s %s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		columns,
		p.fromClause(),
		strings.Join(p.conds, " AND "),
		p.orderBy,
		n+1,
		n+2,
	)

	args := make([]any, 0, n+2)
	args = append(args, p.args...)
	args = append(args, limit, offset)
	return query, args, nil
}

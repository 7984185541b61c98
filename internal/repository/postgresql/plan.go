package postgresql

import (
	"context"

	"github.com/salonlabs/billing-backend-go/internal/domain/billing"
	"github.com/salonlabs/billing-backend-go/internal/pkg/database"
)

type planCatalog struct {
	db *database.DB
}

func NewPlanCatalog(db *database.DB) billing.PlanCatalog {
	return &planCatalog{db: db}
}

const planColumns = `
	id, key, price_id, name, price_label, monthly_price,
	trial_days, branch_limit, staff_limit, is_active,
	created_at, updated_at
`

func (r *planCatalog) GetByID(ctx context.Context, id string) (billing.Plan, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + planColumns + `
		FROM billing_plans
		WHERE id = $1
	`

	return scanPlan(q.QueryRow(ctx, query, id))
}

func (r *planCatalog) GetByPriceID(ctx context.Context, priceID string) (billing.Plan, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + planColumns + `
		FROM billing_plans
		WHERE price_id = $1
	`

	return scanPlan(q.QueryRow(ctx, query, priceID))
}

func (r *planCatalog) ListActive(ctx context.Context) ([]billing.Plan, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + planColumns + `
		FROM billing_plans
		WHERE is_active = TRUE
		ORDER BY monthly_price
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []billing.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func scanPlan(row rowScanner) (billing.Plan, error) {
	var p billing.Plan
	err := row.Scan(
		&p.ID, &p.Key, &p.PriceID, &p.Name, &p.PriceLabel, &p.MonthlyPrice,
		&p.TrialDays, &p.BranchLimit, &p.StaffLimit, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return billing.Plan{}, err
	}
	return p, nil
}

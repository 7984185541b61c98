package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/salonlabs/billing-backend-go/internal/domain/billing"
	"github.com/salonlabs/billing-backend-go/internal/pkg/database"
)

type accountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) billing.AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `
	id, status, subscription_status,
	plan_id, plan_key, price_id, plan_name, price_label,
	branch_limit, staff_limit,
	subscription_id, schedule_id,
	current_period_start, current_period_end,
	trial_end, grace_until, cancel_at_period_end,
	pending_downgrade,
	last_invoice_id, last_payment_at, last_payment_amount, payment_failure_reason,
	suspended_at, suspension_reason,
	created_at, updated_at
`

func (r *accountRepository) GetByID(ctx context.Context, id string) (billing.Account, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + accountColumns + `
		FROM billing_accounts
		WHERE id = $1
	`

	return scanAccount(q.QueryRow(ctx, query, id))
}

func (r *accountRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (billing.Account, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + accountColumns + `
		FROM billing_accounts
		WHERE subscription_id = $1
	`

	return scanAccount(q.QueryRow(ctx, query, subscriptionID))
}

func (r *accountRepository) Create(ctx context.Context, account billing.Account) (billing.Account, error) {
	q := GetQuerier(ctx, r.db)

	pending, err := marshalPendingDowngrade(account.PendingDowngrade)
	if err != nil {
		return billing.Account{}, err
	}

	query := `
		INSERT INTO billing_accounts (
			id, status, subscription_status,
			plan_id, plan_key, price_id, plan_name, price_label,
			branch_limit, staff_limit,
			subscription_id, schedule_id,
			current_period_start, current_period_end,
			trial_end, grace_until, cancel_at_period_end,
			pending_downgrade,
			last_invoice_id, last_payment_at, last_payment_amount, payment_failure_reason,
			suspended_at, suspension_reason,
			created_at, updated_at
		)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24,
			NOW(), NOW()
		)
		RETURNING ` + accountColumns

	return scanAccount(q.QueryRow(ctx, query,
		account.ID, account.Status, account.SubscriptionStatus,
		account.PlanID, account.PlanKey, account.PriceID, account.PlanName, account.PriceLabel,
		account.BranchLimit, account.StaffLimit,
		account.SubscriptionID, account.ScheduleID,
		account.CurrentPeriodStart, account.CurrentPeriodEnd,
		account.TrialEnd, account.GraceUntil, account.CancelAtPeriodEnd,
		pending,
		account.LastInvoiceID, account.LastPaymentAt, account.LastPaymentAmount, account.PaymentFailureReason,
		account.SuspendedAt, account.SuspensionReason,
	))
}

func (r *accountRepository) Update(ctx context.Context, account billing.Account) error {
	q := GetQuerier(ctx, r.db)

	pending, err := marshalPendingDowngrade(account.PendingDowngrade)
	if err != nil {
		return err
	}

	query := `
		UPDATE billing_accounts
		SET status = $2,
			subscription_status = $3,
			plan_id = $4,
			plan_key = $5,
			price_id = $6,
			plan_name = $7,
			price_label = $8,
			branch_limit = $9,
			staff_limit = $10,
			subscription_id = $11,
			schedule_id = $12,
			current_period_start = $13,
			current_period_end = $14,
			trial_end = $15,
			grace_until = $16,
			cancel_at_period_end = $17,
			pending_downgrade = $18,
			last_invoice_id = $19,
			last_payment_at = $20,
			last_payment_amount = $21,
			payment_failure_reason = $22,
			suspended_at = $23,
			suspension_reason = $24,
			updated_at = NOW()
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query,
		account.ID, account.Status, account.SubscriptionStatus,
		account.PlanID, account.PlanKey, account.PriceID, account.PlanName, account.PriceLabel,
		account.BranchLimit, account.StaffLimit,
		account.SubscriptionID, account.ScheduleID,
		account.CurrentPeriodStart, account.CurrentPeriodEnd,
		account.TrialEnd, account.GraceUntil, account.CancelAtPeriodEnd,
		pending,
		account.LastInvoiceID, account.LastPaymentAt, account.LastPaymentAmount, account.PaymentFailureReason,
		account.SuspendedAt, account.SuspensionReason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) ListTrialingWithoutSubscription(ctx context.Context) ([]billing.Account, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + accountColumns + `
		FROM billing_accounts
		WHERE (status = $1 OR subscription_status = $2)
		  AND subscription_id = ''
	`

	rows, err := q.Query(ctx, query, billing.AccountActiveTrial, billing.SubscriptionTrialing)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []billing.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (billing.Account, error) {
	var a billing.Account
	var pending []byte
	var trialEnd, graceUntil, lastPaymentAt, suspendedAt *time.Time

	err := row.Scan(
		&a.ID, &a.Status, &a.SubscriptionStatus,
		&a.PlanID, &a.PlanKey, &a.PriceID, &a.PlanName, &a.PriceLabel,
		&a.BranchLimit, &a.StaffLimit,
		&a.SubscriptionID, &a.ScheduleID,
		&a.CurrentPeriodStart, &a.CurrentPeriodEnd,
		&trialEnd, &graceUntil, &a.CancelAtPeriodEnd,
		&pending,
		&a.LastInvoiceID, &lastPaymentAt, &a.LastPaymentAmount, &a.PaymentFailureReason,
		&suspendedAt, &a.SuspensionReason,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return billing.Account{}, err
	}

	a.TrialEnd = trialEnd
	a.GraceUntil = graceUntil
	a.LastPaymentAt = lastPaymentAt
	a.SuspendedAt = suspendedAt

	if len(pending) > 0 {
		var pd billing.PendingDowngrade
		if err := json.Unmarshal(pending, &pd); err != nil {
			return billing.Account{}, fmt.Errorf("decode pending downgrade: %w", err)
		}
		a.PendingDowngrade = &pd
	}

	return a, nil
}

func marshalPendingDowngrade(pd *billing.PendingDowngrade) ([]byte, error) {
	if pd == nil {
		return nil, nil
	}
	data, err := json.Marshal(pd)
	if err != nil {
		return nil, fmt.Errorf("encode pending downgrade: %w", err)
	}
	return data, nil
}

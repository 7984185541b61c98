package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_ToResponse(t *testing.T) {
	t.Parallel()

	periodStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 0, 28)
	graceUntil := periodStart.AddDate(0, 0, 3)

	account := Account{
		ID:                 "acct_1",
		Status:             AccountPastDueGrace,
		SubscriptionStatus: SubscriptionPastDue,
		PlanID:             "plan_growth",
		PlanKey:            "growth",
		PlanName:           "Growth",
		PriceLabel:         "$79/mo",
		BranchLimit:        3,
		StaffLimit:         20,
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
		GraceUntil:         &graceUntil,
		PendingDowngrade: &PendingDowngrade{
			PlanID:        "plan_starter",
			PlanName:      "Starter",
			PriceLabel:    "$29/mo",
			EffectiveDate: periodEnd,
			BranchLimit:   1,
			StaffLimit:    5,
		},
	}

	resp := account.ToResponse()

	assert.Equal(t, AccountPastDueGrace, resp.Status)
	assert.Equal(t, "2026-08-01T00:00:00Z", resp.CurrentPeriodStart)
	assert.Equal(t, periodEnd.Format(time.RFC3339), resp.CurrentPeriodEnd)
	require.NotNil(t, resp.GraceUntil)
	assert.Equal(t, graceUntil.Format(time.RFC3339), *resp.GraceUntil)
	assert.Nil(t, resp.TrialEnd)

	require.NotNil(t, resp.PendingDowngrade)
	assert.Equal(t, "plan_starter", resp.PendingDowngrade.PlanID)
	assert.Equal(t, periodEnd.Format(time.RFC3339), resp.PendingDowngrade.EffectiveDate)
	assert.Equal(t, 1, resp.PendingDowngrade.BranchLimit)

	// Entitlements in the response stay at the current plan.
	assert.Equal(t, 3, resp.BranchLimit)
	assert.Equal(t, 20, resp.StaffLimit)
}

func TestAccount_InGrace(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	until := now.Add(24 * time.Hour)

	account := Account{SubscriptionStatus: SubscriptionPastDue, GraceUntil: &until}
	assert.True(t, account.InGrace(now))
	assert.False(t, account.InGrace(until.Add(time.Second)))

	// graceUntil without past_due never counts as grace.
	account.SubscriptionStatus = SubscriptionActive
	assert.False(t, account.InGrace(now))

	assert.False(t, (&Account{SubscriptionStatus: SubscriptionPastDue}).InGrace(now))
}

func TestPlan_IsFree(t *testing.T) {
	t.Parallel()

	assert.True(t, (&Plan{MonthlyPrice: decimal.Zero}).IsFree())
	assert.True(t, (&Plan{MonthlyPrice: decimal.NewFromInt(-1)}).IsFree())
	assert.False(t, (&Plan{MonthlyPrice: decimal.NewFromInt(29)}).IsFree())
}

package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/salonlabs/billing-backend-go/internal/config"
	"github.com/salonlabs/billing-backend-go/internal/domain/billing"
	"github.com/shopspring/decimal"
	stripeSDK "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/price"
	"github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/subscriptionschedule"
)

var decimalHundred = decimal.NewFromInt(100)

// Gateway implements billing.ProviderGateway on top of the Stripe SDK.
type Gateway struct {
	currency string
}

// NewGateway creates a new provider gateway. The SDK key is global; one
// gateway per process.
func NewGateway(cfg config.StripeConfig) *Gateway {
	stripeSDK.Key = cfg.APIKey
	return &Gateway{currency: cfg.Currency}
}

func (g *Gateway) CreatePrice(ctx context.Context, plan billing.Plan, intervalDays int, metadata map[string]string) (string, error) {
	amount := plan.MonthlyPrice.Mul(decimalHundred).IntPart()

	params := &stripeSDK.PriceParams{
		Currency:   stripeSDK.String(g.currency),
		UnitAmount: stripeSDK.Int64(amount),
		Recurring: &stripeSDK.PriceRecurringParams{
			Interval:      stripeSDK.String(string(stripeSDK.PriceRecurringIntervalDay)),
			IntervalCount: stripeSDK.Int64(int64(intervalDays)),
		},
		ProductData: &stripeSDK.PriceProductDataParams{
			Name: stripeSDK.String(plan.Name),
		},
	}
	params.Context = ctx
	params.AddMetadata("plan_id", plan.ID)
	params.AddMetadata("plan_key", plan.Key)
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	p, err := price.New(params)
	if err != nil {
		return "", fmt.Errorf("create price: %w", err)
	}
	return p.ID, nil
}

func (g *Gateway) GetSubscription(ctx context.Context, subscriptionID string) (billing.ProviderSubscription, error) {
	params := &stripeSDK.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		return billing.ProviderSubscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return toProviderSubscription(sub), nil
}

func (g *Gateway) UpdateSubscription(ctx context.Context, subscriptionID string, p billing.UpdateSubscriptionParams) (billing.ProviderSubscription, error) {
	params := &stripeSDK.SubscriptionParams{}
	params.Context = ctx

	if p.PriceID != nil {
		// The price swap targets the existing item, not a new one.
		getParams := &stripeSDK.SubscriptionParams{}
		getParams.Context = ctx
		current, err := subscription.Get(subscriptionID, getParams)
		if err != nil {
			return billing.ProviderSubscription{}, fmt.Errorf("get subscription: %w", err)
		}
		if current.Items == nil || len(current.Items.Data) == 0 {
			return billing.ProviderSubscription{}, fmt.Errorf("subscription %s has no items", subscriptionID)
		}
		params.Items = []*stripeSDK.SubscriptionItemsParams{{
			ID:    stripeSDK.String(current.Items.Data[0].ID),
			Price: p.PriceID,
		}}
	}
	if p.EndTrialNow {
		params.TrialEndNow = stripeSDK.Bool(true)
	}
	if p.ResetBillingAnchor {
		params.BillingCycleAnchorNow = stripeSDK.Bool(true)
	}
	if p.DisableProration {
		params.ProrationBehavior = stripeSDK.String("none")
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	sub, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return billing.ProviderSubscription{}, fmt.Errorf("update subscription: %w", err)
	}
	return toProviderSubscription(sub), nil
}

func (g *Gateway) GetSchedule(ctx context.Context, scheduleID string) (billing.ProviderSchedule, error) {
	params := &stripeSDK.SubscriptionScheduleParams{}
	params.Context = ctx

	sched, err := subscriptionschedule.Get(scheduleID, params)
	if err != nil {
		return billing.ProviderSchedule{}, fmt.Errorf("get schedule: %w", err)
	}
	return toProviderSchedule(sched), nil
}

func (g *Gateway) CreateScheduleFromSubscription(ctx context.Context, subscriptionID string) (billing.ProviderSchedule, error) {
	params := &stripeSDK.SubscriptionScheduleParams{
		FromSubscription: stripeSDK.String(subscriptionID),
	}
	params.Context = ctx

	sched, err := subscriptionschedule.New(params)
	if err != nil {
		return billing.ProviderSchedule{}, fmt.Errorf("create schedule: %w", err)
	}
	return toProviderSchedule(sched), nil
}

func (g *Gateway) UpdateSchedule(ctx context.Context, scheduleID string, phases []billing.SchedulePhase, metadata map[string]string) error {
	params := &stripeSDK.SubscriptionScheduleParams{
		EndBehavior: stripeSDK.String("release"),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	for _, phase := range phases {
		phaseParams := &stripeSDK.SubscriptionSchedulePhaseParams{
			Items: []*stripeSDK.SubscriptionSchedulePhaseItemParams{{
				Price: stripeSDK.String(phase.PriceID),
			}},
			StartDate: stripeSDK.Int64(phase.Start.Unix()),
		}
		if phase.End != nil {
			phaseParams.EndDate = stripeSDK.Int64(phase.End.Unix())
		}
		params.Phases = append(params.Phases, phaseParams)
	}

	if _, err := subscriptionschedule.Update(scheduleID, params); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// ReleaseSchedule treats an already-released schedule as success: the
// provider rejects the release with a client error, and a follow-up read
// confirming the schedule is closed means there is nothing left to do.
func (g *Gateway) ReleaseSchedule(ctx context.Context, scheduleID string) error {
	params := &stripeSDK.SubscriptionScheduleReleaseParams{}
	params.Context = ctx

	_, err := subscriptionschedule.Release(scheduleID, params)
	if err == nil {
		return nil
	}

	sched, getErr := g.GetSchedule(ctx, scheduleID)
	if getErr == nil && !sched.Status.IsOpen() {
		return nil
	}
	return fmt.Errorf("release schedule: %w", err)
}

func toProviderSubscription(sub *stripeSDK.Subscription) billing.ProviderSubscription {
	out := billing.ProviderSubscription{
		ID:                 sub.ID,
		Status:             billing.SubscriptionStatus(sub.Status),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		Metadata:           sub.Metadata,
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.TrialEnd > 0 {
		t := time.Unix(sub.TrialEnd, 0).UTC()
		out.TrialEnd = &t
	}
	if sub.Schedule != nil {
		out.ScheduleID = sub.Schedule.ID
	}
	return out
}

func toProviderSchedule(sched *stripeSDK.SubscriptionSchedule) billing.ProviderSchedule {
	out := billing.ProviderSchedule{
		ID:     sched.ID,
		Status: billing.ScheduleStatus(sched.Status),
	}
	for _, phase := range sched.Phases {
		p := billing.SchedulePhase{
			Start: time.Unix(phase.StartDate, 0).UTC(),
		}
		if phase.EndDate > 0 {
			t := time.Unix(phase.EndDate, 0).UTC()
			p.End = &t
		}
		if len(phase.Items) > 0 && phase.Items[0].Price != nil {
			p.PriceID = phase.Items[0].Price.ID
		}
		out.Phases = append(out.Phases, p)
	}
	return out
}

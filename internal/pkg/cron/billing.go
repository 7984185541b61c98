package cron

import (
	"context"
	"time"

	"github.com/salonlabs/billing-backend-go/internal/domain/billing"
)

// BillingJobs contains billing-related cron jobs
type BillingJobs struct {
	billingService billing.Service
}

// NewBillingJobs creates billing cron jobs
func NewBillingJobs(billingService billing.Service) *BillingJobs {
	return &BillingJobs{
		billingService: billingService,
	}
}

// RegisterJobs registers all billing-related cron jobs
func (j *BillingJobs) RegisterJobs(scheduler *Scheduler) {
	// Expire lapsed trials and flag soon-to-expire ones every hour
	scheduler.AddJob(
		"trial_expiration_sweep",
		1*time.Hour,
		j.SweepTrials,
	)
}

// SweepTrials expires stale trials. The expiring-soon list is the notifier
// collaborator's input; the sweep itself only writes the expiry transition.
func (j *BillingJobs) SweepTrials(ctx context.Context) error {
	_, err := j.billingService.RunTrialSweep(ctx, time.Now().UTC())
	return err
}

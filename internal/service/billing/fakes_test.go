package billing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/salonlabs/billing-backend-go/internal/config"
	"github.com/salonlabs/billing-backend-go/internal/domain/billing"
)

// ===== In-memory collaborators =====

type fakeAccountStore struct {
	mu       sync.Mutex
	accounts map[string]billing.Account
	updates  int
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{accounts: make(map[string]billing.Account)}
}

func (f *fakeAccountStore) GetByID(_ context.Context, id string) (billing.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return billing.Account{}, pgx.ErrNoRows
	}
	return account, nil
}

func (f *fakeAccountStore) GetBySubscriptionID(_ context.Context, subscriptionID string) (billing.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, account := range f.accounts {
		if account.SubscriptionID != "" && account.SubscriptionID == subscriptionID {
			return account, nil
		}
	}
	return billing.Account{}, pgx.ErrNoRows
}

func (f *fakeAccountStore) Create(_ context.Context, account billing.Account) (billing.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	f.accounts[account.ID] = account
	return account, nil
}

func (f *fakeAccountStore) Update(_ context.Context, account billing.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[account.ID]; !ok {
		return billing.ErrAccountNotFound
	}
	account.UpdatedAt = time.Now().UTC()
	f.accounts[account.ID] = account
	f.updates++
	return nil
}

func (f *fakeAccountStore) ListTrialingWithoutSubscription(_ context.Context) ([]billing.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []billing.Account
	for _, account := range f.accounts {
		trialing := account.Status == billing.AccountActiveTrial ||
			account.SubscriptionStatus == billing.SubscriptionTrialing
		if trialing && account.SubscriptionID == "" {
			out = append(out, account)
		}
	}
	return out, nil
}

func (f *fakeAccountStore) get(id string) billing.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[id]
}

func (f *fakeAccountStore) put(account billing.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[account.ID] = account
}

type fakePlanCatalog struct {
	plans map[string]billing.Plan
}

func newFakePlanCatalog(plans ...billing.Plan) *fakePlanCatalog {
	c := &fakePlanCatalog{plans: make(map[string]billing.Plan)}
	for _, plan := range plans {
		c.plans[plan.ID] = plan
	}
	return c
}

func (f *fakePlanCatalog) GetByID(_ context.Context, id string) (billing.Plan, error) {
	plan, ok := f.plans[id]
	if !ok {
		return billing.Plan{}, pgx.ErrNoRows
	}
	return plan, nil
}

func (f *fakePlanCatalog) GetByPriceID(_ context.Context, priceID string) (billing.Plan, error) {
	for _, plan := range f.plans {
		if plan.PriceID == priceID {
			return plan, nil
		}
	}
	return billing.Plan{}, pgx.ErrNoRows
}

func (f *fakePlanCatalog) ListActive(_ context.Context) ([]billing.Plan, error) {
	var out []billing.Plan
	for _, plan := range f.plans {
		if plan.IsActive {
			out = append(out, plan)
		}
	}
	return out, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	processed map[string]string
	markErr   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{processed: make(map[string]string)}
}

func (f *fakeLedger) HasProcessed(_ context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.processed[eventID]
	return ok, nil
}

func (f *fakeLedger) MarkProcessed(_ context.Context, eventID, eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	if _, ok := f.processed[eventID]; ok {
		return billing.ErrEventAlreadyProcessed
	}
	f.processed[eventID] = eventType
	return nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processed)
}

type fakeTxManager struct{}

func (fakeTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeGateway records every provider call so tests can assert orchestration
// order and parameters.
type fakeGateway struct {
	subs      map[string]billing.ProviderSubscription
	schedules map[string]billing.ProviderSchedule

	priceSeq       int
	createdPrices  []billing.Plan
	released       []string
	updateSubCalls []billing.UpdateSubscriptionParams
	schedUpdates   []scheduleUpdate
	createdFrom    []string

	getSubErr    error
	updateSubErr error
}

type scheduleUpdate struct {
	scheduleID string
	phases     []billing.SchedulePhase
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		subs:      make(map[string]billing.ProviderSubscription),
		schedules: make(map[string]billing.ProviderSchedule),
	}
}

func (f *fakeGateway) CreatePrice(_ context.Context, plan billing.Plan, _ int, _ map[string]string) (string, error) {
	f.priceSeq++
	f.createdPrices = append(f.createdPrices, plan)
	return fmt.Sprintf("price_new_%d", f.priceSeq), nil
}

func (f *fakeGateway) GetSubscription(_ context.Context, subscriptionID string) (billing.ProviderSubscription, error) {
	if f.getSubErr != nil {
		return billing.ProviderSubscription{}, f.getSubErr
	}
	sub, ok := f.subs[subscriptionID]
	if !ok {
		return billing.ProviderSubscription{}, fmt.Errorf("no such subscription: %s", subscriptionID)
	}
	return sub, nil
}

func (f *fakeGateway) UpdateSubscription(_ context.Context, subscriptionID string, params billing.UpdateSubscriptionParams) (billing.ProviderSubscription, error) {
	if f.updateSubErr != nil {
		return billing.ProviderSubscription{}, f.updateSubErr
	}
	f.updateSubCalls = append(f.updateSubCalls, params)
	sub := f.subs[subscriptionID]
	if params.PriceID != nil {
		sub.PriceID = *params.PriceID
	}
	if params.EndTrialNow {
		sub.Status = billing.SubscriptionActive
		sub.TrialEnd = nil
	}
	f.subs[subscriptionID] = sub
	return sub, nil
}

func (f *fakeGateway) GetSchedule(_ context.Context, scheduleID string) (billing.ProviderSchedule, error) {
	sched, ok := f.schedules[scheduleID]
	if !ok {
		return billing.ProviderSchedule{}, fmt.Errorf("no such schedule: %s", scheduleID)
	}
	return sched, nil
}

func (f *fakeGateway) CreateScheduleFromSubscription(_ context.Context, subscriptionID string) (billing.ProviderSchedule, error) {
	f.createdFrom = append(f.createdFrom, subscriptionID)
	sched := billing.ProviderSchedule{
		ID:     fmt.Sprintf("sched_new_%d", len(f.createdFrom)),
		Status: billing.ScheduleNotStarted,
	}
	f.schedules[sched.ID] = sched
	return sched, nil
}

func (f *fakeGateway) UpdateSchedule(_ context.Context, scheduleID string, phases []billing.SchedulePhase, _ map[string]string) error {
	sched, ok := f.schedules[scheduleID]
	if !ok {
		return fmt.Errorf("no such schedule: %s", scheduleID)
	}
	sched.Phases = phases
	f.schedules[scheduleID] = sched
	f.schedUpdates = append(f.schedUpdates, scheduleUpdate{scheduleID: scheduleID, phases: phases})
	return nil
}

func (f *fakeGateway) ReleaseSchedule(_ context.Context, scheduleID string) error {
	f.released = append(f.released, scheduleID)
	if sched, ok := f.schedules[scheduleID]; ok {
		sched.Status = billing.ScheduleReleased
		f.schedules[scheduleID] = sched
	}
	return nil
}

// ===== Test wiring =====

type testEnv struct {
	service  billing.Service
	accounts *fakeAccountStore
	plans    *fakePlanCatalog
	ledger   *fakeLedger
	gateway  *fakeGateway
	cfg      config.BillingConfig
}

func newTestEnv(plans ...billing.Plan) *testEnv {
	env := &testEnv{
		accounts: newFakeAccountStore(),
		plans:    newFakePlanCatalog(plans...),
		ledger:   newFakeLedger(),
		gateway:  newFakeGateway(),
		cfg: config.BillingConfig{
			GracePeriodDays:     3,
			BillingIntervalDays: 28,
			TrialExpirySoonDays: 2,
		},
	}
	env.service = NewBillingService(
		env.accounts,
		env.plans,
		env.ledger,
		env.gateway,
		fakeTxManager{},
		env.cfg,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return env
}

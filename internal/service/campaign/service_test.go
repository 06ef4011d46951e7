package campaign

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/provider"
	"github.com/aimkt/marketing-api/internal/ratelimit"
	"github.com/aimkt/marketing-api/internal/service/dispatch"
	"github.com/aimkt/marketing-api/internal/service/notification"
	apperrors "github.com/aimkt/marketing-api/pkg/errors"
	"github.com/aimkt/marketing-api/pkg/lease"
	"github.com/aimkt/marketing-api/pkg/logger"
)

// ---- in-memory fakes ----

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*model.Campaign
}

func newFakeCampaignRepo(cs ...*model.Campaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{campaigns: make(map[uuid.UUID]*model.Campaign)}
	for _, c := range cs {
		cp := *c
		r.campaigns[c.ID] = &cp
	}
	return r
}

func (r *fakeCampaignRepo) Get(_ context.Context, id uuid.UUID) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, apperrors.NotFound("campaign", nil)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCampaignRepo) List(_ context.Context, accountID uuid.UUID) ([]*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Campaign
	for _, c := range r.campaigns {
		if c.AccountID == accountID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeCampaignRepo) ListDue(_ context.Context, now time.Time, limit int) ([]*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Campaign
	for _, c := range r.campaigns {
		if c.Status == model.CampaignStatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			cp := *c
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeCampaignRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.Status != from {
		return apperrors.Conflict("campaign status changed concurrently", nil)
	}
	c.Status = to
	return nil
}

func (r *fakeCampaignRepo) SetSchedule(_ context.Context, id uuid.UUID, when time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[id].ScheduledAt = &when
	return nil
}

func (r *fakeCampaignRepo) SetLastRun(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[id].LastRunAt = &at
	return nil
}

func (r *fakeCampaignRepo) CountByStatus(_ context.Context, _ uuid.UUID) (map[model.CampaignStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[model.CampaignStatus]int)
	for _, c := range r.campaigns {
		counts[c.Status]++
	}
	return counts, nil
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []*model.CampaignLog
}

func (r *fakeLogRepo) Append(_ context.Context, log *model.CampaignLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, log)
	return nil
}

func (r *fakeLogRepo) ListByCampaign(_ context.Context, campaignID uuid.UUID) ([]*model.CampaignLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CampaignLog
	for _, e := range r.entries {
		if e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeLogRepo) events(campaignID uuid.UUID) []string {
	entries, _ := r.ListByCampaign(context.Background(), campaignID)
	var out []string
	for _, e := range entries {
		out = append(out, e.Event)
	}
	return out
}

type staticResolver struct {
	customers []*model.Customer
	err       error
}

func (r *staticResolver) Resolve(_ context.Context, _, _ uuid.UUID) ([]*model.Customer, error) {
	return r.customers, r.err
}

type staticContent struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *staticContent) GetOrGenerate(_ context.Context, _ *model.Campaign, _ model.Channel, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return "Hi {{first_name}}", nil
}

type fakeNotifRepo struct {
	mu      sync.Mutex
	created []*model.Notification
}

func (r *fakeNotifRepo) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, n)
	return nil
}

func (r *fakeNotifRepo) MarkRead(_ context.Context, _ uuid.UUID, _ time.Time) error { return nil }

func (r *fakeNotifRepo) ListByAccount(_ context.Context, _ uuid.UUID) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created, nil
}

// memMessageRepo backs the real dispatch stack in scenario tests.
type memMessageRepo struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*model.Message
	attempts map[uuid.UUID][]*model.MessageAttempt
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{
		messages: make(map[uuid.UUID]*model.Message),
		attempts: make(map[uuid.UUID][]*model.MessageAttempt),
	}
}

func (r *memMessageRepo) Get(_ context.Context, id uuid.UUID) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.messages[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (r *memMessageRepo) Find(_ context.Context, campaignID uuid.UUID, ch model.Channel, customerID uuid.UUID) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.CampaignID == campaignID && m.Channel == ch && m.CustomerID == customerID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memMessageRepo) Create(_ context.Context, msg *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *msg
	r.messages[msg.ID] = &cp
	return nil
}

func (r *memMessageRepo) Update(_ context.Context, msg *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *msg
	r.messages[msg.ID] = &cp
	return nil
}

func (r *memMessageRepo) UpdateWithAttempt(_ context.Context, msg *model.Message, attempt *model.MessageAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *msg
	r.messages[msg.ID] = &cp
	r.attempts[attempt.MessageID] = append(r.attempts[attempt.MessageID], attempt)
	return nil
}

func (r *memMessageRepo) ListByCampaign(_ context.Context, campaignID uuid.UUID) ([]*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Message
	for _, m := range r.messages {
		if m.CampaignID == campaignID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memMessageRepo) ListAttempts(_ context.Context, messageID uuid.UUID) ([]*model.MessageAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts[messageID], nil
}

func (r *memMessageRepo) ListDueRetries(_ context.Context, _ time.Time, _ int) ([]*model.Message, error) {
	return nil, nil
}

func (r *memMessageRepo) CountByStatus(_ context.Context, campaignID uuid.UUID) (map[model.MessageStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[model.MessageStatus]int)
	for _, m := range r.messages {
		if m.CampaignID == campaignID {
			counts[m.Status]++
		}
	}
	return counts, nil
}

func (r *memMessageRepo) CountByStatusForAccount(_ context.Context, _ uuid.UUID) (map[model.MessageStatus]int, error) {
	return nil, nil
}

func (r *memMessageRepo) RecordEvent(_ context.Context, _ uuid.UUID, _ model.MessageEvent, _ time.Time) error {
	return nil
}

// scriptedTransport fails with the scripted errors in order, then succeeds.
type scriptedTransport struct {
	mu   sync.Mutex
	errs []error
}

func (t *scriptedTransport) Deliver(_ context.Context, _, _ string) (*provider.Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.errs) > 0 {
		err := t.errs[0]
		t.errs = t.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &provider.Receipt{ProviderRef: "ref"}, nil
}

type staticBulk struct {
	result *dispatch.BulkResult
	err    error
	block  chan struct{}
}

func (b *staticBulk) DispatchBulk(ctx context.Context, _ *model.Campaign, _ model.Channel, _ []*model.Customer, _ string) (*dispatch.BulkResult, error) {
	if b.block != nil {
		select {
		case <-b.block:
		case <-ctx.Done():
			return &dispatch.BulkResult{}, ctx.Err()
		}
	}
	return b.result, b.err
}

// ---- wiring helpers ----

type orchestratorDeps struct {
	campaigns *fakeCampaignRepo
	logs      *fakeLogRepo
	notifs    *fakeNotifRepo
	messages  *memMessageRepo
}

func newTestOrchestrator(t *testing.T, c *model.Campaign, resolver SegmentResolver, bulk BulkDispatcher) (*Orchestrator, *orchestratorDeps) {
	t.Helper()
	deps := &orchestratorDeps{
		campaigns: newFakeCampaignRepo(c),
		logs:      &fakeLogRepo{},
		notifs:    &fakeNotifRepo{},
	}
	notifier := notification.NewService(deps.notifs, nil, "", logger.Nop())
	o := NewOrchestrator(
		deps.campaigns, deps.logs, resolver, &staticContent{}, bulk,
		notifier, lease.NewMemoryLocker(), nil,
		Config{FailureThreshold: 0.5, LeaseTTL: time.Minute},
		logger.Nop(), nil,
	)
	return o, deps
}

// newRealStackOrchestrator wires the genuine dispatcher and bulk messenger
// over in-memory storage, for end-to-end run scenarios.
func newRealStackOrchestrator(t *testing.T, c *model.Campaign, customers []*model.Customer, transport provider.Transport) (*Orchestrator, *orchestratorDeps) {
	t.Helper()
	msgRepo := newMemMessageRepo()
	d := dispatch.NewDispatcher(
		provider.Registry{model.ChannelEmail: transport},
		msgRepo,
		dispatch.Config{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		logger.Nop(), nil,
	)
	limiter := ratelimit.New(ratelimit.Config{model.ChannelEmail: 60000})
	bulk := dispatch.NewBulkMessenger(d, limiter, msgRepo, 4, logger.Nop(), nil)

	o, deps := newTestOrchestrator(t, c, &staticResolver{customers: customers}, bulk)
	deps.messages = msgRepo
	return o, deps
}

func draftCampaign() *model.Campaign {
	return &model.Campaign{
		ID:          uuid.New(),
		AccountID:   uuid.New(),
		SegmentID:   uuid.New(),
		Name:        "Launch",
		ProductName: "Trail Shoes",
		Status:      model.CampaignStatusDraft,
		Channels:    model.ChannelList{model.ChannelEmail},
		Language:    "en",
		Timezone:    "UTC",
	}
}

func optedInCustomer(addr string) *model.Customer {
	return &model.Customer{ID: uuid.New(), Email: addr, FirstName: "Pat", EmailOptIn: true, Language: "en"}
}

// ---- schedule ----

func TestScheduleRejectsPastTime(t *testing.T) {
	c := draftCampaign()
	o, deps := newTestOrchestrator(t, c, &staticResolver{}, &staticBulk{result: &dispatch.BulkResult{}})

	err := o.Schedule(context.Background(), c.ID, time.Now().Add(-time.Hour))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	stored, _ := deps.campaigns.Get(context.Background(), c.ID)
	assert.Equal(t, model.CampaignStatusDraft, stored.Status)
	assert.Empty(t, deps.logs.entries)
}

func TestScheduleRejectsBadTimezone(t *testing.T) {
	c := draftCampaign()
	c.Timezone = "Mars/Olympus"
	o, _ := newTestOrchestrator(t, c, &staticResolver{}, &staticBulk{result: &dispatch.BulkResult{}})

	err := o.Schedule(context.Background(), c.ID, time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestScheduleSetsStatusAndLog(t *testing.T) {
	c := draftCampaign()
	o, deps := newTestOrchestrator(t, c, &staticResolver{}, &staticBulk{result: &dispatch.BulkResult{}})

	when := time.Now().Add(2 * time.Hour)
	require.NoError(t, o.Schedule(context.Background(), c.ID, when))

	stored, _ := deps.campaigns.Get(context.Background(), c.ID)
	assert.Equal(t, model.CampaignStatusScheduled, stored.Status)
	require.NotNil(t, stored.ScheduledAt)
	assert.Contains(t, deps.logs.events(c.ID), "scheduled")
}

func TestScheduleFromTerminalStatusConflicts(t *testing.T) {
	c := draftCampaign()
	c.Status = model.CampaignStatusCompleted
	o, _ := newTestOrchestrator(t, c, &staticResolver{}, &staticBulk{result: &dispatch.BulkResult{}})

	err := o.Schedule(context.Background(), c.ID, time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

// ---- send ----

func TestSendAllDeliveredCompletesAndNotifies(t *testing.T) {
	// 3 recipients, 2 opted in, 1 opted out; everything delivers.
	c := draftCampaign()
	optedOut := optedInCustomer("quiet@example.com")
	optedOut.EmailOptIn = false
	customers := []*model.Customer{optedInCustomer("a@example.com"), optedInCustomer("b@example.com"), optedOut}

	o, deps := newRealStackOrchestrator(t, c, customers, &scriptedTransport{})

	result, err := o.Send(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusCompleted, result.Status)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Failed)

	stored, _ := deps.campaigns.Get(context.Background(), c.ID)
	assert.Equal(t, model.CampaignStatusCompleted, stored.Status)
	assert.NotNil(t, stored.LastRunAt)

	require.Len(t, deps.notifs.created, 1)
	assert.Equal(t, model.NotificationLevelSuccess, deps.notifs.created[0].Level)
	assert.Contains(t, deps.logs.events(c.ID), "completed")
}

func TestSendTransientExhaustionFailsCampaign(t *testing.T) {
	// 1 recipient, 4 transient failures against a 3-retry budget.
	c := draftCampaign()
	transient := &provider.Error{Code: "timeout", Message: "upstream timeout", Temporary: true}
	transport := &scriptedTransport{errs: []error{transient, transient, transient, transient}}
	customer := optedInCustomer("a@example.com")

	o, deps := newRealStackOrchestrator(t, c, []*model.Customer{customer}, transport)

	result, err := o.Send(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusFailed, result.Status)
	assert.Equal(t, 1, result.Failed)

	msg, _ := deps.messages.Find(context.Background(), c.ID, model.ChannelEmail, customer.ID)
	require.NotNil(t, msg)
	assert.Equal(t, model.MessageStatusFailed, msg.Status)
	assert.Equal(t, 4, msg.Attempts)

	require.Len(t, deps.notifs.created, 1)
	assert.Equal(t, model.NotificationLevelError, deps.notifs.created[0].Level)
}

func TestSendResumeSkipsDeliveredMessages(t *testing.T) {
	c := draftCampaign()
	good := optedInCustomer("good@example.com")
	flaky := optedInCustomer("flaky@example.com")

	permanent := &provider.Error{Code: "invalid_recipient", Message: "bad address", Temporary: false}
	transport := &failByAddressTransport{failFor: map[string]error{"flaky@example.com": permanent}}

	o, deps := newRealStackOrchestrator(t, c, []*model.Customer{good, flaky}, transport)

	first, err := o.Send(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusFailed, first.Status)
	assert.Equal(t, 1, first.Sent)
	assert.Equal(t, 1, first.Failed)

	// The failed campaign is resumable; delivered messages are not resent.
	transport.mu.Lock()
	delete(transport.failFor, "flaky@example.com")
	transport.mu.Unlock()

	second, err := o.Send(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, transport.deliveriesTo("good@example.com"))

	// The permanently failed message stays terminal.
	assert.Equal(t, model.CampaignStatusFailed, second.Status)
	msg, _ := deps.messages.Find(context.Background(), c.ID, model.ChannelEmail, flaky.ID)
	assert.Equal(t, model.MessageStatusFailed, msg.Status)
}

type failByAddressTransport struct {
	mu         sync.Mutex
	failFor    map[string]error
	recipients []string
}

func (t *failByAddressTransport) Deliver(_ context.Context, recipient, _ string) (*provider.Receipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recipients = append(t.recipients, recipient)
	if err, ok := t.failFor[recipient]; ok {
		return nil, err
	}
	return &provider.Receipt{ProviderRef: "ref-" + recipient}, nil
}

func (t *failByAddressTransport) deliveriesTo(addr string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, r := range t.recipients {
		if r == addr {
			n++
		}
	}
	return n
}

func TestSendResumesCancelledCampaign(t *testing.T) {
	c := draftCampaign()
	c.Status = model.CampaignStatusCancelled
	settled := optedInCustomer("settled@example.com")
	fresh := optedInCustomer("fresh@example.com")
	transport := &failByAddressTransport{}
	o, deps := newRealStackOrchestrator(t, c, []*model.Customer{settled, fresh}, transport)

	// One recipient was already delivered before the cancel landed.
	require.NoError(t, deps.messages.Create(context.Background(), &model.Message{
		ID:         uuid.New(),
		CampaignID: c.ID,
		CustomerID: settled.ID,
		Channel:    model.ChannelEmail,
		Status:     model.MessageStatusSent,
	}))

	result, err := o.Send(context.Background(), c.ID)
	require.NoError(t, err)

	assert.Equal(t, model.CampaignStatusCompleted, result.Status)
	assert.Equal(t, 0, transport.deliveriesTo("settled@example.com"))
	assert.Equal(t, 1, transport.deliveriesTo("fresh@example.com"))
	assert.Contains(t, deps.logs.events(c.ID), "run_resumed")
}

func TestSendInterruptedByCallerContextParksFailed(t *testing.T) {
	c := draftCampaign()
	block := make(chan struct{})
	bulk := &staticBulk{result: &dispatch.BulkResult{}, block: block}
	o, deps := newTestOrchestrator(t, c,
		&staticResolver{customers: []*model.Customer{optedInCustomer("a@example.com")}}, bulk)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.Send(ctx, c.ID)
		done <- err
	}()

	require.Eventually(t, func() bool {
		stored, _ := deps.campaigns.Get(context.Background(), c.ID)
		return stored.Status == model.CampaignStatusSending
	}, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("send did not return after its context was cancelled")
	}

	// The caller going away is not an operator cancel: the run parks the
	// campaign in failed so a later send can resume it.
	stored, _ := deps.campaigns.Get(context.Background(), c.ID)
	assert.Equal(t, model.CampaignStatusFailed, stored.Status)
	assert.Contains(t, deps.logs.events(c.ID), "run_interrupted")

	close(block)
	second, err := o.Send(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusCompleted, second.Status)
}

func TestSendSegmentFailureMarksCampaignFailed(t *testing.T) {
	c := draftCampaign()
	o, deps := newTestOrchestrator(t, c,
		&staticResolver{err: errors.New("segment store unavailable")},
		&staticBulk{result: &dispatch.BulkResult{}})

	_, err := o.Send(context.Background(), c.ID)
	require.Error(t, err)

	stored, _ := deps.campaigns.Get(context.Background(), c.ID)
	assert.Equal(t, model.CampaignStatusFailed, stored.Status)
	assert.Contains(t, deps.logs.events(c.ID), "segment_resolution_failed")
}

func TestSendContentFailureIsResumable(t *testing.T) {
	c := draftCampaign()
	deps := &orchestratorDeps{
		campaigns: newFakeCampaignRepo(c),
		logs:      &fakeLogRepo{},
		notifs:    &fakeNotifRepo{},
	}
	notifier := notification.NewService(deps.notifs, nil, "", logger.Nop())
	o := NewOrchestrator(
		deps.campaigns, deps.logs,
		&staticResolver{customers: []*model.Customer{optedInCustomer("a@example.com")}},
		&staticContent{err: errors.New("copy provider 502")},
		&staticBulk{result: &dispatch.BulkResult{}},
		notifier, lease.NewMemoryLocker(), nil, Config{}, logger.Nop(), nil,
	)

	_, err := o.Send(context.Background(), c.ID)
	require.Error(t, err)

	stored, _ := deps.campaigns.Get(context.Background(), c.ID)
	assert.Equal(t, model.CampaignStatusFailed, stored.Status)
	// failed is resumable: a second Send must be allowed to re-enter sending
	assert.True(t, stored.CanTransition(model.CampaignStatusSending))
}

func TestSendFromTerminalStatusConflicts(t *testing.T) {
	c := draftCampaign()
	c.Status = model.CampaignStatusCompleted
	o, _ := newTestOrchestrator(t, c, &staticResolver{}, &staticBulk{result: &dispatch.BulkResult{}})

	_, err := o.Send(context.Background(), c.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestConcurrentSendsConflict(t *testing.T) {
	c := draftCampaign()
	block := make(chan struct{})
	bulk := &staticBulk{result: &dispatch.BulkResult{Sent: 1}, block: block}
	o, _ := newTestOrchestrator(t, c,
		&staticResolver{customers: []*model.Customer{optedInCustomer("a@example.com")}}, bulk)

	firstDone := make(chan error, 1)
	go func() {
		_, err := o.Send(context.Background(), c.ID)
		firstDone <- err
	}()

	// Wait for the first run to hold the lease, then collide with it.
	require.Eventually(t, func() bool {
		stored, _ := o.Get(context.Background(), c.ID)
		return stored.Status == model.CampaignStatusSending
	}, time.Second, 5*time.Millisecond)

	_, err := o.Send(context.Background(), c.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	close(block)
	require.NoError(t, <-firstDone)
}

func TestSendFailureThresholdBoundary(t *testing.T) {
	cases := []struct {
		name   string
		result *dispatch.BulkResult
		want   model.CampaignStatus
	}{
		{"below threshold", &dispatch.BulkResult{Sent: 3, Failed: 1}, model.CampaignStatusCompleted},
		{"at threshold", &dispatch.BulkResult{Sent: 2, Failed: 2}, model.CampaignStatusFailed},
		{"all skipped", &dispatch.BulkResult{Skipped: 5}, model.CampaignStatusCompleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := draftCampaign()
			o, deps := newTestOrchestrator(t, c,
				&staticResolver{customers: []*model.Customer{optedInCustomer("a@example.com")}},
				&staticBulk{result: tc.result})

			result, err := o.Send(context.Background(), c.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Status)

			stored, _ := deps.campaigns.Get(context.Background(), c.ID)
			assert.Equal(t, tc.want, stored.Status)
		})
	}
}

// ---- cancel ----

func TestCancelScheduledCampaign(t *testing.T) {
	c := draftCampaign()
	c.Status = model.CampaignStatusScheduled
	o, deps := newTestOrchestrator(t, c, &staticResolver{}, &staticBulk{result: &dispatch.BulkResult{}})

	require.NoError(t, o.Cancel(context.Background(), c.ID))

	stored, _ := deps.campaigns.Get(context.Background(), c.ID)
	assert.Equal(t, model.CampaignStatusCancelled, stored.Status)
	require.Len(t, deps.notifs.created, 1)
	assert.Equal(t, model.NotificationLevelWarning, deps.notifs.created[0].Level)
}

func TestCancelDraftConflicts(t *testing.T) {
	c := draftCampaign()
	o, _ := newTestOrchestrator(t, c, &staticResolver{}, &staticBulk{result: &dispatch.BulkResult{}})

	err := o.Cancel(context.Background(), c.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestCancelStopsRunningSend(t *testing.T) {
	c := draftCampaign()
	block := make(chan struct{})
	bulk := &staticBulk{result: &dispatch.BulkResult{}, block: block}
	o, deps := newTestOrchestrator(t, c,
		&staticResolver{customers: []*model.Customer{optedInCustomer("a@example.com")}}, bulk)

	done := make(chan *RunResult, 1)
	go func() {
		result, _ := o.Send(context.Background(), c.ID)
		done <- result
	}()

	require.Eventually(t, func() bool {
		stored, _ := deps.campaigns.Get(context.Background(), c.ID)
		return stored.Status == model.CampaignStatusSending
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, o.Cancel(context.Background(), c.ID))

	select {
	case result := <-done:
		require.NotNil(t, result)
		assert.Equal(t, model.CampaignStatusCancelled, result.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("send did not return after cancel")
	}

	stored, _ := deps.campaigns.Get(context.Background(), c.ID)
	assert.Equal(t, model.CampaignStatusCancelled, stored.Status)
}

// ---- scheduler ----

func TestRunDueTriggersScheduledCampaigns(t *testing.T) {
	due := draftCampaign()
	due.Status = model.CampaignStatusScheduled
	past := time.Now().Add(-time.Minute)
	due.ScheduledAt = &past

	o, deps := newTestOrchestrator(t, due,
		&staticResolver{customers: []*model.Customer{optedInCustomer("a@example.com")}},
		&staticBulk{result: &dispatch.BulkResult{Sent: 1}})

	started, err := o.RunDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, started)

	stored, _ := deps.campaigns.Get(context.Background(), due.ID)
	assert.Equal(t, model.CampaignStatusCompleted, stored.Status)
}

func TestRunDueIgnoresFutureSchedules(t *testing.T) {
	future := draftCampaign()
	future.Status = model.CampaignStatusScheduled
	later := time.Now().Add(time.Hour)
	future.ScheduledAt = &later

	o, deps := newTestOrchestrator(t, future, &staticResolver{}, &staticBulk{result: &dispatch.BulkResult{}})

	started, err := o.RunDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, started)

	stored, _ := deps.campaigns.Get(context.Background(), future.ID)
	assert.Equal(t, model.CampaignStatusScheduled, stored.Status)
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/facility-requests/internal/domain"
	"github.com/spec-kit/facility-requests/internal/events"
	"github.com/spec-kit/facility-requests/internal/observability"
	"github.com/spec-kit/facility-requests/internal/repository"
	"github.com/spec-kit/facility-requests/internal/repository/memory"
	apperrors "github.com/spec-kit/facility-requests/pkg/util"
)

type sentNotification struct {
	kind    string
	request domain.FacilityRequest
	owner   domain.UserProfile
	message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	err  error
	sent []sentNotification
}

func (n *recordingNotifier) NotifyCreated(_ context.Context, req domain.FacilityRequest, owner domain.UserProfile) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{kind: "created", request: req, owner: owner})
	return n.err
}

func (n *recordingNotifier) NotifyResponded(_ context.Context, req domain.FacilityRequest, owner domain.UserProfile, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{kind: "responded", request: req, owner: owner, message: message})
	return n.err
}

type fixture struct {
	store      *memory.Store
	svc        *RequestService
	dispatcher *events.AsyncDispatcher
	notifier   *recordingNotifier
	metrics    *observability.Metrics
	logs       *observer.ObservedLogs
}

type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &tickingClock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	store := memory.New(memory.WithClock(clock.now))
	return newFixtureWithStore(t, store, store)
}

func newFixtureWithStore(t *testing.T, mem *memory.Store, store repository.Store) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	metrics := observability.NewMetrics()
	dispatcher := events.NewAsyncDispatcher(logger)
	notifier := &recordingNotifier{}
	NewNotificationService(dispatcher, notifier, metrics, logger).RegisterHandlers()

	svc := NewRequestService(RequestDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	return &fixture{store: mem, svc: svc, dispatcher: dispatcher, notifier: notifier, metrics: metrics, logs: logs}
}

func (f *fixture) caller(t *testing.T, email string, role domain.Role) domain.CallerIdentity {
	t.Helper()
	user := &domain.User{Email: email, Name: email, Role: role}
	require.NoError(t, f.store.Users().Upsert(context.Background(), user))
	return domain.IdentityFromUser(user)
}

func strPtr(s string) *string { return &s }

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Truef(t, apperrors.IsCode(err, code), "expected %s, got %v", code, err)
}

func TestCreateRequestDefaults(t *testing.T) {
	f := newFixture(t)
	alice := f.caller(t, "alice@example.com", domain.RoleUser)

	created, err := f.svc.CreateRequest(context.Background(), alice, CreateRequestInput{
		Location:    "  Bldg 2, Rm 5 ",
		Description: "Broken AC",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityMedium, created.Severity)
	assert.Equal(t, domain.RequestStatusPending, created.Status)
	assert.Equal(t, "Bldg 2, Rm 5", created.Location)
	require.NotNil(t, created.Owner)
	assert.Equal(t, alice.ID, created.Owner.ID)

	stored, err := f.svc.GetRequest(context.Background(), alice, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityMedium, stored.Severity)
	assert.Equal(t, domain.RequestStatusPending, stored.Status)
	assert.Empty(t, stored.Responses)

	f.dispatcher.Wait()
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "created", f.notifier.sent[0].kind)
	assert.Equal(t, created.ID, f.notifier.sent[0].request.ID)
	assert.Equal(t, "alice@example.com", f.notifier.sent[0].owner.Email)
}

func TestCreateRequestValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.caller(t, "alice@example.com", domain.RoleUser)

	tests := []struct {
		name  string
		input CreateRequestInput
		field string
	}{
		{name: "empty location", input: CreateRequestInput{Location: "", Description: "x"}, field: "location"},
		{name: "blank description", input: CreateRequestInput{Location: "Lobby", Description: "   "}, field: "description"},
		{name: "unknown severity", input: CreateRequestInput{Location: "Lobby", Description: "x", Severity: strPtr("URGENT")}, field: "severity"},
		{name: "lower case severity", input: CreateRequestInput{Location: "Lobby", Description: "x", Severity: strPtr("high")}, field: "severity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateRequest(ctx, alice, tt.input)
			assertCode(t, err, apperrors.CodeValidation)
			assert.Contains(t, apperrors.ToDomainError(err).Details, tt.field)
		})
	}

	all, err := f.svc.ListRequests(ctx, alice, ListRequestsInput{})
	require.NoError(t, err)
	assert.Empty(t, all)
	f.dispatcher.Wait()
	assert.Empty(t, f.notifier.sent)
}

func TestListRequestsScoping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.caller(t, "alice@example.com", domain.RoleUser)
	bob := f.caller(t, "bob@example.com", domain.RoleUser)
	admin := f.caller(t, "facilities@example.com", domain.RoleAdmin)

	a1, err := f.svc.CreateRequest(ctx, alice, CreateRequestInput{Location: "A1", Description: "x"})
	require.NoError(t, err)
	b1, err := f.svc.CreateRequest(ctx, bob, CreateRequestInput{Location: "B1", Description: "x", Severity: strPtr("HIGH")})
	require.NoError(t, err)
	a2, err := f.svc.CreateRequest(ctx, alice, CreateRequestInput{Location: "A2", Description: "x"})
	require.NoError(t, err)

	ids := func(items []domain.FacilityRequest) []string {
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, item.ID)
		}
		return out
	}

	own, err := f.svc.ListRequests(ctx, alice, ListRequestsInput{UserID: strPtr(bob.ID)})
	require.NoError(t, err)
	assert.Equal(t, []string{a2.ID, a1.ID}, ids(own))

	everything, err := f.svc.ListRequests(ctx, admin, ListRequestsInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{a2.ID, b1.ID, a1.ID}, ids(everything))

	bobs, err := f.svc.ListRequests(ctx, admin, ListRequestsInput{UserID: strPtr(bob.ID)})
	require.NoError(t, err)
	assert.Equal(t, []string{b1.ID}, ids(bobs))

	_, err = f.svc.ListRequests(ctx, admin, ListRequestsInput{Status: strPtr("DONE")})
	assertCode(t, err, apperrors.CodeValidation)

	pending, err := f.svc.ListRequests(ctx, bob, ListRequestsInput{Status: strPtr("PENDING")})
	require.NoError(t, err)
	assert.Equal(t, []string{b1.ID}, ids(pending))
}

func TestAccessRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.caller(t, "alice@example.com", domain.RoleUser)
	bob := f.caller(t, "bob@example.com", domain.RoleUser)
	admin := f.caller(t, "facilities@example.com", domain.RoleAdmin)

	req, err := f.svc.CreateRequest(ctx, alice, CreateRequestInput{Location: "Lab", Description: "Leak"})
	require.NoError(t, err)

	_, err = f.svc.GetRequest(ctx, bob, req.ID)
	assertCode(t, err, apperrors.CodeForbidden)
	_, err = f.svc.UpdateStatus(ctx, bob, req.ID, "CLOSED")
	assertCode(t, err, apperrors.CodeForbidden)
	_, err = f.svc.UpdateStatus(ctx, alice, req.ID, "CLOSED")
	assertCode(t, err, apperrors.CodeForbidden)
	_, err = f.svc.RespondToRequest(ctx, alice, req.ID, RespondInput{Message: "done"})
	assertCode(t, err, apperrors.CodeForbidden)

	unchanged, err := f.svc.GetRequest(ctx, alice, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, unchanged.Status)
	assert.Empty(t, unchanged.Responses)

	_, err = f.svc.GetRequest(ctx, admin, req.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, admin, req.ID, "RESOLVED")
	require.NoError(t, err)

	_, err = f.svc.GetRequest(ctx, admin, "3f0b2d9e-0000-4000-8000-000000000000")
	assertCode(t, err, apperrors.CodeNotFound)
	_, err = f.svc.GetRequest(ctx, alice, "missing")
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.caller(t, "alice@example.com", domain.RoleUser)
	admin := f.caller(t, "facilities@example.com", domain.RoleAdmin)
	req, err := f.svc.CreateRequest(ctx, alice, CreateRequestInput{Location: "Lab", Description: "Leak"})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, admin, req.ID, "REOPENED")
	assertCode(t, err, apperrors.CodeValidation)
	_, err = f.svc.UpdateStatus(ctx, admin, "missing", "CLOSED")
	assertCode(t, err, apperrors.CodeNotFound)

	first, err := f.svc.UpdateStatus(ctx, admin, req.ID, "CLOSED")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusClosed, first.Status)
	assert.True(t, first.UpdatedAt.After(req.UpdatedAt))

	second, err := f.svc.UpdateStatus(ctx, admin, req.ID, "CLOSED")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusClosed, second.Status)
	assert.Empty(t, second.Responses)

	// any status may follow any other
	back, err := f.svc.UpdateStatus(ctx, admin, req.ID, "PENDING")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, back.Status)
}

func TestRespondScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.caller(t, "alice@example.com", domain.RoleUser)
	bob := f.caller(t, "bob@example.com", domain.RoleUser)
	admin := f.caller(t, "facilities@example.com", domain.RoleAdmin)

	created, err := f.svc.CreateRequest(ctx, alice, CreateRequestInput{Location: "Bldg 2, Rm 5", Description: "Broken AC"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, created.UserID)

	listed, err := f.svc.ListRequests(ctx, admin, ListRequestsInput{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 0, listed[0].ResponseCount)

	result, err := f.svc.RespondToRequest(ctx, admin, created.ID, RespondInput{
		Message: "Technician dispatched",
		Status:  strPtr("IN_PROGRESS"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Technician dispatched", result.Response.Message)
	assert.Equal(t, domain.RequestStatusInProgress, result.Request.Status)
	require.Len(t, result.Request.Responses, 1)

	_, err = f.svc.GetRequest(ctx, bob, created.ID)
	assertCode(t, err, apperrors.CodeForbidden)

	seen, err := f.svc.GetRequest(ctx, alice, created.ID)
	require.NoError(t, err)
	require.Len(t, seen.Responses, 1)
	assert.Equal(t, "Technician dispatched", seen.Responses[0].Message)

	_, err = f.svc.RespondToRequest(ctx, admin, created.ID, RespondInput{Message: "Parts ordered"})
	require.NoError(t, err)
	detail, err := f.svc.GetRequest(ctx, alice, created.ID)
	require.NoError(t, err)
	require.Len(t, detail.Responses, 2)
	assert.Equal(t, "Technician dispatched", detail.Responses[0].Message)
	assert.Equal(t, "Parts ordered", detail.Responses[1].Message)
	assert.Equal(t, domain.RequestStatusInProgress, detail.Status)

	summaries, err := f.svc.ListRequests(ctx, alice, ListRequestsInput{})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].ResponseCount)
	require.Len(t, summaries[0].Responses, 1)
	assert.Equal(t, "Parts ordered", summaries[0].Responses[0].Message)

	f.dispatcher.Wait()
	var responded []sentNotification
	for _, n := range f.notifier.sent {
		if n.kind == "responded" {
			responded = append(responded, n)
		}
	}
	require.Len(t, responded, 2)
	assert.Equal(t, "alice@example.com", responded[0].owner.Email)
	assert.Contains(t, []string{"Technician dispatched", "Parts ordered"}, responded[0].message)
}

func TestRespondValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.caller(t, "alice@example.com", domain.RoleUser)
	admin := f.caller(t, "facilities@example.com", domain.RoleAdmin)
	req, err := f.svc.CreateRequest(ctx, alice, CreateRequestInput{Location: "Lab", Description: "Leak"})
	require.NoError(t, err)

	_, err = f.svc.RespondToRequest(ctx, admin, req.ID, RespondInput{Message: "  "})
	assertCode(t, err, apperrors.CodeValidation)
	_, err = f.svc.RespondToRequest(ctx, admin, req.ID, RespondInput{Message: "ok", Status: strPtr("DONE")})
	assertCode(t, err, apperrors.CodeValidation)
	_, err = f.svc.RespondToRequest(ctx, admin, "missing", RespondInput{Message: "ok"})
	assertCode(t, err, apperrors.CodeNotFound)

	detail, err := f.svc.GetRequest(ctx, admin, req.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Responses)
}

type faultyStore struct{ repository.Store }

func (s faultyStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithTx(ctx, func(tx repository.Store) error {
		return fn(faultyTx{tx})
	})
}

type faultyTx struct{ repository.Store }

func (t faultyTx) Requests() repository.RequestRepository {
	return failingWrites{t.Store.Requests()}
}

type failingWrites struct{ repository.RequestRepository }

var errInjected = errors.New("injected failure")

func (failingWrites) UpdateStatus(context.Context, string, domain.RequestStatus) error {
	return errInjected
}

func (failingWrites) Touch(context.Context, string) error {
	return errInjected
}

func TestRespondIsAtomic(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	f := newFixtureWithStore(t, mem, faultyStore{mem})
	alice := f.caller(t, "alice@example.com", domain.RoleUser)
	admin := f.caller(t, "facilities@example.com", domain.RoleAdmin)

	req, err := f.svc.CreateRequest(ctx, alice, CreateRequestInput{Location: "Lab", Description: "Leak"})
	require.NoError(t, err)

	_, err = f.svc.RespondToRequest(ctx, admin, req.ID, RespondInput{Message: "on it", Status: strPtr("IN_PROGRESS")})
	assertCode(t, err, apperrors.CodeDependencyFailure)
	assert.ErrorIs(t, err, errInjected)

	_, err = f.svc.RespondToRequest(ctx, admin, req.ID, RespondInput{Message: "on it"})
	assertCode(t, err, apperrors.CodeDependencyFailure)

	detail, err := f.svc.GetRequest(ctx, admin, req.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Responses)
	assert.Equal(t, domain.RequestStatusPending, detail.Status)
	assert.Equal(t, req.UpdatedAt, detail.UpdatedAt)

	f.dispatcher.Wait()
	for _, n := range f.notifier.sent {
		assert.NotEqual(t, "responded", n.kind)
	}
}

func TestNotificationFailureDoesNotFailCaller(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notifier.err = errors.New("smtp unreachable")
	alice := f.caller(t, "alice@example.com", domain.RoleUser)
	admin := f.caller(t, "facilities@example.com", domain.RoleAdmin)

	req, err := f.svc.CreateRequest(ctx, alice, CreateRequestInput{Location: "Lab", Description: "Leak"})
	require.NoError(t, err)
	result, err := f.svc.RespondToRequest(ctx, admin, req.ID, RespondInput{Message: "fixed", Status: strPtr("RESOLVED")})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusResolved, result.Request.Status)

	f.dispatcher.Wait()
	assert.Equal(t, 2, f.logs.FilterMessage("event handler failed").Len())
	assert.Equal(t, int64(2), f.metrics.Snapshot().Events["notification_failed"])

	detail, err := f.svc.GetRequest(ctx, alice, req.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Responses, 1)
}

type brokenRequests struct{ repository.RequestRepository }

func (brokenRequests) List(context.Context, repository.RequestFilter) ([]domain.FacilityRequest, error) {
	return nil, errors.New("connection refused")
}

type brokenStore struct{ repository.Store }

func (s brokenStore) Requests() repository.RequestRepository {
	return brokenRequests{s.Store.Requests()}
}

func TestStoreFailureIsDependencyFailure(t *testing.T) {
	mem := memory.New()
	f := newFixtureWithStore(t, mem, brokenStore{mem})
	alice := f.caller(t, "alice@example.com", domain.RoleUser)

	_, err := f.svc.ListRequests(context.Background(), alice, ListRequestsInput{})
	assertCode(t, err, apperrors.CodeDependencyFailure)
	assert.Equal(t, "request store unavailable", apperrors.ToDomainError(err).Message)
	assert.Equal(t, 1, f.logs.FilterMessage("request store failure").Len())
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.caller(t, "alice@example.com", domain.RoleUser)
	bob := f.caller(t, "bob@example.com", domain.RoleUser)
	admin := f.caller(t, "facilities@example.com", domain.RoleAdmin)

	a1, err := f.svc.CreateRequest(ctx, alice, CreateRequestInput{Location: "A1", Description: "x"})
	require.NoError(t, err)
	_, err = f.svc.CreateRequest(ctx, bob, CreateRequestInput{Location: "B1", Description: "x"})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, admin, a1.ID, "RESOLVED")
	require.NoError(t, err)

	all, err := f.svc.Stats(ctx, admin, ListRequestsInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, all[domain.RequestStatusPending])
	assert.Equal(t, 1, all[domain.RequestStatusResolved])
	assert.Equal(t, 0, all[domain.RequestStatusClosed])

	own, err := f.svc.Stats(ctx, bob, ListRequestsInput{UserID: strPtr(alice.ID)})
	require.NoError(t, err)
	assert.Equal(t, 1, own[domain.RequestStatusPending])
	assert.Equal(t, 0, own[domain.RequestStatusResolved])
}

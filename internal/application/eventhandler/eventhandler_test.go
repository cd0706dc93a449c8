package eventhandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sagenius/agency-crm/internal/application/command"
	"github.com/sagenius/agency-crm/internal/application/feature"
	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/notification"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
	"github.com/sagenius/agency-crm/internal/domain/task"
	"github.com/sagenius/agency-crm/internal/infrastructure/messaging"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/collection"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demo = shared.AgencyID("demo")

// Wednesday.
var now = time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)

var counsellor = agency.User{ID: "u2", Name: "Hari", Role: agency.RoleCounsellor, AgencyID: demo}

type fakeSender struct {
	mu       sync.Mutex
	messages []*notification.Message
	fail     bool
}

func (s *fakeSender) Send(_ context.Context, msg *notification.Message) notification.DeliveryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	if s.fail {
		return notification.DeliveryResult{Success: false, Channel: msg.Channel, Error: errors.New("smtp down")}
	}
	return notification.Delivered(msg.Channel, msg.ID)
}

type env struct {
	bus    *messaging.InMemoryEventBus
	deps   command.Deps
	sender *fakeSender
	seen   []shared.EventType
	mu     sync.Mutex
}

func newEnv(t *testing.T, flags feature.Static) *env {
	t.Helper()
	if flags == nil {
		flags = feature.Defaults()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := collection.NewMemoryStore()
	locker := collection.NewLocker()

	cfg := messaging.DefaultInMemoryEventBusConfig()
	cfg.Logger = logger
	bus := messaging.NewInMemoryEventBus(cfg)
	t.Cleanup(func() { _ = bus.Close() })

	e := &env{bus: bus, sender: &fakeSender{}}
	e.deps = command.Deps{
		Students:  repository.NewStudentRepository(store),
		Tasks:     repository.NewTaskRepository(store),
		Agency:    repository.NewAgencyRepository(store),
		Locker:    locker,
		Publisher: bus,
		Features:  flags,
		Clock:     shared.FixedClock(now),
		Logger:    logger,
	}

	automationHandler := NewOnStatusChangedHandler(
		e.deps.Tasks, e.deps.Agency, locker, bus, nil, flags,
		shared.FixedClock(now), logger, DefaultStatusChangedConfig(),
	)
	visaHandler := NewOnVisaGrantedHandler(e.deps.Agency, e.sender, flags, logger, DefaultVisaGrantedConfig())
	require.NoError(t, Register(bus, automationHandler, visaHandler))
	require.NoError(t, bus.SubscribeAll(func(ev shared.Event) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.seen = append(e.seen, ev.EventType())
		return nil
	}))
	return e
}

func (e *env) create(t *testing.T, name, email string, country student.Country) *student.Student {
	t.Helper()
	res, err := command.NewCreateStudentHandler(e.deps).Handle(context.Background(), command.CreateStudentCommand{
		User: counsellor, Name: name, Email: email, Phone: "+977 9801234567", TargetCountry: country,
	})
	require.NoError(t, err)
	return res.Student
}

func (e *env) transition(t *testing.T, id string, to student.ApplicationStatus) {
	t.Helper()
	_, err := command.NewTransitionStatusHandler(e.deps).Handle(context.Background(), command.TransitionStatusCommand{
		User: counsellor, StudentID: id, To: to,
	})
	require.NoError(t, err)
}

func (e *env) tasks(t *testing.T) []*task.Task {
	t.Helper()
	list, err := e.deps.Tasks.Load(context.Background(), demo)
	require.NoError(t, err)
	return list.Tasks
}

func TestOnStatusChanged_GeneratesTasks(t *testing.T) {
	e := newEnv(t, nil)
	s := e.create(t, "Ram Karki", "", student.CountryAustralia)

	e.transition(t, s.ID, student.StatusOfferReceived)

	tasks := e.tasks(t)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Collect Tuition Fee & GTE Docs: Ram Karki", tasks[0].Text)
	assert.Equal(t, task.Day("Thursday"), tasks[0].Day)
	assert.Equal(t, "Verify NOC Status for Ram Karki", tasks[1].Text)
	assert.Equal(t, task.Day("Friday"), tasks[1].Day)
	for _, tk := range tasks {
		assert.Equal(t, s.ID, tk.StudentID)
	}

	log, err := e.deps.Agency.Activity(context.Background(), demo)
	require.NoError(t, err)
	var details []string
	for _, entry := range log.Recent(10) {
		details = append(details, entry.Details)
	}
	assert.Contains(t, details, "Workflow Engine created 2 tasks for Ram Karki")

	assert.Contains(t, e.seen, shared.EventTasksGenerated)
}

func TestOnStatusChanged_ReentryAddsFreshBatch(t *testing.T) {
	e := newEnv(t, nil)
	s := e.create(t, "Sita Sharma", "", student.CountryUK)

	e.transition(t, s.ID, student.StatusApplied)
	e.transition(t, s.ID, student.StatusLead)
	e.transition(t, s.ID, student.StatusApplied)

	tasks := e.tasks(t)
	require.Len(t, tasks, 2)
	assert.Equal(t, tasks[0].Text, tasks[1].Text)
	assert.NotEqual(t, tasks[0].ID, tasks[1].ID)
}

func TestOnStatusChanged_FeatureOff(t *testing.T) {
	flags := feature.Defaults()
	flags[feature.WorkflowAutomation] = false
	e := newEnv(t, flags)
	s := e.create(t, "Ram Karki", "", student.CountryAustralia)

	e.transition(t, s.ID, student.StatusVisaGranted)

	assert.Empty(t, e.tasks(t))
	assert.NotContains(t, e.seen, shared.EventTasksGenerated)
}

func TestOnStatusChanged_IgnoresOtherEvents(t *testing.T) {
	h := NewOnStatusChangedHandler(nil, nil, nil, nil, nil, nil, nil, nil, StatusChangedConfig{})
	ev := task.NewTasksGeneratedEvent(demo.String(), "1", nil)
	assert.NoError(t, h.Handle(ev))
}

func TestOnVisaGranted_SendsEmail(t *testing.T) {
	e := newEnv(t, nil)
	s := e.create(t, "Ram Karki", "ram@example.com", student.CountryAustralia)

	e.transition(t, s.ID, student.StatusApplied)
	assert.Empty(t, e.sender.messages)

	e.transition(t, s.ID, student.StatusVisaGranted)

	require.Len(t, e.sender.messages, 1)
	msg := e.sender.messages[0]
	assert.Equal(t, notification.ChannelTypeEmail, msg.Channel)
	assert.Equal(t, notification.TypeVisaGranted, msg.Type)
	assert.Equal(t, "ram@example.com", msg.To)
	assert.Contains(t, msg.Body, "Ram Karki")
	assert.NotContains(t, msg.Body, "{student_name}")
	assert.Equal(t, s.ID, msg.Metadata["student_id"])

	// Задачи визы созданы независимо от письма.
	assert.Len(t, e.tasks(t), 4)
}

func TestOnVisaGranted_Skips(t *testing.T) {
	t.Run("no email", func(t *testing.T) {
		e := newEnv(t, nil)
		s := e.create(t, "Ram Karki", "", student.CountryAustralia)
		e.transition(t, s.ID, student.StatusVisaGranted)
		assert.Empty(t, e.sender.messages)
	})

	t.Run("feature off", func(t *testing.T) {
		flags := feature.Defaults()
		flags[feature.EmailOnVisa] = false
		e := newEnv(t, flags)
		s := e.create(t, "Ram Karki", "ram@example.com", student.CountryAustralia)
		e.transition(t, s.ID, student.StatusVisaGranted)
		assert.Empty(t, e.sender.messages)
	})

	t.Run("agency setting off", func(t *testing.T) {
		e := newEnv(t, nil)
		ctx := context.Background()
		rec, err := e.deps.Agency.Settings(ctx, demo)
		require.NoError(t, err)
		rec.Settings.Notifications.EmailOnVisa = false
		require.NoError(t, e.deps.Agency.SaveSettings(ctx, demo, rec))

		s := e.create(t, "Ram Karki", "ram@example.com", student.CountryAustralia)
		e.transition(t, s.ID, student.StatusVisaGranted)
		assert.Empty(t, e.sender.messages)
	})
}

func TestOnVisaGranted_DeliveryFailureIsNotAnError(t *testing.T) {
	sender := &fakeSender{fail: true}
	h := NewOnVisaGrantedHandler(
		repository.NewAgencyRepository(collection.NewMemoryStore()),
		sender, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), VisaGrantedConfig{},
	)

	s := &student.Student{
		ID: "1", Name: "Ram Karki", Email: "ram@example.com",
		TargetCountry: student.CountryAustralia, Status: student.StatusVisaGranted,
	}
	ev := student.NewStatusChangedEvent(demo.String(), s, student.Transition{
		From: student.StatusOfferReceived, To: student.StatusVisaGranted, At: now,
	}, "u2")

	assert.NoError(t, h.Handle(ev))
	assert.Len(t, sender.messages, 1)
}

type brokenTasks struct {
	task.Repository
}

func (brokenTasks) Store(context.Context, shared.AgencyID, *task.List) error {
	return errors.New("disk full")
}

func TestOnStatusChanged_StoreFailureKeepsTransition(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := collection.NewMemoryStore()
	locker := collection.NewLocker()

	cfg := messaging.DefaultInMemoryEventBusConfig()
	cfg.Logger = logger
	bus := messaging.NewInMemoryEventBus(cfg)
	t.Cleanup(func() { _ = bus.Close() })

	deps := command.Deps{
		Students:  repository.NewStudentRepository(store),
		Tasks:     repository.NewTaskRepository(store),
		Agency:    repository.NewAgencyRepository(store),
		Locker:    locker,
		Publisher: bus,
		Features:  feature.Defaults(),
		Clock:     shared.FixedClock(now),
		Logger:    logger,
	}
	automationHandler := NewOnStatusChangedHandler(
		brokenTasks{deps.Tasks}, deps.Agency, locker, bus, nil, feature.Defaults(),
		shared.FixedClock(now), logger, DefaultStatusChangedConfig(),
	)
	require.NoError(t, bus.Subscribe(shared.EventStatusChanged, automationHandler.Handle))

	created, err := command.NewCreateStudentHandler(deps).Handle(context.Background(), command.CreateStudentCommand{
		User: counsellor, Name: "Ram Karki", TargetCountry: student.CountryAustralia,
	})
	require.NoError(t, err)

	res, err := command.NewTransitionStatusHandler(deps).Handle(context.Background(), command.TransitionStatusCommand{
		User: counsellor, StudentID: created.Student.ID, To: student.StatusVisaGranted,
	})
	require.NoError(t, err)
	assert.True(t, res.Transition.CommissionPrompt)

	roster, err := deps.Students.Load(context.Background(), demo)
	require.NoError(t, err)
	stored, err := roster.Get(created.Student.ID)
	require.NoError(t, err)
	assert.Equal(t, student.StatusVisaGranted, stored.Status)

	list, err := deps.Tasks.Load(context.Background(), demo)
	require.NoError(t, err)
	assert.Empty(t, list.Tasks)
}

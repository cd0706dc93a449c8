package jobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/notification"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/task"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/collection"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demo shared.AgencyID = "demo"

// Wednesday 08:50.
var now = time.Date(2024, 3, 6, 8, 50, 0, 0, time.UTC)

type fakeSender struct {
	mu   sync.Mutex
	sent []*notification.Message
	fail error
}

func (f *fakeSender) Send(_ context.Context, msg *notification.Message) notification.DeliveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return notification.Undelivered(msg.Channel, f.fail, true)
	}
	f.sent = append(f.sent, msg)
	return notification.Delivered(msg.Channel, msg.ID)
}

type recordingPublisher struct {
	events []shared.Event
	err    error
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return p.err
}

func seedTasks(t *testing.T, repo *repository.TaskRepository, tasks ...*task.Task) {
	t.Helper()
	list, err := repo.Load(context.Background(), demo)
	require.NoError(t, err)
	list.Prepend(tasks...)
	require.NoError(t, repo.Store(context.Background(), demo, list))
}

func newTask(id, text string, day task.Day, due task.DueTime, done bool) *task.Task {
	return &task.Task{ID: id, Text: text, Day: day, DueTime: due, Priority: task.PriorityHigh, Completed: done, CreatedAt: now}
}

func TestNotifyDueTasksJob_SendsOncePerDay(t *testing.T) {
	repo := repository.NewTaskRepository(collection.NewMemoryStore())
	seedTasks(t, repo,
		newTask("t1", "Call Ram Karki", "Wednesday", "09:00", false),
		newTask("t2", "Done already", "Wednesday", "09:00", true),
		newTask("t3", "Later today", "Wednesday", "15:00", false),
		newTask("t4", "Tomorrow", "Thursday", "09:00", false),
	)

	sender := &fakeSender{}
	pub := &recordingPublisher{}
	job := NewNotifyDueTasksJob(repo, collection.NewMemoryNotifiedSet(0), sender, pub,
		shared.FixedClock(now), nil, DefaultNotifyDueTasksConfig())

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, notification.ChannelTypeLog, sender.sent[0].Channel)
	assert.Contains(t, sender.sent[0].Body, "Call Ram Karki")
	assert.Equal(t, "t1", sender.sent[0].Metadata["task_id"])

	require.Len(t, pub.events, 1)
	assert.Equal(t, shared.EventTaskDueSoon, pub.events[0].EventType())

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.DueTasks)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Sent)
}

func TestNotifyDueTasksJob_FailedSendIsRetried(t *testing.T) {
	repo := repository.NewTaskRepository(collection.NewMemoryStore())
	seedTasks(t, repo, newTask("t1", "Call Ram Karki", "Wednesday", "09:00", false))

	sender := &fakeSender{fail: errors.New("smtp down")}
	notified := collection.NewMemoryNotifiedSet(0)
	job := NewNotifyDueTasksJob(repo, notified, sender, nil, shared.FixedClock(now), nil, DefaultNotifyDueTasksConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, job.LastRunStats().Failed)

	marked, err := notified.IsNotified(context.Background(), demo, "t1", now)
	require.NoError(t, err)
	assert.False(t, marked)

	sender.fail = nil
	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, sender.sent, 1)
}

func TestNotifyDueTasksJob_PublishFailureIsLogged(t *testing.T) {
	repo := repository.NewTaskRepository(collection.NewMemoryStore())
	seedTasks(t, repo, newTask("t1", "Call Ram Karki", "Wednesday", "09:00", false))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	pub := &recordingPublisher{err: errors.New("bus closed")}
	job := NewNotifyDueTasksJob(repo, collection.NewMemoryNotifiedSet(0), &fakeSender{}, pub,
		shared.FixedClock(now), logger, DefaultNotifyDueTasksConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, job.LastRunStats().Sent)
	assert.Contains(t, buf.String(), "failed to publish due soon event")
	assert.Contains(t, buf.String(), "bus closed")
}

func TestNotifyDueTasksJob_EmailsRecipient(t *testing.T) {
	repo := repository.NewTaskRepository(collection.NewMemoryStore())
	seedTasks(t, repo, newTask("t1", "Call Ram Karki", "Wednesday", "09:05", false))

	cfg := DefaultNotifyDueTasksConfig()
	cfg.Recipient = "counsellor@sagenius.test"
	sender := &fakeSender{}
	job := NewNotifyDueTasksJob(repo, collection.NewMemoryNotifiedSet(0), sender, nil, shared.FixedClock(now), nil, cfg)

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, notification.ChannelTypeEmail, sender.sent[0].Channel)
	assert.Equal(t, "counsellor@sagenius.test", sender.sent[0].To)
	assert.Equal(t, "notify_due_tasks", job.Name())
}

func TestDailyRemindersJob(t *testing.T) {
	store := collection.NewMemoryStore()
	tasks := repository.NewTaskRepository(store)
	agencies := repository.NewAgencyRepository(store)
	seedTasks(t, tasks,
		newTask("t1", "Collect GTE docs", "Wednesday", "10:00", false),
		newTask("t2", "Done already", "Wednesday", "09:00", true),
		newTask("t3", "Tomorrow", "Thursday", "09:00", false),
	)

	sender := &fakeSender{}
	job := NewDailyRemindersJob(tasks, agencies, sender, shared.FixedClock(now), nil,
		DailyRemindersConfig{AgencyIDs: []shared.AgencyID{demo}})

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "Collect GTE docs")
	assert.NotContains(t, sender.sent[0].Body, "Done already")
	assert.NotContains(t, sender.sent[0].Body, "Tomorrow")
	assert.Contains(t, sender.sent[0].Subject, "1 tasks for Wednesday")
}

func TestDailyRemindersJob_DisabledInSettings(t *testing.T) {
	store := collection.NewMemoryStore()
	tasks := repository.NewTaskRepository(store)
	agencies := repository.NewAgencyRepository(store)
	seedTasks(t, tasks, newTask("t1", "Collect GTE docs", "Wednesday", "10:00", false))

	settings := agency.DefaultSettings()
	settings.Notifications.DailyReminders = false
	require.NoError(t, agencies.SaveSettings(context.Background(), demo, &agency.SettingsRecord{Settings: settings}))

	sender := &fakeSender{}
	job := NewDailyRemindersJob(tasks, agencies, sender, shared.FixedClock(now), nil,
		DailyRemindersConfig{AgencyIDs: []shared.AgencyID{demo}})

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, sender.sent)
	assert.Equal(t, 1, job.LastRunStats().Disabled)
}

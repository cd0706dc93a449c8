package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagenius/agency-crm/config"
	"github.com/sagenius/agency-crm/internal/application/feature"
	"github.com/sagenius/agency-crm/internal/domain/notification"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.FromEnvironment()
	require.NoError(t, err)
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenStores_Memory(t *testing.T) {
	cfg := testConfig(t)

	stores, err := OpenStores(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer stores.Close()

	require.NotNil(t, stores.Collection)
	require.NotNil(t, stores.Notified)
	assert.True(t, stores.Health.Check(context.Background()).Healthy)
}

func TestSeedDemo_OnlyOnce(t *testing.T) {
	cfg := testConfig(t)
	stores, err := OpenStores(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()
	agencyID := shared.AgencyID("demo")
	now := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)

	seeded, err := SeedDemo(ctx, stores, student.DefaultCatalog(), agencyID, now)
	require.NoError(t, err)
	assert.True(t, seeded)

	roster, err := stores.Students.Load(ctx, agencyID)
	require.NoError(t, err)
	require.Len(t, roster.Students, len(demoStudents))
	assert.Equal(t, "Ram Karki", roster.Students[0].Name)

	sita, err := roster.Get("demo-sita")
	require.NoError(t, err)
	status := student.IsBlocked(sita, roster.Resolver())
	assert.True(t, status.Blocked)
	assert.Equal(t, "Ram Karki", status.BlockerName)

	book, err := stores.Agency.Partners(ctx, agencyID)
	require.NoError(t, err)
	assert.Len(t, book.Partners, 5)

	activity, err := stores.Agency.Activity(ctx, agencyID)
	require.NoError(t, err)
	require.NotEmpty(t, activity.Entries)
	assert.Equal(t, "System", activity.Entries[0].UserName)

	seeded, err = SeedDemo(ctx, stores, student.DefaultCatalog(), agencyID, now)
	require.NoError(t, err)
	assert.False(t, seeded)
}

func TestNewScheduler_RegistersJobs(t *testing.T) {
	cfg := testConfig(t)
	stores, err := OpenStores(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer stores.Close()

	sched, err := NewScheduler(cfg, stores, NewDispatcher(cfg, quietLogger(), nil, nil), nil, nil, quietLogger())
	require.NoError(t, err)

	names := make([]string, 0, 2)
	for _, j := range sched.ListJobs() {
		names = append(names, j.Name)
	}
	assert.ElementsMatch(t, []string{"notify_due_tasks", "daily_reminders"}, names)
}

func TestNewScheduler_DueSoonDisabled(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Features.Disable(feature.DueSoonNotifications))
	stores, err := OpenStores(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer stores.Close()

	sched, err := NewScheduler(cfg, stores, NewDispatcher(cfg, quietLogger(), nil, nil), nil, nil, quietLogger())
	require.NoError(t, err)

	jobs := sched.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "daily_reminders", jobs[0].Name)
}

func TestNewScheduler_BadCron(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.DailyRemindersCron = "every morning"
	stores, err := OpenStores(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer stores.Close()

	_, err = NewScheduler(cfg, stores, NewDispatcher(cfg, quietLogger(), nil, nil), nil, nil, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCHEDULER_DAILY_REMINDERS_CRON")
}

func TestNewDispatcher_EmailFallsBackToLog(t *testing.T) {
	cfg := testConfig(t)
	d := NewDispatcher(cfg, quietLogger(), nil, nil)

	result := d.Send(context.Background(), &notification.Message{
		ID:       "m1",
		AgencyID: "demo",
		Channel:  notification.ChannelTypeEmail,
		To:       "ram.karki@example.com",
		Subject:  "Visa granted",
		Body:     "Congratulations",
	})
	assert.True(t, result.Success)
	assert.Equal(t, notification.ChannelTypeLog, result.Channel)
}

func TestAgencyIDs_SkipsInvalid(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.AgencyIDs = []string{"demo", "", "acme"}
	assert.Equal(t, []shared.AgencyID{"demo", "acme"}, AgencyIDs(cfg))
}

func TestNewEventBus_AsyncFromConfig(t *testing.T) {
	t.Setenv("EVENTS_ASYNC", "true")
	t.Setenv("EVENTS_WORKERS", "1")
	cfg := testConfig(t)

	bus := NewEventBus(cfg, quietLogger())
	defer func() { _ = bus.Close() }()

	var got []string
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		got = append(got, e.AggregateID())
		return nil
	}))
	for _, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, bus.Publish(student.NewStudentDeletedEvent("demo", id, "Student "+id)))
	}
	bus.Wait()

	assert.Equal(t, []string{"s1", "s2", "s3"}, got)
	assert.Equal(t, int64(3), bus.Metrics().Snapshot().TotalPublished)
}

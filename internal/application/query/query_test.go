package query

import (
	"context"
	"testing"
	"time"

	"github.com/sagenius/agency-crm/internal/application/feature"
	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
	"github.com/sagenius/agency-crm/internal/domain/task"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/collection"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demo = shared.AgencyID("demo")

// Wednesday.
var now = time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)

func newDeps(t *testing.T, students []*student.Student, tasks []*task.Task) Deps {
	t.Helper()
	ctx := context.Background()
	store := collection.NewMemoryStore()

	sr := repository.NewStudentRepository(store)
	require.NoError(t, sr.Store(ctx, demo, &student.Roster{Students: students}))

	tr := repository.NewTaskRepository(store)
	require.NoError(t, tr.Store(ctx, demo, &task.List{Tasks: tasks}))

	return Deps{
		Students: sr,
		Tasks:    tr,
		Agency:   repository.NewAgencyRepository(store),
		Features: feature.Defaults(),
		Clock:    shared.FixedClock(now),
	}
}

func mk(id, name string, status student.ApplicationStatus, created int) *student.Student {
	return &student.Student{
		ID:            id,
		Name:          name,
		TargetCountry: student.CountryAustralia,
		Status:        status,
		NocStatus:     student.NocNotApplied,
		Documents:     map[string]student.DocumentStatus{},
		BlockedBy:     []string{},
		CreatedAt:     now.Add(time.Duration(created) * time.Hour),
	}
}

func TestStudentQueries_ListAndBlocked(t *testing.T) {
	ram := mk("1", "Ram Karki", student.StatusLead, 1)
	sita := mk("2", "Sita Sharma", student.StatusApplied, 2)
	ram.BlockedBy = []string{"2"}

	h := NewStudentQueryHandler(newDeps(t, []*student.Student{ram, sita}, nil))

	list, err := h.List(context.Background(), ListStudentsQuery{AgencyID: demo})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Sita Sharma", list[0].Name)
	assert.True(t, list[1].Blocked)
	assert.Equal(t, "Sita Sharma", list[1].BlockerName)

	filtered, err := h.List(context.Background(), ListStudentsQuery{AgencyID: demo, Search: "ram"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "1", filtered[0].ID)

	_, err = h.Get(context.Background(), StudentQuery{AgencyID: demo, StudentID: "missing"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.List(context.Background(), ListStudentsQuery{})
	assert.ErrorIs(t, err, shared.ErrAgencyRequired)
}

func TestStudentQueries_ProgressPolicy(t *testing.T) {
	s := mk("1", "Ram Karki", student.StatusLead, 0)
	reqs, err := student.DefaultCatalog().RequiredDocuments(student.CountryAustralia)
	require.NoError(t, err)
	s.Documents[reqs[0].Name] = student.DocumentUploaded
	s.Documents[reqs[1].Name] = student.DocumentNotRequired

	deps := newDeps(t, []*student.Student{s}, nil)
	q := StudentQuery{AgencyID: demo, StudentID: "1"}

	def, err := NewStudentQueryHandler(deps).Progress(context.Background(), q)
	require.NoError(t, err)

	excluding := feature.Defaults()
	excluding[feature.ExcludeWaivedDocuments] = true
	deps.Features = excluding
	exc, err := NewStudentQueryHandler(deps).Progress(context.Background(), q)
	require.NoError(t, err)

	total := len(reqs)
	assert.Equal(t, percent(1, total), def.Progress)
	assert.Equal(t, percent(1, total-1), exc.Progress)
}

func percent(c, total int) int {
	return int(float64(100*c)/float64(total) + 0.5)
}

func TestStudentQueries_DocumentsBundle(t *testing.T) {
	s := mk("1", "Ram Karki", student.StatusLead, 0)
	s.Documents["Passport (Valid 6mo+)"] = student.DocumentUploaded

	h := NewStudentQueryHandler(newDeps(t, []*student.Student{s}, nil))
	dto, err := h.Documents(context.Background(), StudentQuery{AgencyID: demo, StudentID: "1"})
	require.NoError(t, err)

	assert.False(t, dto.BundleReady)
	assert.Equal(t, []string{"SLC/SEE Marksheet"}, dto.MissingForBundle)
	assert.Equal(t, "Passport (Valid 6mo+)", dto.Items[0].Name)
	assert.Equal(t, student.DocumentUploaded, dto.Items[0].Status)
	assert.Equal(t, student.DocumentPending, dto.Items[1].Status)
}

func TestPipelineBoard(t *testing.T) {
	students := []*student.Student{
		mk("1", "A", student.StatusOfferReceived, 0),
		mk("2", "B", student.StatusOfferReceived, 1),
		mk("3", "C", student.StatusVisaGranted, 2),
		mk("4", "D", student.StatusLead, 3),
	}
	h := NewPipelineHandler(newDeps(t, students, nil))

	board, err := h.Board(context.Background(), TenantQuery{AgencyID: demo})
	require.NoError(t, err)

	require.Len(t, board.Columns, len(student.Statuses()))
	assert.Equal(t, "NPR", board.Currency)
	for i, status := range student.Statuses() {
		assert.Equal(t, status, board.Columns[i].Status)
	}

	byStatus := map[student.ApplicationStatus]ColumnDTO{}
	for _, c := range board.Columns {
		byStatus[c.Status] = c
	}
	assert.Equal(t, 2, byStatus[student.StatusOfferReceived].Count)
	assert.Equal(t, 100000.0, byStatus[student.StatusOfferReceived].ProjectedValue)
	assert.Equal(t, 150000.0, byStatus[student.StatusVisaGranted].ProjectedValue)
	assert.Equal(t, 0.0, byStatus[student.StatusLead].ProjectedValue)
	assert.Equal(t, 250000.0, board.ProjectedTotal)
	assert.NotNil(t, byStatus[student.StatusApplied].Students)
}

func TestNocTracker(t *testing.T) {
	lead := mk("1", "Lead Only", student.StatusLead, 0)
	applied := mk("2", "Noc Applied", student.StatusLead, 1)
	applied.NocStatus = student.NocApplied
	offer := mk("3", "Offer", student.StatusOfferReceived, 2)

	h := NewPipelineHandler(newDeps(t, []*student.Student{lead, applied, offer}, nil))
	rows, err := h.NocTracker(context.Background(), TenantQuery{AgencyID: demo})
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "3", rows[0].ID)
	assert.Equal(t, "2", rows[1].ID)
}

func TestTaskQueries(t *testing.T) {
	tasks := []*task.Task{
		{ID: "a", Text: "low", Priority: task.PriorityLow, DueTime: "09:00", Day: "Wednesday"},
		{ID: "b", Text: "done", Priority: task.PriorityHigh, DueTime: "08:00", Day: "Wednesday", Completed: true},
		{ID: "c", Text: "high", Priority: task.PriorityHigh, DueTime: "10:00", Day: "Wednesday"},
		{ID: "d", Text: "monday", Priority: task.PriorityMedium, DueTime: "10:00", Day: "Monday"},
	}
	h := NewTaskQueryHandler(newDeps(t, nil, tasks))
	ctx := context.Background()

	today, err := h.ForDay(ctx, TasksForDayQuery{AgencyID: demo})
	require.NoError(t, err)
	assert.Equal(t, task.Day("Wednesday"), today.Day)
	require.Len(t, today.Tasks, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{today.Tasks[0].ID, today.Tasks[1].ID, today.Tasks[2].ID})
	assert.Equal(t, 2, today.Open)

	_, err = h.ForDay(ctx, TasksForDayQuery{AgencyID: demo, Day: "Someday"})
	assert.ErrorIs(t, err, task.ErrInvalidDay)

	week, err := h.Week(ctx, TenantQuery{AgencyID: demo})
	require.NoError(t, err)
	require.Len(t, week, 7)
	assert.Equal(t, task.Day("Monday"), week[0].Day)
	assert.Len(t, week[0].Tasks, 1)
	assert.Equal(t, task.Day("Sunday"), week[6].Day)
	assert.NotNil(t, week[6].Tasks)
}

func TestAgencyQueries_Defaults(t *testing.T) {
	deps := newDeps(t, nil, nil)
	h := NewAgencyQueryHandler(deps)
	ctx := context.Background()
	q := TenantQuery{AgencyID: demo}

	settings, err := h.Settings(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, agency.DefaultAgencyName, settings.AgencyName)
	assert.True(t, settings.Notifications.EmailOnVisa)

	partners, err := h.Partners(ctx, q)
	require.NoError(t, err)
	assert.Len(t, partners, 5)

	claims, err := h.Claims(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, claims)
	assert.NotNil(t, claims)
}

func TestAgencyQueries_ActivityLimit(t *testing.T) {
	deps := newDeps(t, nil, nil)
	ctx := context.Background()

	log, err := deps.Agency.Activity(ctx, demo)
	require.NoError(t, err)
	for i := 0; i < 60; i++ {
		log.Append(agency.NewActivityEntry(agency.ActionCreate, "Student", "entry", "Hari", now))
	}
	require.NoError(t, deps.Agency.SaveActivity(ctx, demo, log))

	h := NewAgencyQueryHandler(deps)
	entries, err := h.Activity(ctx, ActivityQuery{TenantQuery: TenantQuery{AgencyID: demo}})
	require.NoError(t, err)
	assert.Len(t, entries, 50)

	entries, err = h.Activity(ctx, ActivityQuery{TenantQuery: TenantQuery{AgencyID: demo}, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

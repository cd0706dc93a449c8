package student

import (
	"errors"
	"testing"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)

func TestStateMachine_UnrestrictedTransitions(t *testing.T) {
	m := NewStateMachine()
	r := newRoster(t, "A")
	s := r.Students[0]

	for _, from := range Statuses() {
		for _, to := range Statuses() {
			s.Status = from
			tr, err := m.RequestTransition(s, to, r.Resolver(), testNow)
			require.NoError(t, err, "%s -> %s", from, to)
			assert.Equal(t, from, tr.From)
			assert.Equal(t, to, tr.To)
			assert.Equal(t, to, s.Status)
		}
	}
}

func TestStateMachine_BlockedTransitionDoesNotMutate(t *testing.T) {
	m := NewStateMachine()
	r := newRoster(t, "A", "B")
	a, b := r.Students[0], r.Students[1]
	b.BlockedBy = []string{a.ID}

	_, err := m.RequestTransition(b, StatusApplied, r.Resolver(), testNow)
	require.Error(t, err)

	var blocked *BlockedTransitionError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, "A", blocked.BlockerName)
	assert.Equal(t, a.ID, blocked.BlockerID)
	assert.True(t, errors.Is(err, ErrBlockedTransition))
	assert.True(t, errors.Is(err, shared.ErrStateTransition))
	assert.Equal(t, StatusLead, b.Status)
	assert.True(t, b.UpdatedAt.IsZero())
}

func TestStateMachine_UnblockedAfterBlockerGranted(t *testing.T) {
	m := NewStateMachine()
	r := newRoster(t, "A", "B")
	a, b := r.Students[0], r.Students[1]
	b.BlockedBy = []string{a.ID}

	_, err := m.RequestTransition(b, StatusApplied, r.Resolver(), testNow)
	require.Error(t, err)

	tr, err := m.RequestTransition(a, StatusVisaGranted, r.Resolver(), testNow)
	require.NoError(t, err)
	assert.True(t, tr.CommissionPrompt)

	tr, err = m.RequestTransition(b, StatusApplied, r.Resolver(), testNow)
	require.NoError(t, err)
	assert.False(t, tr.CommissionPrompt)
	assert.Equal(t, StatusApplied, b.Status)
}

func TestStateMachine_UnknownStatus(t *testing.T) {
	m := NewStateMachine()
	r := newRoster(t, "A")

	_, err := m.RequestTransition(r.Students[0], ApplicationStatus("Graduated"), r.Resolver(), testNow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownStatus))
	assert.True(t, errors.Is(err, shared.ErrConfiguration))
	assert.Equal(t, StatusLead, r.Students[0].Status)
}

func TestStateMachine_ReentryIsAllowed(t *testing.T) {
	m := NewStateMachine()
	r := newRoster(t, "A")
	s := r.Students[0]
	s.Status = StatusVisaGranted

	tr, err := m.RequestTransition(s, StatusVisaGranted, r.Resolver(), testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusVisaGranted, tr.From)
	assert.Equal(t, StatusVisaGranted, tr.To)
}

func TestNewStudent_Defaults(t *testing.T) {
	s, err := NewStudent(NewStudentParams{Name: "  Ram Karki ", Email: "Ram@Example.com", TargetCountry: CountryAustralia})
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "Ram Karki", s.Name)
	assert.Equal(t, shared.Email("ram@example.com"), s.Email)
	assert.Equal(t, StatusLead, s.Status)
	assert.Equal(t, NocNotApplied, s.NocStatus)
	assert.Empty(t, s.BlockedBy)
	assert.False(t, s.IsNocTracked())

	_, err = NewStudent(NewStudentParams{Name: "", TargetCountry: CountryAustralia})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = NewStudent(NewStudentParams{Name: "X", TargetCountry: "India"})
	assert.ErrorIs(t, err, ErrUnknownCountry)
}

func TestStudent_NocTracking(t *testing.T) {
	s := newTestStudent(t, "1", "A", CountryAustralia)
	require.NoError(t, s.UpdateNoc(NocVoucherReceived))
	assert.True(t, s.IsNocTracked())

	require.NoError(t, s.UpdateNoc(NocNotApplied))
	s.Status = StatusOfferReceived
	assert.True(t, s.IsNocTracked())

	assert.ErrorIs(t, s.UpdateNoc(NocStatus("Lost")), ErrInvalidNocStatus)
}

func TestStudent_CloneIsDeep(t *testing.T) {
	s := newTestStudent(t, "1", "A", CountryAustralia)
	s.BlockedBy = []string{"b"}
	s.Documents["Passport (Valid 6mo+)"] = DocumentUploaded

	c := s.Clone()
	c.BlockedBy[0] = "z"
	c.Documents["Passport (Valid 6mo+)"] = DocumentPending

	assert.Equal(t, "b", s.BlockedBy[0])
	assert.Equal(t, DocumentUploaded, s.Documents["Passport (Valid 6mo+)"])
}

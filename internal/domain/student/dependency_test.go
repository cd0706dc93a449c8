package student

import (
	"errors"
	"testing"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoster(t *testing.T, names ...string) *Roster {
	t.Helper()
	r := &Roster{}
	for i, name := range names {
		s := newTestStudent(t, string(rune('a'+i)), name, CountryAustralia)
		r.Students = append(r.Students, s)
	}
	return r
}

func TestIsBlocked_EmptyBlockedBy(t *testing.T) {
	r := newRoster(t, "A")
	assert.False(t, IsBlocked(r.Students[0], r.Resolver()).Blocked)
}

func TestIsBlocked_FirstUnfinishedBlockerReported(t *testing.T) {
	r := newRoster(t, "A", "B", "C")
	a, b, c := r.Students[0], r.Students[1], r.Students[2]
	b.Status = StatusVisaGranted
	a.BlockedBy = []string{b.ID, c.ID}

	status := IsBlocked(a, r.Resolver())
	assert.True(t, status.Blocked)
	assert.Equal(t, "C", status.BlockerName)
	assert.Equal(t, c.ID, status.BlockerID)

	b.Status = StatusApplied
	assert.Equal(t, "B", IsBlocked(a, r.Resolver()).BlockerName)
}

func TestIsBlocked_AllGrantedUnblocks(t *testing.T) {
	r := newRoster(t, "A", "B", "C")
	a := r.Students[0]
	a.BlockedBy = []string{r.Students[1].ID, r.Students[2].ID}
	r.Students[1].Status = StatusVisaGranted
	r.Students[2].Status = StatusVisaGranted

	assert.False(t, IsBlocked(a, r.Resolver()).Blocked)
}

func TestIsBlocked_DanglingBlockerDoesNotBlock(t *testing.T) {
	r := newRoster(t, "A")
	a := r.Students[0]
	a.BlockedBy = []string{"deleted-student-id"}

	assert.False(t, IsBlocked(a, r.Resolver()).Blocked)
}

func TestIsBlocked_RejectedBlockerStillBlocks(t *testing.T) {
	r := newRoster(t, "A", "B")
	r.Students[1].Status = StatusVisaRejected
	r.Students[0].BlockedBy = []string{r.Students[1].ID}

	assert.True(t, IsBlocked(r.Students[0], r.Resolver()).Blocked)
}

func TestGraph_BlockSelfIsNoop(t *testing.T) {
	r := newRoster(t, "A")
	g := r.Graph()

	added, err := g.Block("a", "a")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Empty(t, r.Students[0].BlockedBy)
}

func TestGraph_BlockIsIdempotent(t *testing.T) {
	r := newRoster(t, "A", "B")
	g := r.Graph()

	added, err := g.Block("a", "b")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = g.Block("a", "b")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, []string{"b"}, r.Students[0].BlockedBy)
}

func TestGraph_BlockUnknownStudents(t *testing.T) {
	r := newRoster(t, "A")
	g := r.Graph()

	_, err := g.Block("zzz", "a")
	assert.ErrorIs(t, err, ErrStudentNotFound)

	_, err = g.Block("a", "zzz")
	assert.ErrorIs(t, err, ErrStudentNotFound)
	assert.True(t, shared.IsNotFound(err))
}

func TestGraph_RejectsCycles(t *testing.T) {
	r := newRoster(t, "A", "B", "C")
	g := r.Graph()

	_, err := g.Block("a", "b")
	require.NoError(t, err)
	_, err = g.Block("b", "c")
	require.NoError(t, err)

	// c -> a would close a -> b -> c -> a
	_, err = g.Block("c", "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCyclicDependency))
	assert.True(t, shared.IsValidation(err))
	assert.Empty(t, r.Students[2].BlockedBy)

	// direct two-node cycle
	_, err = g.Block("b", "a")
	assert.ErrorIs(t, err, ErrCyclicDependency)

	assert.False(t, g.HasCycle())
}

func TestGraph_CycleCheckSkipsDanglingIds(t *testing.T) {
	r := newRoster(t, "A", "B")
	r.Students[1].BlockedBy = []string{"ghost"}
	g := r.Graph()

	added, err := g.Block("a", "b")
	require.NoError(t, err)
	assert.True(t, added)
}

func TestGraph_Unblock(t *testing.T) {
	r := newRoster(t, "A", "B", "C")
	r.Students[0].BlockedBy = []string{"b", "c"}
	g := r.Graph()

	removed, err := g.Unblock("a", "b")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"c"}, r.Students[0].BlockedBy)

	removed, err = g.Unblock("a", "b")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestGraph_HasCycleOnLegacyData(t *testing.T) {
	r := newRoster(t, "A", "B")
	r.Students[0].BlockedBy = []string{"b"}
	r.Students[1].BlockedBy = []string{"a"}

	assert.True(t, r.Graph().HasCycle())
}

func TestGraph_Dependents(t *testing.T) {
	r := newRoster(t, "A", "B", "C")
	r.Students[1].BlockedBy = []string{"a"}
	r.Students[2].BlockedBy = []string{"a"}

	deps := r.Graph().Dependents("a")
	assert.Len(t, deps, 2)
}

func TestRoster_ListFilterAndOrder(t *testing.T) {
	r := newRoster(t, "Ram Karki", "Sita Sharma")
	r.Students[1].CreatedAt = r.Students[0].CreatedAt.Add(time.Hour)
	r.Students[1].Status = StatusApplied

	all := r.List(Filter{})
	require.Len(t, all, 2)
	assert.Equal(t, "Sita Sharma", all[0].Name)

	applied := r.List(Filter{Status: StatusApplied})
	require.Len(t, applied, 1)

	found := r.List(Filter{Query: "karki"})
	require.Len(t, found, 1)
	assert.Equal(t, "Ram Karki", found[0].Name)
}

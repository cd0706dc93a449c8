// Package command contains write operations (CQRS - Commands).
//
// Every handler runs its read-modify-write cycle under the tenant lock and
// publishes the resulting events only after the lock is released, so that
// synchronous subscribers may start their own cycles.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sagenius/agency-crm/internal/application/feature"
	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
	"github.com/sagenius/agency-crm/internal/domain/task"
	"github.com/sagenius/agency-crm/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HANDLER DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Deps bundles the collaborators shared by the write handlers.
type Deps struct {
	Students  student.Repository
	Tasks     task.Repository
	Agency    agency.Repository
	Locker    shared.TenantLocker
	Publisher shared.EventPublisher
	Catalog   *student.Catalog
	Features  feature.Gate
	Clock     shared.Clock
	Logger    *slog.Logger

	// Retrier re-runs a cycle that lost a revision check. Nil uses
	// retry.ConflictRetrier.
	Retrier *retry.Retrier
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = shared.SystemClock(time.UTC)
	}
	if d.Catalog == nil {
		d.Catalog = student.DefaultCatalog()
	}
	if d.Features == nil {
		d.Features = feature.Defaults()
	}
	if d.Retrier == nil {
		d.Retrier = retry.ConflictRetrier(shared.IsConcurrentModification)
	}
	return d
}

// enabled reports whether a toggle is on for the agency.
func (d Deps) enabled(name string, agencyID shared.AgencyID) bool {
	return d.Features.EnabledFor(name, agencyID.String())
}

// inTenant runs fn under the agency lock. A concurrent-modification error
// from fn releases the lock and retries the whole cycle.
func (d Deps) inTenant(ctx context.Context, agencyID shared.AgencyID, fn func(ctx context.Context) error) error {
	return d.Retrier.Do(ctx, func(ctx context.Context) error {
		unlock, err := d.Locker.LockTenant(ctx, agencyID)
		if err != nil {
			return err
		}
		defer unlock()
		return fn(ctx)
	})
}

// publish sends events after the cycle is committed. Subscriber failures are
// logged; the write already happened.
func (d Deps) publish(events []shared.Event) {
	if d.Publisher == nil {
		return
	}
	for _, e := range events {
		if err := d.Publisher.Publish(e); err != nil {
			d.Logger.Warn("event publish failed",
				"event_type", string(e.EventType()),
				"agency_id", e.AgencyID(),
				"error", err,
			)
		}
	}
}

// record appends activity entries. Called with the tenant lock held.
// A failure is logged and does not fail the command.
func (d Deps) record(ctx context.Context, agencyID shared.AgencyID, entries ...agency.ActivityEntry) {
	if len(entries) == 0 {
		return
	}
	err := RecordActivity(ctx, d.Agency, agencyID, entries...)
	if err != nil {
		d.Logger.Warn("activity log write failed",
			"agency_id", agencyID.String(),
			"entries", len(entries),
			"error", err,
		)
	}
}

// RecordActivity appends entries to the agency journal in one write.
// The caller holds the tenant lock.
func RecordActivity(ctx context.Context, repo agency.Repository, agencyID shared.AgencyID, entries ...agency.ActivityEntry) error {
	log, err := repo.Activity(ctx, agencyID)
	if err != nil {
		return fmt.Errorf("load activity: %w", err)
	}
	log.Append(entries...)
	if err := repo.SaveActivity(ctx, agencyID, log); err != nil {
		return fmt.Errorf("save activity: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMON VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// authorizeWriter checks the tenant and write permission of an actor.
func authorizeWriter(op string, user agency.User) error {
	if !user.AgencyID.IsValid() {
		return fmt.Errorf("%s: %w", op, shared.ErrAgencyRequired)
	}
	if err := user.RequireWriter(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func invalidInput(op, message string) error {
	return shared.NewDomainError(op, "Validate", shared.ErrInvalidInput, message)
}

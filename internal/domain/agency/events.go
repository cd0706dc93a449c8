package agency

import (
	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// CommissionClaimedEvent - создана заявка на комиссию.
type CommissionClaimedEvent struct {
	shared.BaseEvent
	Claim CommissionClaim
}

// Payload реализует shared.Event.
func (e CommissionClaimedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"claim_id":     e.Claim.ID,
		"student_id":   e.Claim.StudentID,
		"partner_id":   e.Claim.PartnerID,
		"partner_name": e.Claim.PartnerName,
		"amount":       e.Claim.Amount,
	}
}

// NewCommissionClaimedEvent создаёт событие заявки на комиссию.
func NewCommissionClaimedEvent(agencyID string, c *CommissionClaim) CommissionClaimedEvent {
	base := shared.NewBaseEvent(shared.EventCommissionClaimed, agencyID, c.StudentID).At(c.CreatedAt)
	return CommissionClaimedEvent{BaseEvent: base, Claim: *c}
}

package command

import (
	"context"
	"fmt"

	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLAIM COMMISSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ClaimCommissionCommand records a commission claim against a partner.
type ClaimCommissionCommand struct {
	User      agency.User
	StudentID string
	PartnerID string
	Amount    float64
}

// Validate validates the command.
func (c ClaimCommissionCommand) Validate() error {
	if err := authorizeWriter("claim_commission", c.User); err != nil {
		return err
	}
	if c.StudentID == "" {
		return invalidInput("claim_commission", "student_id is required")
	}
	if c.PartnerID == "" {
		return invalidInput("claim_commission", "partner_id is required")
	}
	if c.Amount <= 0 {
		return shared.ErrInvalidClaimAmount
	}
	return nil
}

// ClaimCommissionResult contains the created claim.
type ClaimCommissionResult struct {
	Claim  *agency.CommissionClaim
	Events []shared.Event
}

// ClaimCommissionHandler handles ClaimCommissionCommand.
type ClaimCommissionHandler struct {
	deps Deps
}

// NewClaimCommissionHandler creates a new ClaimCommissionHandler.
func NewClaimCommissionHandler(deps Deps) *ClaimCommissionHandler {
	return &ClaimCommissionHandler{deps: deps.withDefaults()}
}

// Handle executes the command. The student must already have a visa.
func (h *ClaimCommissionHandler) Handle(ctx context.Context, cmd ClaimCommissionCommand) (*ClaimCommissionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("claim_commission: validation failed: %w", err)
	}
	agencyID := cmd.User.AgencyID

	var result *ClaimCommissionResult
	err := h.deps.inTenant(ctx, agencyID, func(ctx context.Context) error {
		roster, err := h.deps.Students.Load(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("load students: %w", err)
		}
		s, err := roster.Get(cmd.StudentID)
		if err != nil {
			return err
		}

		book, err := h.deps.Agency.Partners(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("load partners: %w", err)
		}
		partner, err := agency.FindPartner(book.Partners, cmd.PartnerID)
		if err != nil {
			return err
		}

		now := h.deps.Clock()
		claim, err := agency.NewCommissionClaim(s, partner, cmd.Amount, now)
		if err != nil {
			return err
		}

		ledger, err := h.deps.Agency.Claims(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("load claims: %w", err)
		}
		ledger.Add(claim)
		if err := h.deps.Agency.SaveClaims(ctx, agencyID, ledger); err != nil {
			return fmt.Errorf("save claims: %w", err)
		}

		h.deps.record(ctx, agencyID, agency.NewActivityEntry(
			agency.ActionCommission, "Claim",
			fmt.Sprintf("Claimed %.2f from %s for %s", claim.Amount, claim.PartnerName, claim.StudentName),
			cmd.User.DisplayName(), now))

		result = &ClaimCommissionResult{
			Claim:  claim,
			Events: []shared.Event{agency.NewCommissionClaimedEvent(agencyID.String(), claim)},
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim_commission: %w", err)
	}

	h.deps.publish(result.Events)
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE SETTINGS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateSettingsCommand replaces the agency settings. Owner only.
type UpdateSettingsCommand struct {
	User     agency.User
	Settings agency.Settings
}

// Validate validates the command.
func (c UpdateSettingsCommand) Validate() error {
	if !c.User.AgencyID.IsValid() {
		return shared.ErrAgencyRequired
	}
	if err := c.User.RequireOwner(); err != nil {
		return err
	}
	return c.Settings.WithDefaults().Validate()
}

// UpdateSettingsHandler handles UpdateSettingsCommand.
type UpdateSettingsHandler struct {
	deps Deps
}

// NewUpdateSettingsHandler creates a new UpdateSettingsHandler.
func NewUpdateSettingsHandler(deps Deps) *UpdateSettingsHandler {
	return &UpdateSettingsHandler{deps: deps.withDefaults()}
}

// Handle executes the command. Empty template fields fall back to defaults.
func (h *UpdateSettingsHandler) Handle(ctx context.Context, cmd UpdateSettingsCommand) (*agency.Settings, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_settings: validation failed: %w", err)
	}
	agencyID := cmd.User.AgencyID

	var saved agency.Settings
	err := h.deps.inTenant(ctx, agencyID, func(ctx context.Context) error {
		rec, err := h.deps.Agency.Settings(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		now := h.deps.Clock()
		rec.Settings = cmd.Settings.WithDefaults()
		rec.Settings.UpdatedAt = now
		if err := h.deps.Agency.SaveSettings(ctx, agencyID, rec); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}

		h.deps.record(ctx, agencyID, agency.NewActivityEntry(
			agency.ActionSettings, "Settings", "Updated agency settings", cmd.User.DisplayName(), now))

		saved = rec.Settings
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update_settings: %w", err)
	}
	return &saved, nil
}

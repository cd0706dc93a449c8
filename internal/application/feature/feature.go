// Package feature names the runtime toggles the application layer consults
// and the gate interface that evaluates them per agency.
package feature

// Toggle names. The FEATURE_<NAME> environment variables in config use the
// upper-cased form of these strings.
const (
	// WorkflowAutomation turns the status-change task generator on.
	WorkflowAutomation = "workflow_automation"

	// DueSoonNotifications turns the due-soon reminder job on.
	DueSoonNotifications = "due_soon_notifications"

	// ExcludeWaivedDocuments removes Not Required documents from the progress denominator.
	ExcludeWaivedDocuments = "exclude_waived_documents"

	// CountryLock rejects a country change once a country-specific document is uploaded.
	CountryLock = "country_lock"

	// EmailOnVisa allows the visa congratulation email.
	EmailOnVisa = "email_on_visa"

	// SeedDemoData seeds the demo agency on startup.
	SeedDemoData = "seed_demo_data"
)

// Gate reports whether a toggle is on for an agency.
type Gate interface {
	EnabledFor(name, agencyID string) bool
}

// Static is a fixed Gate. Names missing from the map are off.
type Static map[string]bool

// EnabledFor implements Gate.
func (s Static) EnabledFor(name, _ string) bool {
	return s[name]
}

// Defaults returns the default state of every toggle.
func Defaults() Static {
	return Static{
		WorkflowAutomation:     true,
		DueSoonNotifications:   true,
		ExcludeWaivedDocuments: false,
		CountryLock:            true,
		EmailOnVisa:            true,
		SeedDemoData:           true,
	}
}

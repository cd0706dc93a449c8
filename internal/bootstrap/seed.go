package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEMO DATA
// ══════════════════════════════════════════════════════════════════════════════

// demoStudent describes one seeded student.
type demoStudent struct {
	id        string
	name      string
	email     string
	phone     string
	country   student.Country
	status    student.ApplicationStatus
	noc       student.NocStatus
	uploaded  []string
	blockedBy []string
}

var demoStudents = []demoStudent{
	{
		id: "demo-ram", name: "Ram Karki", email: "ram.karki@example.com", phone: "+9779801234567",
		country: student.CountryAustralia, status: student.StatusApplied, noc: student.NocApplied,
		uploaded: []string{"Passport (Valid 6mo+)", "SLC/SEE Marksheet"},
	},
	{
		id: "demo-sita", name: "Sita Karki", email: "sita.karki@example.com", phone: "+9779812345678",
		country: student.CountryAustralia, status: student.StatusOfferReceived, noc: student.NocVoucherReceived,
		uploaded:  []string{"Passport (Valid 6mo+)", "SLC/SEE Marksheet", "IELTS/PTE Scorecard"},
		blockedBy: []string{"demo-ram"},
	},
	{
		id: "demo-anish", name: "Anish Shrestha", email: "anish.s@example.com", phone: "+9779841122334",
		country: student.CountryUSA, status: student.StatusVisaGranted, noc: student.NocIssued,
		uploaded: []string{"Passport (Valid 6mo+)", "I-20 Form", "DS-160 Confirmation", "SEVIS Fee Receipt"},
	},
	{
		id: "demo-priya", name: "Priya Gurung", email: "priya.gurung@example.com", phone: "+9779865544332",
		country: student.CountryCanada, status: student.StatusLead, noc: student.NocNotApplied,
	},
}

// SeedDemo fills an empty agency with partners, students and bookkeeping
// rows. It returns false without writing when the agency already has students.
// The caller holds no lock; seeding runs before the API starts serving.
func SeedDemo(ctx context.Context, stores *Stores, catalog *student.Catalog, agencyID shared.AgencyID, now time.Time) (bool, error) {
	roster, err := stores.Students.Load(ctx, agencyID)
	if err != nil {
		return false, fmt.Errorf("seed: load students: %w", err)
	}
	if len(roster.Students) > 0 {
		return false, nil
	}

	// Added oldest first so the newest lands on top of the roster.
	for i := len(demoStudents) - 1; i >= 0; i-- {
		d := demoStudents[i]
		s, err := student.NewStudent(student.NewStudentParams{
			ID:            d.id,
			Name:          d.name,
			Email:         d.email,
			Phone:         d.phone,
			TargetCountry: d.country,
			CreatedAt:     now.Add(-time.Duration(i+1) * 24 * time.Hour).UTC(),
		})
		if err != nil {
			return false, fmt.Errorf("seed: student %s: %w", d.name, err)
		}
		s.Status = d.status
		s.NocStatus = d.noc
		for _, name := range d.uploaded {
			if err := s.SetDocumentStatus(catalog, name, student.DocumentUploaded); err != nil {
				return false, fmt.Errorf("seed: %s document %q: %w", d.name, name, err)
			}
		}
		roster.Add(s)
	}

	graph := roster.Graph()
	for _, d := range demoStudents {
		for _, blocker := range d.blockedBy {
			if _, err := graph.Block(d.id, blocker); err != nil {
				return false, fmt.Errorf("seed: block %s by %s: %w", d.id, blocker, err)
			}
		}
	}

	if err := stores.Students.Store(ctx, agencyID, roster); err != nil {
		return false, fmt.Errorf("seed: save students: %w", err)
	}

	book, err := stores.Agency.Partners(ctx, agencyID)
	if err != nil {
		return false, fmt.Errorf("seed: load partners: %w", err)
	}
	book.Partners = agency.DefaultPartners()
	if err := stores.Agency.SavePartners(ctx, agencyID, book); err != nil {
		return false, fmt.Errorf("seed: save partners: %w", err)
	}

	created := now.UTC()
	invoices := []agency.Invoice{
		{ID: "inv-1001", StudentID: "demo-ram", StudentName: "Ram Karki", Amount: 25000, Status: "Paid", DueDate: now.AddDate(0, 0, -10).Format(time.DateOnly), CreatedAt: created},
		{ID: "inv-1002", StudentID: "demo-sita", StudentName: "Sita Karki", Amount: 30000, Status: "Pending", DueDate: now.AddDate(0, 0, 7).Format(time.DateOnly), CreatedAt: created},
		{ID: "inv-1003", StudentID: "demo-anish", StudentName: "Anish Shrestha", Amount: 45000, Status: "Overdue", DueDate: now.AddDate(0, 0, -3).Format(time.DateOnly), CreatedAt: created},
	}
	if err := stores.Agency.SaveInvoices(ctx, agencyID, invoices); err != nil {
		return false, fmt.Errorf("seed: save invoices: %w", err)
	}

	expenses := []agency.Expense{
		{ID: "exp-1", Category: "Rent", Description: "Office rent, Putalisadak", Amount: 60000, Date: now.AddDate(0, 0, -5).Format(time.DateOnly), CreatedAt: created},
		{ID: "exp-2", Category: "Marketing", Description: "Education fair stall", Amount: 18000, Date: now.AddDate(0, 0, -2).Format(time.DateOnly), CreatedAt: created},
	}
	if err := stores.Agency.SaveExpenses(ctx, agencyID, expenses); err != nil {
		return false, fmt.Errorf("seed: save expenses: %w", err)
	}

	log, err := stores.Agency.Activity(ctx, agencyID)
	if err != nil {
		return false, fmt.Errorf("seed: load activity: %w", err)
	}
	log.Append(agency.NewActivityEntry("Seed", "Agency",
		fmt.Sprintf("Loaded %d demo students", len(demoStudents)), "System", created))
	if err := stores.Agency.SaveActivity(ctx, agencyID, log); err != nil {
		return false, fmt.Errorf("seed: save activity: %w", err)
	}

	return true, nil
}

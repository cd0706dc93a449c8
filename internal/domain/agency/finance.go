package agency

import (
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// PARTNERS
// ══════════════════════════════════════════════════════════════════════════════

// PartnerType - вид партнёра.
type PartnerType string

const (
	PartnerUniversity  PartnerType = "University"
	PartnerAggregator  PartnerType = "Aggregator"
	PartnerCollege     PartnerType = "College"
	PartnerConsultancy PartnerType = "Consultancy"
)

// Partner - учебное заведение или агрегатор, выплачивающий комиссию.
type Partner struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Type           PartnerType `json:"type"`
	CommissionRate float64     `json:"commissionRate"`
}

// DefaultPartners возвращает стартовый каталог партнёров.
func DefaultPartners() []Partner {
	return []Partner{
		{ID: "p1", Name: "Flinders University", Type: PartnerUniversity, CommissionRate: 15},
		{ID: "p2", Name: "ApplyBoard", Type: PartnerAggregator, CommissionRate: 20},
		{ID: "p3", Name: "Torrens University", Type: PartnerUniversity, CommissionRate: 12},
		{ID: "p4", Name: "Excelsia College", Type: PartnerCollege, CommissionRate: 25},
		{ID: "p5", Name: "Global Reach", Type: PartnerConsultancy, CommissionRate: 10},
	}
}

// FindPartner ищет партнёра по id.
func FindPartner(partners []Partner, id string) (Partner, error) {
	for _, p := range partners {
		if p.ID == id {
			return p, nil
		}
	}
	return Partner{}, shared.ErrPartnerNotFound
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMISSION CLAIMS
// ══════════════════════════════════════════════════════════════════════════════

// ClaimStatus - состояние заявки на комиссию.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "Pending"
	ClaimReceived ClaimStatus = "Received"
)

// CommissionClaim - заявка на комиссию за студента с полученной визой.
type CommissionClaim struct {
	ID          string      `json:"id"`
	StudentID   string      `json:"studentId"`
	StudentName string      `json:"studentName"`
	PartnerID   string      `json:"partnerId"`
	PartnerName string      `json:"partnerName"`
	Amount      float64     `json:"amount"`
	Status      ClaimStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// ErrClaimRequiresVisa - комиссию можно заявить только после визы.
var ErrClaimRequiresVisa = shared.NewDomainError("agency", "ClaimCommission", shared.ErrStateTransition,
	"commission can only be claimed for a student with Visa Granted")

// NewCommissionClaim создаёт заявку. Студент должен быть в статусе Visa Granted.
func NewCommissionClaim(s *student.Student, p Partner, amount float64, now time.Time) (*CommissionClaim, error) {
	if s.Status != student.StatusVisaGranted {
		return nil, ErrClaimRequiresVisa
	}
	if amount <= 0 {
		return nil, shared.ErrInvalidClaimAmount
	}
	return &CommissionClaim{
		ID:          shared.NewID(),
		StudentID:   s.ID,
		StudentName: s.Name,
		PartnerID:   p.ID,
		PartnerName: p.Name,
		Amount:      amount,
		Status:      ClaimPending,
		CreatedAt:   now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// INVOICES & EXPENSES
// Ведутся вне движка; API отдаёт их только на чтение.
// ══════════════════════════════════════════════════════════════════════════════

// Invoice - счёт, выставленный студенту или партнёру.
type Invoice struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"studentId,omitempty"`
	StudentName string    `json:"studentName"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	DueDate     string    `json:"dueDate"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Expense - расход агентства.
type Expense struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
}

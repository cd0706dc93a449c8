package agency

import (
	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTITY & ROLES
// ══════════════════════════════════════════════════════════════════════════════

// Role - роль пользователя в агентстве.
type Role string

const (
	RoleOwner      Role = "Owner"
	RoleCounsellor Role = "Counsellor"
	RoleViewer     Role = "Viewer"
	RoleStudent    Role = "Student"
)

// IsValid проверяет корректность роли.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleCounsellor, RoleViewer, RoleStudent:
		return true
	default:
		return false
	}
}

// CanWrite - может ли роль изменять данные агентства.
func (r Role) CanWrite() bool {
	return r == RoleOwner || r == RoleCounsellor
}

// User - аутентифицированный пользователь.
type User struct {
	ID       string
	Name     string
	Role     Role
	AgencyID shared.AgencyID
}

// NewUser создаёт пользователя с валидацией.
func NewUser(id, name string, role Role, agencyID shared.AgencyID) (User, error) {
	if !agencyID.IsValid() {
		return User{}, shared.ErrAgencyRequired
	}
	if !role.IsValid() {
		return User{}, shared.ErrInvalidRole
	}
	if id == "" {
		return User{}, shared.NewDomainError("agency", "NewUser", shared.ErrInvalidID, "user id is required")
	}
	return User{ID: id, Name: name, Role: role, AgencyID: agencyID}, nil
}

// DisplayName возвращает имя для журнала действий.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

// RequireWriter возвращает ErrReadOnlyRole для Viewer и Student.
func (u User) RequireWriter() error {
	if !u.Role.CanWrite() {
		return shared.ErrReadOnlyRole
	}
	return nil
}

// RequireOwner возвращает ErrOwnerRequired для всех, кроме Owner.
func (u User) RequireOwner() error {
	if u.Role != RoleOwner {
		return shared.ErrOwnerRequired
	}
	return nil
}

// SystemUser - пользователь для фоновых процессов (планировщик, автоматизация).
func SystemUser(agencyID shared.AgencyID) User {
	return User{ID: "system", Name: "Workflow Engine", Role: RoleOwner, AgencyID: agencyID}
}

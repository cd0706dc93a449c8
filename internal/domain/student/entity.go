package student

import (
	"errors"
	"strings"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Country - страна назначения, для которой ведётся заявка.
type Country string

const (
	CountryUSA       Country = "USA"
	CountryAustralia Country = "Australia"
	CountryCanada    Country = "Canada"
	CountryUK        Country = "UK"
	CountryJapan     Country = "Japan"
	CountryKorea     Country = "Korea"
)

// Countries возвращает все поддерживаемые страны в порядке объявления.
func Countries() []Country {
	return []Country{CountryUSA, CountryAustralia, CountryCanada, CountryUK, CountryJapan, CountryKorea}
}

// IsValid проверяет, что страна входит в перечисление.
func (c Country) IsValid() bool {
	switch c {
	case CountryUSA, CountryAustralia, CountryCanada, CountryUK, CountryJapan, CountryKorea:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление страны.
func (c Country) String() string {
	return string(c)
}

// ParseCountry разбирает страну без учёта регистра.
func ParseCountry(raw string) (Country, error) {
	for _, c := range Countries() {
		if strings.EqualFold(string(c), strings.TrimSpace(raw)) {
			return c, nil
		}
	}
	return "", UnknownCountry(Country(raw))
}

// ApplicationStatus - этап воронки заявки студента.
type ApplicationStatus string

const (
	// StatusLead - новый лид, заявка ещё не подана.
	StatusLead ApplicationStatus = "Lead"
	// StatusApplied - заявка подана в университет.
	StatusApplied ApplicationStatus = "Applied"
	// StatusOfferReceived - получен offer letter.
	StatusOfferReceived ApplicationStatus = "Offer Received"
	// StatusVisaGranted - виза одобрена.
	StatusVisaGranted ApplicationStatus = "Visa Granted"
	// StatusVisaRejected - в визе отказано.
	StatusVisaRejected ApplicationStatus = "Visa Rejected"
)

// Statuses возвращает статусы в порядке воронки.
func Statuses() []ApplicationStatus {
	return []ApplicationStatus{StatusLead, StatusApplied, StatusOfferReceived, StatusVisaGranted, StatusVisaRejected}
}

// IsValid проверяет, что статус корректен.
func (s ApplicationStatus) IsValid() bool {
	switch s {
	case StatusLead, StatusApplied, StatusOfferReceived, StatusVisaGranted, StatusVisaRejected:
		return true
	default:
		return false
	}
}

// Order возвращает позицию статуса в воронке, -1 для неизвестного.
func (s ApplicationStatus) Order() int {
	for i, st := range Statuses() {
		if st == s {
			return i
		}
	}
	return -1
}

// String возвращает строковое представление статуса.
func (s ApplicationStatus) String() string {
	return string(s)
}

// ParseStatus разбирает статус. Принимает и "Offer Received", и "OfferReceived".
func ParseStatus(raw string) (ApplicationStatus, error) {
	compact := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	for _, st := range Statuses() {
		if strings.EqualFold(strings.ReplaceAll(string(st), " ", ""), compact) {
			return st, nil
		}
	}
	return "", UnknownStatus(ApplicationStatus(raw))
}

// NocStatus - этап получения No Objection Certificate в Министерстве образования.
// Ведётся независимо от основного статуса заявки.
type NocStatus string

const (
	NocNotApplied      NocStatus = "Not Applied"
	NocApplied         NocStatus = "Applied"
	NocVoucherReceived NocStatus = "Voucher Received"
	NocVerified        NocStatus = "Verified"
	NocIssued          NocStatus = "Issued"
)

// IsValid проверяет корректность статуса NOC.
func (n NocStatus) IsValid() bool {
	switch n {
	case NocNotApplied, NocApplied, NocVoucherReceived, NocVerified, NocIssued:
		return true
	default:
		return false
	}
}

// DocumentStatus - состояние одного требуемого документа.
type DocumentStatus string

const (
	// DocumentPending - документ ещё не получен (значение по умолчанию).
	DocumentPending DocumentStatus = "Pending"
	// DocumentUploaded - файл получен.
	DocumentUploaded DocumentStatus = "Uploaded"
	// DocumentNotRequired - оператор явно отметил документ как ненужный.
	DocumentNotRequired DocumentStatus = "NotRequired"
)

// IsValid проверяет корректность статуса документа.
func (d DocumentStatus) IsValid() bool {
	switch d {
	case DocumentPending, DocumentUploaded, DocumentNotRequired:
		return true
	default:
		return false
	}
}

// StoredFile - дескриптор файла, сохранённого во внешнем хранилище.
// Студент хранит только слабую ссылку, сам файл ему не принадлежит.
type StoredFile struct {
	Key        string    `json:"key"`
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimeType"`
	Checksum   string    `json:"checksum,omitempty"`
	Pages      int       `json:"pages,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
	UploadedBy string    `json:"uploadedBy"`
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - корень агрегата: студент агентства и его заявка.
type Student struct {
	// ID - непрозрачный уникальный идентификатор.
	ID string `json:"id"`

	// Name - полное имя студента.
	Name string `json:"name"`

	Email shared.Email `json:"email"`
	Phone shared.Phone `json:"phone"`

	// TargetCountry - страна назначения, определяет список документов.
	TargetCountry Country `json:"targetCountry"`

	// Status - текущий этап воронки. Меняется только через StateMachine.
	Status ApplicationStatus `json:"status"`

	// NocStatus - отдельный подпроцесс NOC.
	NocStatus NocStatus `json:"nocStatus"`

	// Documents - статус по имени документа. Отсутствующий ключ означает Pending.
	Documents map[string]DocumentStatus `json:"documents"`

	// DocumentFiles - прикреплённые файлы по имени документа.
	DocumentFiles map[string]StoredFile `json:"documentFiles,omitempty"`

	// BlockedBy - id студентов, которые блокируют смену статуса.
	// Порядок вставки значим: первый незавершённый блокер сообщается пользователю.
	BlockedBy []string `json:"blockedBy"`

	// Notes - заметки консультанта.
	Notes string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// DocumentStatusOf возвращает статус документа, Pending если ключа нет.
func (s *Student) DocumentStatusOf(name string) DocumentStatus {
	if st, ok := s.Documents[name]; ok && st.IsValid() {
		return st
	}
	return DocumentPending
}

// IsBlockedBy проверяет наличие блокера в списке.
func (s *Student) IsBlockedBy(id string) bool {
	for _, b := range s.BlockedBy {
		if b == id {
			return true
		}
	}
	return false
}

// Clone возвращает глубокую копию студента (снимок для событий).
func (s *Student) Clone() *Student {
	c := *s
	c.Documents = make(map[string]DocumentStatus, len(s.Documents))
	for k, v := range s.Documents {
		c.Documents[k] = v
	}
	if s.DocumentFiles != nil {
		c.DocumentFiles = make(map[string]StoredFile, len(s.DocumentFiles))
		for k, v := range s.DocumentFiles {
			c.DocumentFiles[k] = v
		}
	}
	c.BlockedBy = append([]string(nil), s.BlockedBy...)
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrStudentNotFound - студент не найден.
	ErrStudentNotFound = shared.NewDomainError("student", "Find", shared.ErrNotFound, "student not found")

	// ErrInvalidName - пустое или слишком длинное имя.
	ErrInvalidName = shared.NewDomainError("student", "Validate", shared.ErrInvalidInput, "name must be 1-120 chars")

	// ErrInvalidNocStatus - неизвестный статус NOC.
	ErrInvalidNocStatus = shared.NewDomainError("student", "UpdateNoc", shared.ErrInvalidInput, "invalid NOC status")

	// ErrInvalidDocumentStatus - неизвестный статус документа.
	ErrInvalidDocumentStatus = shared.NewDomainError("student", "SetDocument", shared.ErrInvalidInput, "invalid document status")

	// ErrDocumentNotRequired - документ не входит в список требований страны.
	ErrDocumentNotRequired = shared.NewDomainError("student", "SetDocument", shared.ErrInvalidInput, "document is not required for the target country")

	// ErrCountryLocked - смена страны запрещена, пока загружены документы этой страны.
	ErrCountryLocked = shared.NewDomainError("student", "ChangeCountry", shared.ErrInvalidState, "target country is locked by uploaded country-specific documents")

	// ErrBlockedTransition - базовая ошибка для BlockedTransitionError.
	ErrBlockedTransition = shared.NewDomainError("student", "Transition", shared.ErrStateTransition, "transition blocked by dependency")

	// ErrCyclicDependency - новая зависимость замкнула бы цикл.
	ErrCyclicDependency = shared.NewDomainError("student", "Block", shared.ErrInvalidInput, "dependency would create a cycle")

	// ErrUnknownCountry - для страны нет списка документов.
	ErrUnknownCountry = shared.NewDomainError("student", "Catalog", shared.ErrConfiguration, "unknown country")

	// ErrUnknownStatus - неизвестный статус заявки.
	ErrUnknownStatus = shared.NewDomainError("student", "Transition", shared.ErrConfiguration, "unknown application status")
)

// UnknownCountry возвращает ошибку конфигурации для страны без каталога.
func UnknownCountry(c Country) error {
	return shared.WrapError("student", "Catalog", shared.ErrConfiguration, "unknown country "+string(c), ErrUnknownCountry)
}

// UnknownStatus возвращает ошибку конфигурации для неизвестного статуса.
func UnknownStatus(s ApplicationStatus) error {
	return shared.WrapError("student", "Transition", shared.ErrConfiguration, "unknown status "+string(s), ErrUnknownStatus)
}

// BlockedTransitionError - смена статуса отклонена: есть незавершённый блокер.
type BlockedTransitionError struct {
	StudentID   string
	BlockerID   string
	BlockerName string
}

// Error реализует интерфейс error.
func (e *BlockedTransitionError) Error() string {
	return "student.Transition: blocked by " + e.BlockerName
}

// Is позволяет матчить ErrBlockedTransition и shared.ErrStateTransition.
func (e *BlockedTransitionError) Is(target error) bool {
	return target == ErrBlockedTransition || errors.Is(shared.ErrStateTransition, target)
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewStudentParams содержит параметры для создания нового студента.
type NewStudentParams struct {
	ID            string
	Name          string
	Email         string
	Phone         string
	TargetCountry Country
	Notes         string
	CreatedAt     time.Time
}

// NewStudent создаёт студента в статусе Lead с пустым набором документов.
func NewStudent(params NewStudentParams) (*Student, error) {
	name := strings.TrimSpace(params.Name)
	if len(name) == 0 || len(name) > 120 {
		return nil, ErrInvalidName
	}

	if !params.TargetCountry.IsValid() {
		return nil, UnknownCountry(params.TargetCountry)
	}

	email, err := shared.NewEmail(params.Email)
	if err != nil {
		return nil, err
	}

	id := params.ID
	if id == "" {
		id = shared.NewID()
	}

	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return &Student{
		ID:            id,
		Name:          name,
		Email:         email,
		Phone:         shared.Phone(strings.TrimSpace(params.Phone)),
		TargetCountry: params.TargetCountry,
		Status:        StatusLead,
		NocStatus:     NocNotApplied,
		Documents:     make(map[string]DocumentStatus),
		DocumentFiles: make(map[string]StoredFile),
		BlockedBy:     []string{},
		Notes:         strings.TrimSpace(params.Notes),
		CreatedAt:     createdAt,
	}, nil
}

// Rename меняет имя с валидацией.
func (s *Student) Rename(name string) error {
	name = strings.TrimSpace(name)
	if len(name) == 0 || len(name) > 120 {
		return ErrInvalidName
	}
	s.Name = name
	return nil
}

// UpdateNoc меняет статус NOC. Переходы не ограничены: оператор может исправить шаг.
func (s *Student) UpdateNoc(status NocStatus) error {
	if !status.IsValid() {
		return ErrInvalidNocStatus
	}
	s.NocStatus = status
	return nil
}

// IsNocTracked возвращает true, если студент должен попасть в NOC-трекер.
func (s *Student) IsNocTracked() bool {
	return (s.NocStatus != NocNotApplied && s.NocStatus != "") ||
		s.Status == StatusOfferReceived || s.Status == StatusVisaGranted
}

package student

import (
	"math"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// ProgressPolicy задаёт правило подсчёта процента готовности документов.
type ProgressPolicy struct {
	// ExcludeWaived исключает NotRequired документы из знаменателя.
	// По умолчанию выключено: NotRequired считается незавершённым документом.
	ExcludeWaived bool
}

// Progress вычисляет round(100 * C / |R|), где R - требуемые документы страны,
// C - сколько из них Uploaded. Для пустого R возвращает 0.
func Progress(s *Student, catalog *Catalog, policy ProgressPolicy) (int, error) {
	reqs, err := catalog.RequiredDocuments(s.TargetCountry)
	if err != nil {
		return 0, err
	}

	total, completed := 0, 0
	for _, r := range reqs {
		status := s.DocumentStatusOf(r.Name)
		if policy.ExcludeWaived && status == DocumentNotRequired {
			continue
		}
		total++
		if status == DocumentUploaded {
			completed++
		}
	}

	return percentage(completed, total), nil
}

func percentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// ChecklistItem - строка чек-листа документов студента.
type ChecklistItem struct {
	Requirement
	Status DocumentStatus `json:"status"`
	File   *StoredFile    `json:"file,omitempty"`
}

// Checklist возвращает статус каждого требуемого документа в порядке каталога.
func Checklist(s *Student, catalog *Catalog) ([]ChecklistItem, error) {
	reqs, err := catalog.RequiredDocuments(s.TargetCountry)
	if err != nil {
		return nil, err
	}

	items := make([]ChecklistItem, 0, len(reqs))
	for _, r := range reqs {
		item := ChecklistItem{Requirement: r, Status: s.DocumentStatusOf(r.Name)}
		if f, ok := s.DocumentFiles[r.Name]; ok {
			file := f
			item.File = &file
		}
		items = append(items, item)
	}
	return items, nil
}

// BundleRequirements - документы, без которых нельзя собрать пакет для партнёра.
var BundleRequirements = []string{"Passport (Valid 6mo+)", "SLC/SEE Marksheet"}

// MissingForBundle возвращает недостающие для пакета документы.
func MissingForBundle(s *Student) []string {
	var missing []string
	for _, name := range BundleRequirements {
		if s.DocumentStatusOf(name) != DocumentUploaded {
			missing = append(missing, name)
		}
	}
	return missing
}

// SetDocumentStatus меняет статус документа из набора страны студента.
func (s *Student) SetDocumentStatus(catalog *Catalog, name string, status DocumentStatus) error {
	if !status.IsValid() {
		return ErrInvalidDocumentStatus
	}
	_, ok, err := catalog.Lookup(s.TargetCountry, name)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDocumentNotRequired
	}
	if s.Documents == nil {
		s.Documents = make(map[string]DocumentStatus)
	}
	s.Documents[name] = status
	return nil
}

// AttachFile прикрепляет файл к документу и помечает документ Uploaded.
func (s *Student) AttachFile(catalog *Catalog, name string, file StoredFile) error {
	if err := s.SetDocumentStatus(catalog, name, DocumentUploaded); err != nil {
		return err
	}
	if s.DocumentFiles == nil {
		s.DocumentFiles = make(map[string]StoredFile)
	}
	s.DocumentFiles[name] = file
	return nil
}

// ChangeCountry меняет страну назначения. При lock=true смена запрещена,
// если уже загружен хотя бы один документ текущей страны.
func (s *Student) ChangeCountry(catalog *Catalog, country Country, lock bool) error {
	if !country.IsValid() {
		return UnknownCountry(country)
	}
	if country == s.TargetCountry {
		return nil
	}
	if lock && catalog.HasCountrySpecificUploads(s) {
		return ErrCountryLocked
	}
	s.TargetCountry = country
	return nil
}

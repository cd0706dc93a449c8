package repository

import (
	"context"
	"encoding/json"

	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/collection"
)

// StudentRepository implements student.Repository.
type StudentRepository struct {
	store collection.Store
}

// NewStudentRepository creates a repository over store.
func NewStudentRepository(store collection.Store) *StudentRepository {
	return &StudentRepository{store: store}
}

// studentRecord shadows Documents so legacy values can be normalized.
type studentRecord struct {
	*student.Student
	Documents map[string]json.RawMessage `json:"documents"`
}

// Load implements student.Repository.
func (r *StudentRepository) Load(ctx context.Context, agencyID shared.AgencyID) (*student.Roster, error) {
	records, rev, err := fetchList[json.RawMessage](ctx, r.store, agencyID, collection.Students)
	if err != nil {
		return nil, err
	}

	roster := &student.Roster{Students: make([]*student.Student, 0, len(records)), Revision: rev}
	for _, raw := range records {
		s, err := decodeStudent(raw)
		if err != nil {
			return nil, shared.WrapError("repository", "decode students", shared.ErrStorage, "stored student is not valid", err)
		}
		roster.Students = append(roster.Students, s)
	}
	return roster, nil
}

// Store implements student.Repository.
func (r *StudentRepository) Store(ctx context.Context, agencyID shared.AgencyID, roster *student.Roster) error {
	students := roster.Students
	if students == nil {
		students = []*student.Student{}
	}
	rev, err := saveValue(ctx, r.store, agencyID, collection.Students, students, roster.Revision)
	if err != nil {
		return err
	}
	roster.Revision = rev
	return nil
}

func decodeStudent(raw json.RawMessage) (*student.Student, error) {
	s := &student.Student{}
	rec := studentRecord{Student: s}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}

	s.Documents = make(map[string]student.DocumentStatus, len(rec.Documents))
	for name, v := range rec.Documents {
		s.Documents[name] = normalizeDocumentStatus(v)
	}
	if s.DocumentFiles == nil {
		s.DocumentFiles = make(map[string]student.StoredFile)
	}
	if s.BlockedBy == nil {
		s.BlockedBy = []string{}
	}
	if s.NocStatus == "" {
		s.NocStatus = student.NocNotApplied
	}
	return s, nil
}

// normalizeDocumentStatus maps stored values onto the tri-state:
// true is Uploaded, false or null is Pending, unknown strings are Pending.
func normalizeDocumentStatus(v json.RawMessage) student.DocumentStatus {
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		if b {
			return student.DocumentUploaded
		}
		return student.DocumentPending
	}

	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if ds := student.DocumentStatus(s); ds.IsValid() {
			return ds
		}
	}
	return student.DocumentPending
}

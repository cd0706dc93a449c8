package student

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStudent(t *testing.T, id, name string, country Country) *Student {
	t.Helper()
	s, err := NewStudent(NewStudentParams{
		ID:            id,
		Name:          name,
		TargetCountry: country,
		CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return s
}

func TestProgress_RamKarkiAustralia(t *testing.T) {
	s := newTestStudent(t, "1", "Ram Karki", CountryAustralia)
	s.Documents["Passport (Valid 6mo+)"] = DocumentUploaded
	s.Documents["SLC/SEE Marksheet"] = DocumentUploaded

	pct, err := Progress(s, DefaultCatalog(), ProgressPolicy{})
	require.NoError(t, err)
	assert.Equal(t, 10, pct) // round(200/21)
}

func TestProgress_EmptyIsZero(t *testing.T) {
	s := newTestStudent(t, "2", "Sita Sharma", CountryUK)

	pct, err := Progress(s, DefaultCatalog(), ProgressPolicy{})
	require.NoError(t, err)
	assert.Equal(t, 0, pct)
}

func TestProgress_HundredOnlyWhenAllUploaded(t *testing.T) {
	catalog := DefaultCatalog()

	for _, country := range Countries() {
		s := newTestStudent(t, "x", "Student", country)
		reqs, err := catalog.RequiredDocuments(country)
		require.NoError(t, err)

		for i, r := range reqs {
			s.Documents[r.Name] = DocumentUploaded
			pct, err := Progress(s, catalog, ProgressPolicy{})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, pct, 0)
			assert.LessOrEqual(t, pct, 100)
			if i < len(reqs)-1 {
				assert.Less(t, pct, 100, "%s after %d docs", country, i+1)
			} else {
				assert.Equal(t, 100, pct, country)
			}
		}
	}
}

func TestProgress_NotRequiredPolicy(t *testing.T) {
	catalog := DefaultCatalog()
	s := newTestStudent(t, "3", "Hari Thapa", CountryUK) // 18 requirements
	s.Documents["Passport (Valid 6mo+)"] = DocumentUploaded
	s.Documents["Marriage Certificate"] = DocumentNotRequired
	s.Documents["Spouse Passport"] = DocumentNotRequired

	counted, err := Progress(s, catalog, ProgressPolicy{})
	require.NoError(t, err)
	assert.Equal(t, 6, counted) // round(100/18)

	excluded, err := Progress(s, catalog, ProgressPolicy{ExcludeWaived: true})
	require.NoError(t, err)
	assert.Equal(t, 6, excluded) // round(100/16) = 6.25
	assert.GreaterOrEqual(t, excluded, counted)
}

func TestProgress_AllWaivedIsZero(t *testing.T) {
	catalog := DefaultCatalog()
	s := newTestStudent(t, "4", "Gita Rai", CountryCanada)
	reqs, err := catalog.RequiredDocuments(CountryCanada)
	require.NoError(t, err)
	for _, r := range reqs {
		s.Documents[r.Name] = DocumentNotRequired
	}

	pct, err := Progress(s, catalog, ProgressPolicy{ExcludeWaived: true})
	require.NoError(t, err)
	assert.Equal(t, 0, pct)
}

func TestProgress_IgnoresDocumentsOutsideCatalog(t *testing.T) {
	s := newTestStudent(t, "5", "Bikash Gurung", CountryJapan)
	s.Documents["I-20 Form"] = DocumentUploaded

	pct, err := Progress(s, DefaultCatalog(), ProgressPolicy{})
	require.NoError(t, err)
	assert.Equal(t, 0, pct)
}

func TestChecklist_StatusAndFiles(t *testing.T) {
	catalog := DefaultCatalog()
	s := newTestStudent(t, "6", "Anita KC", CountryUSA)
	file := StoredFile{Key: "students/6/a.pdf", Filename: "passport.pdf", MimeType: "application/pdf"}
	require.NoError(t, s.AttachFile(catalog, "Passport (Valid 6mo+)", file))
	require.NoError(t, s.SetDocumentStatus(catalog, "Spouse Passport", DocumentNotRequired))

	items, err := Checklist(s, catalog)
	require.NoError(t, err)
	require.Len(t, items, 21)

	assert.Equal(t, DocumentUploaded, items[0].Status)
	require.NotNil(t, items[0].File)
	assert.Equal(t, "passport.pdf", items[0].File.Filename)
	assert.Equal(t, DocumentNotRequired, items[13].Status)
	assert.Equal(t, DocumentPending, items[20].Status)
}

func TestSetDocumentStatus_Validation(t *testing.T) {
	catalog := DefaultCatalog()
	s := newTestStudent(t, "7", "Suman", CountryKorea)

	assert.ErrorIs(t, s.SetDocumentStatus(catalog, "Study Plan", DocumentStatus("Lost")), ErrInvalidDocumentStatus)
	assert.ErrorIs(t, s.SetDocumentStatus(catalog, "CAS Statement", DocumentUploaded), ErrDocumentNotRequired)
	assert.NoError(t, s.SetDocumentStatus(catalog, "Study Plan", DocumentUploaded))
}

func TestMissingForBundle(t *testing.T) {
	s := newTestStudent(t, "8", "Prakash", CountryAustralia)
	assert.Equal(t, []string{"Passport (Valid 6mo+)", "SLC/SEE Marksheet"}, MissingForBundle(s))

	s.Documents["Passport (Valid 6mo+)"] = DocumentUploaded
	s.Documents["SLC/SEE Marksheet"] = DocumentUploaded
	assert.Empty(t, MissingForBundle(s))
}

func TestChangeCountry_Lock(t *testing.T) {
	catalog := DefaultCatalog()
	s := newTestStudent(t, "9", "Nisha", CountryAustralia)
	s.Documents["Passport (Valid 6mo+)"] = DocumentUploaded

	// Universal documents do not lock the country.
	require.NoError(t, s.ChangeCountry(catalog, CountryCanada, true))
	assert.Equal(t, CountryCanada, s.TargetCountry)

	s.Documents["GIC Certificate ($20,635 CAD)"] = DocumentUploaded
	assert.ErrorIs(t, s.ChangeCountry(catalog, CountryUK, true), ErrCountryLocked)
	assert.Equal(t, CountryCanada, s.TargetCountry)

	require.NoError(t, s.ChangeCountry(catalog, CountryUK, false))
	assert.Equal(t, CountryUK, s.TargetCountry)
}

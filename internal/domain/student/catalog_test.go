package student

import (
	"errors"
	"testing"

	"github.com/sagenius/agency-crm/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_EveryCountryHasList(t *testing.T) {
	catalog := DefaultCatalog()

	expected := map[Country]int{
		CountryUSA:       7,
		CountryAustralia: 7,
		CountryCanada:    5,
		CountryUK:        4,
		CountryJapan:     5,
		CountryKorea:     9,
	}

	assert.Len(t, catalog.Universal(), 14)
	for country, n := range expected {
		specific, err := catalog.CountrySpecific(country)
		require.NoError(t, err, country)
		assert.Len(t, specific, n, country)

		all, err := catalog.RequiredDocuments(country)
		require.NoError(t, err)
		assert.Len(t, all, 14+n, country)
	}
}

func TestCatalog_RequiredDocumentsOrder(t *testing.T) {
	reqs, err := DefaultCatalog().RequiredDocuments(CountryAustralia)
	require.NoError(t, err)

	assert.Equal(t, "Passport (Valid 6mo+)", reqs[0].Name)
	assert.Equal(t, "Identity", reqs[0].Category)
	assert.Equal(t, "CoE (Confirmation of Enrolment)", reqs[14].Name)
	assert.Equal(t, "If name mismatch", reqs[len(reqs)-1].Condition)
}

func TestCatalog_UnknownCountry(t *testing.T) {
	_, err := DefaultCatalog().RequiredDocuments(Country("India"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCountry))
	assert.True(t, errors.Is(err, shared.ErrConfiguration))
}

func TestLoadCatalog_RejectsMissingCountry(t *testing.T) {
	data := []byte(`
universal:
  - name: Passport
    category: Identity
countries:
  USA:
    - name: I-20 Form
      category: Visa
`)
	_, err := LoadCatalog(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCountry))
}

func TestLoadCatalog_RejectsDuplicateNames(t *testing.T) {
	data := []byte(`
universal:
  - name: Passport
    category: Identity
countries:
  USA: [{name: Passport, category: Visa}]
  Australia: [{name: CoE, category: Visa}]
  Canada: [{name: LOA, category: Visa}]
  UK: [{name: CAS, category: Visa}]
  Japan: [{name: COE, category: Visa}]
  Korea: [{name: Admission, category: Visa}]
`)
	_, err := LoadCatalog(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate requirement")
}

func TestCatalog_Lookup(t *testing.T) {
	catalog := DefaultCatalog()

	req, ok, err := catalog.Lookup(CountryUK, "CAS Statement")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Visa", req.Category)

	_, ok, err = catalog.Lookup(CountryUK, "I-20 Form")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseCountryAndStatus(t *testing.T) {
	c, err := ParseCountry("australia")
	require.NoError(t, err)
	assert.Equal(t, CountryAustralia, c)

	_, err = ParseCountry("Mars")
	assert.True(t, errors.Is(err, ErrUnknownCountry))

	st, err := ParseStatus("OfferReceived")
	require.NoError(t, err)
	assert.Equal(t, StatusOfferReceived, st)

	st, err = ParseStatus("Visa Granted")
	require.NoError(t, err)
	assert.Equal(t, StatusVisaGranted, st)

	_, err = ParseStatus("Enrolled")
	assert.True(t, errors.Is(err, ErrUnknownStatus))
}

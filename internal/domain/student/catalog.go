package student

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT CATALOG
// ══════════════════════════════════════════════════════════════════════════════

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Requirement - неизменяемая запись каталога: один требуемый документ.
type Requirement struct {
	// Name уникально в пределах набора документов страны.
	Name string `yaml:"name" json:"name"`

	// Category - свободная метка группировки (Identity, Visa, Finance...).
	Category string `yaml:"category" json:"category"`

	// Condition - человекочитаемое условие применимости, например "If Married".
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// Catalog - статический каталог документов: универсальный список + список по странам.
// Загружается один раз при старте и не меняется во время работы.
type Catalog struct {
	universal []Requirement
	byCountry map[Country][]Requirement
}

type catalogFile struct {
	Universal []Requirement             `yaml:"universal"`
	Countries map[Country][]Requirement `yaml:"countries"`
}

// LoadCatalog разбирает каталог из YAML и проверяет его целостность:
// у каждой страны перечисления должен быть список, имена внутри страны уникальны.
func LoadCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}

	c := &Catalog{
		universal: file.Universal,
		byCountry: make(map[Country][]Requirement, len(file.Countries)),
	}

	for country, reqs := range file.Countries {
		if !country.IsValid() {
			return nil, fmt.Errorf("catalog: %w", UnknownCountry(country))
		}
		c.byCountry[country] = reqs
	}

	for _, country := range Countries() {
		reqs, err := c.RequiredDocuments(country)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		seen := make(map[string]struct{}, len(reqs))
		for _, r := range reqs {
			if strings.TrimSpace(r.Name) == "" {
				return nil, fmt.Errorf("catalog: %s: requirement with empty name", country)
			}
			if _, dup := seen[r.Name]; dup {
				return nil, fmt.Errorf("catalog: %s: duplicate requirement %q", country, r.Name)
			}
			seen[r.Name] = struct{}{}
		}
	}

	return c, nil
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog возвращает встроенный каталог. Дефект встроенного каталога -
// ошибка конфигурации сборки, поэтому здесь паника.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		c, err := LoadCatalog(defaultCatalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// RequiredDocuments возвращает универсальный список, за которым следует список страны.
// Порядок - порядок объявления в каталоге, он важен только для отображения.
func (c *Catalog) RequiredDocuments(country Country) ([]Requirement, error) {
	specific, ok := c.byCountry[country]
	if !ok {
		return nil, UnknownCountry(country)
	}
	out := make([]Requirement, 0, len(c.universal)+len(specific))
	out = append(out, c.universal...)
	out = append(out, specific...)
	return out, nil
}

// CountrySpecific возвращает только документы страны, без универсальных.
func (c *Catalog) CountrySpecific(country Country) ([]Requirement, error) {
	specific, ok := c.byCountry[country]
	if !ok {
		return nil, UnknownCountry(country)
	}
	return append([]Requirement(nil), specific...), nil
}

// Universal возвращает универсальный список.
func (c *Catalog) Universal() []Requirement {
	return append([]Requirement(nil), c.universal...)
}

// Lookup ищет требование по имени в наборе страны.
func (c *Catalog) Lookup(country Country, name string) (Requirement, bool, error) {
	reqs, err := c.RequiredDocuments(country)
	if err != nil {
		return Requirement{}, false, err
	}
	for _, r := range reqs {
		if r.Name == name {
			return r, true, nil
		}
	}
	return Requirement{}, false, nil
}

// HasCountrySpecificUploads проверяет, загружен ли хотя бы один документ страны студента.
// Используется для блокировки смены страны.
func (c *Catalog) HasCountrySpecificUploads(s *Student) bool {
	specific, err := c.CountrySpecific(s.TargetCountry)
	if err != nil {
		return false
	}
	for _, r := range specific {
		if s.DocumentStatusOf(r.Name) == DocumentUploaded {
			return true
		}
	}
	return false
}

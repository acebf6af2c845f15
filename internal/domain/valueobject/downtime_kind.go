package valueobject

import (
	"errors"
	"strings"
)

// Modality - плановый или внеплановый простой (Value Object)
type Modality string

const (
	Planned   Modality = "PLANNED"
	Unplanned Modality = "UNPLANNED"
)

// ParseModality разбирает модальность без учета регистра
func ParseModality(raw string) (Modality, error) {
	m := Modality(strings.ToUpper(strings.TrimSpace(raw)))
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

// Validate проверяет валидность модальности
func (m Modality) Validate() error {
	switch m {
	case Planned, Unplanned:
		return nil
	default:
		return errors.New("invalid modality")
	}
}

// String возвращает строковое представление модальности
func (m Modality) String() string {
	return string(m)
}

// ImpactType - полный или частичный простой (Value Object)
type ImpactType string

const (
	FullImpact    ImpactType = "FULL"
	PartialImpact ImpactType = "PARTIAL"
)

// ParseImpactType разбирает тип влияния без учета регистра
func ParseImpactType(raw string) (ImpactType, error) {
	it := ImpactType(strings.ToUpper(strings.TrimSpace(raw)))
	if err := it.Validate(); err != nil {
		return "", err
	}
	return it, nil
}

// Validate проверяет валидность типа влияния
func (it ImpactType) Validate() error {
	switch it {
	case FullImpact, PartialImpact:
		return nil
	default:
		return errors.New("invalid impact type")
	}
}

// String возвращает строковое представление типа влияния
func (it ImpactType) String() string {
	return string(it)
}

// ReliabilityFlag - учитывается ли простой в SLA (YES/NO)
type ReliabilityFlag string

const (
	ReliabilityYes ReliabilityFlag = "YES"
	ReliabilityNo  ReliabilityFlag = "NO"
)

// DeriveReliability применяет бизнес-правило: только UNPLANNED + FULL влияет на надежность
func DeriveReliability(m Modality, it ImpactType) ReliabilityFlag {
	if m == Unplanned && it == FullImpact {
		return ReliabilityYes
	}
	return ReliabilityNo
}

// IsYes сравнивает флаг без учета регистра
func (f ReliabilityFlag) IsYes() bool {
	return strings.EqualFold(strings.TrimSpace(string(f)), string(ReliabilityYes))
}

// String возвращает строковое представление флага
func (f ReliabilityFlag) String() string {
	return string(f)
}

// DowntimeType - одна из четырех взаимоисключающих корзин сводки
type DowntimeType string

const (
	PlannedFull      DowntimeType = "PLANNED_FULL"
	PlannedPartial   DowntimeType = "PLANNED_PARTIAL"
	UnplannedFull    DowntimeType = "UNPLANNED_FULL"
	UnplannedPartial DowntimeType = "UNPLANNED_PARTIAL"
)

// AllDowntimeTypes возвращает корзины в порядке отчета
func AllDowntimeTypes() []DowntimeType {
	return []DowntimeType{PlannedFull, PlannedPartial, UnplannedFull, UnplannedPartial}
}

// ClassifyDowntime определяет корзину по модальности и типу влияния (без учета регистра)
func ClassifyDowntime(modality, impactType string) (DowntimeType, bool) {
	m := Modality(strings.ToUpper(strings.TrimSpace(modality)))
	it := ImpactType(strings.ToUpper(strings.TrimSpace(impactType)))

	switch {
	case m == Planned && it == FullImpact:
		return PlannedFull, true
	case m == Planned && it == PartialImpact:
		return PlannedPartial, true
	case m == Unplanned && it == FullImpact:
		return UnplannedFull, true
	case m == Unplanned && it == PartialImpact:
		return UnplannedPartial, true
	default:
		return "", false
	}
}

// String возвращает строковое представление корзины
func (t DowntimeType) String() string {
	return string(t)
}

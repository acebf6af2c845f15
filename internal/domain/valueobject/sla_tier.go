package valueobject

// SLATier - качественная оценка надежности
type SLATier string

const (
	TierExcellent SLATier = "Excellent"
	TierGood      SLATier = "Good"
	TierFair      SLATier = "Fair"
	TierPoor      SLATier = "Poor"
)

// SLATarget - фиксированный порог SLA в процентах
const SLATarget = 99.9

// SLALabel - порог SLA в виде строки для ответа
const SLALabel = "99.9%"

// TierFor переводит процент надежности в уровень SLA
func TierFor(reliability float64) SLATier {
	switch {
	case reliability >= SLATarget:
		return TierExcellent
	case reliability >= 99:
		return TierGood
	case reliability >= 95:
		return TierFair
	default:
		return TierPoor
	}
}

// MeetsSLA сообщает, выполнен ли SLA
func MeetsSLA(reliability float64) bool {
	return reliability >= SLATarget
}

// String возвращает строковое представление уровня
func (t SLATier) String() string {
	return string(t)
}

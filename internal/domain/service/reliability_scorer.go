package service

import (
	"math"

	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
)

// ChannelReliability - надежность одного канала
type ChannelReliability struct {
	Channel               valueobject.Channel
	ImpactMinutes         int
	IncidentCount         int
	ImpactPercentage      float64
	ReliabilityPercentage float64
}

// ReliabilityScore - итоговая надежность по окну
type ReliabilityScore struct {
	Channels              []ChannelReliability
	TotalAvailableMinutes int
	TotalImpactMinutes    int
	ImpactPercentage      float64
	ReliabilityPercentage float64
	Tier                  valueobject.SLATier
	MeetsSLA              bool
	MostReliable          valueobject.Channel
	LeastReliable         valueobject.Channel
}

// ReliabilityScorer вычисляет проценты надежности и уровень SLA (Domain Service)
type ReliabilityScorer struct{}

// NewReliabilityScorer создает новый ReliabilityScorer
func NewReliabilityScorer() *ReliabilityScorer {
	return &ReliabilityScorer{}
}

// Score принимает минуты простоя, влияющего на надежность, по каналам.
// Общий простой - сумма по каналам: инцидент на APP и WEB учитывается дважды.
// При нулевом знаменателе влияние 0%, надежность 100%.
func (s *ReliabilityScorer) Score(channels []ChannelDuration, availableMinutes int) ReliabilityScore {
	score := ReliabilityScore{
		Channels:              make([]ChannelReliability, 0, len(channels)),
		TotalAvailableMinutes: availableMinutes,
	}

	for _, ch := range channels {
		impact := ImpactPercentage(ch.Minutes, availableMinutes)
		score.Channels = append(score.Channels, ChannelReliability{
			Channel:               ch.Channel,
			ImpactMinutes:         ch.Minutes,
			IncidentCount:         ch.IncidentCount,
			ImpactPercentage:      math.Min(100, impact),
			ReliabilityPercentage: ReliabilityPercentage(ch.Minutes, availableMinutes),
		})
		score.TotalImpactMinutes += ch.Minutes
	}

	score.ImpactPercentage = Round2(ImpactPercentage(score.TotalImpactMinutes, availableMinutes))
	score.ReliabilityPercentage = Round2(ReliabilityPercentage(score.TotalImpactMinutes, availableMinutes))
	score.Tier = valueobject.TierFor(score.ReliabilityPercentage)
	score.MeetsSLA = valueobject.MeetsSLA(score.ReliabilityPercentage)
	score.MostReliable, score.LeastReliable = extremes(score.Channels)

	return score
}

// ImpactPercentage возвращает долю окна, занятую простоем
func ImpactPercentage(impactMinutes, availableMinutes int) float64 {
	if availableMinutes <= 0 {
		return 0
	}
	return float64(impactMinutes) / float64(availableMinutes) * 100
}

// ReliabilityPercentage возвращает max(0, 100 - impact/available*100)
func ReliabilityPercentage(impactMinutes, availableMinutes int) float64 {
	return math.Max(0, 100-ImpactPercentage(impactMinutes, availableMinutes))
}

// Round2 округляет до двух знаков после запятой
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// extremes находит самый и наименее надежный канал; при равенстве побеждает первый по порядку
func extremes(channels []ChannelReliability) (most, least valueobject.Channel) {
	if len(channels) == 0 {
		return "", ""
	}

	best, worst := channels[0], channels[0]
	for _, ch := range channels[1:] {
		if ch.ReliabilityPercentage > best.ReliabilityPercentage {
			best = ch
		}
		if ch.ReliabilityPercentage < worst.ReliabilityPercentage {
			worst = ch
		}
	}
	return best.Channel, worst.Channel
}

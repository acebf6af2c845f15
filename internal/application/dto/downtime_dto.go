package dto

import (
	"math"
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/entity"
)

// DowntimeDTO представляет строку простоя для передачи между слоями
type DowntimeDTO struct {
	ID                  string     `json:"id"`
	IncidentID          string     `json:"incidentId"`
	Category            string     `json:"category,omitempty"`
	AffectedChannel     string     `json:"affectedChannel"`
	Channels            []string   `json:"channels"`
	StartTime           time.Time  `json:"startTime"`
	EndTime             *time.Time `json:"endTime,omitempty"`
	Modality            string     `json:"modality"`
	ImpactType          string     `json:"impactType"`
	ReliabilityImpacted string     `json:"reliabilityImpacted"`
	CreatedAt           time.Time  `json:"createdAt"`
	// Computed fields
	Ongoing         bool `json:"ongoing"`
	DurationMinutes int  `json:"durationMinutes"`
}

// FromDowntime конвертирует Domain Entity в DTO; время в UTC
func FromDowntime(d *entity.Downtime, now time.Time) *DowntimeDTO {
	channels := d.Channels()
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = ch.String()
	}

	var end *time.Time
	if e := d.EndTime(); e != nil {
		utc := e.UTC()
		end = &utc
	}

	return &DowntimeDTO{
		ID:                  d.ID(),
		IncidentID:          d.IncidentID(),
		Category:            d.Category(),
		AffectedChannel:     d.AffectedChannel(),
		Channels:            names,
		StartTime:           d.StartTime().UTC(),
		EndTime:             end,
		Modality:            d.Modality().String(),
		ImpactType:          d.ImpactType().String(),
		ReliabilityImpacted: d.Reliability().String(),
		CreatedAt:           d.CreatedAt().UTC(),
		Ongoing:             d.IsOngoing(),
		DurationMinutes:     int(math.Round(d.Duration(now).Minutes())),
	}
}

// ToDowntimeDTOs конвертирует слайс Entity в слайс DTO
func ToDowntimeDTOs(downtimes []*entity.Downtime, now time.Time) []*DowntimeDTO {
	dtos := make([]*DowntimeDTO, len(downtimes))
	for i, d := range downtimes {
		dtos[i] = FromDowntime(d, now)
	}
	return dtos
}

// DowntimeEventDTO - событие о простое для NATS и WebSocket клиентов
type DowntimeEventDTO struct {
	Event               string     `json:"event"` // "reported", "closed"
	IncidentID          string     `json:"incidentId"`
	Channels            []string   `json:"channels"`
	Category            string     `json:"category,omitempty"`
	Modality            string     `json:"modality"`
	ImpactType          string     `json:"impactType"`
	ReliabilityImpacted bool       `json:"reliabilityImpacted"`
	StartTime           time.Time  `json:"startTime"`
	EndTime             *time.Time `json:"endTime,omitempty"`
	OccurredAt          time.Time  `json:"occurredAt"`
}

// NewDowntimeEventDTO создает событие из строки простоя
func NewDowntimeEventDTO(event string, d *entity.Downtime, occurredAt time.Time) *DowntimeEventDTO {
	src := FromDowntime(d, occurredAt)
	return &DowntimeEventDTO{
		Event:               event,
		IncidentID:          src.IncidentID,
		Channels:            src.Channels,
		Category:            src.Category,
		Modality:            src.Modality,
		ImpactType:          src.ImpactType,
		ReliabilityImpacted: d.ImpactsReliability(),
		StartTime:           src.StartTime,
		EndTime:             src.EndTime,
		OccurredAt:          occurredAt.UTC(),
	}
}

// ChannelDowntimeItemDTO - простой одного канала
type ChannelDowntimeItemDTO struct {
	Channel       string `json:"channel"`
	Minutes       int    `json:"minutes"`
	IncidentCount int    `json:"incidentCount"`
}

// ChannelDowntimeDTO - простой по каналам за окно
type ChannelDowntimeDTO struct {
	Range          string                   `json:"range"`
	WindowStart    time.Time                `json:"windowStart"`
	WindowEnd      time.Time                `json:"windowEnd"`
	Channels       []ChannelDowntimeItemDTO `json:"channels"`
	TotalMinutes   int                      `json:"totalMinutes"`
	IncidentCount  int                      `json:"incidentCount"`
	SkippedRecords int                      `json:"skippedRecords"`
}

// DowntimeTypeDTO - одна корзина сводки по типам
type DowntimeTypeDTO struct {
	Type          string                   `json:"type"`
	Modality      string                   `json:"modality"`
	ImpactType    string                   `json:"impactType"`
	TotalMinutes  int                      `json:"totalMinutes"`
	IncidentCount int                      `json:"incidentCount"`
	Channels      []ChannelDowntimeItemDTO `json:"channels"`
}

// DowntimeTypeSummaryDTO - сводка для круговой диаграммы
type DowntimeTypeSummaryDTO struct {
	Range          string            `json:"range"`
	WindowStart    time.Time         `json:"windowStart"`
	WindowEnd      time.Time         `json:"windowEnd"`
	Types          []DowntimeTypeDTO `json:"types"`
	SkippedRecords int               `json:"skippedRecords"`
}

// DashboardStatsDTO - счетчики для карточек дашборда
type DashboardStatsDTO struct {
	TotalIncidents       int64     `json:"totalIncidents"`
	OngoingIncidents     int64     `json:"ongoingIncidents"`
	ReliabilityIncidents int64     `json:"reliabilityIncidents"`
	IncidentsToday       int64     `json:"incidentsToday"`
	Degraded             []string  `json:"degraded,omitempty"`
	GeneratedAt          time.Time `json:"generatedAt"`
}

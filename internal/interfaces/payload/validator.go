// Package payload описывает тела запросов на отчет о простое и их проверку JSON Schema.
package payload

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dreschagin/soc-portal/internal/application/usecase"
	"github.com/dreschagin/soc-portal/internal/domain/domainerr"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

// maxReportedIssues ограничивает текст ошибки валидации
const maxReportedIssues = 5

// DowntimeRequest - тело POST /api/v1/downtimes и строка YAML-импорта
type DowntimeRequest struct {
	IncidentID       string     `json:"incidentId,omitempty" yaml:"incidentId"`
	Category         string     `json:"category,omitempty" yaml:"category"`
	AffectedChannels []string   `json:"affectedChannels" yaml:"affectedChannels"`
	StartTime        time.Time  `json:"startTime" yaml:"startTime"`
	EndTime          *time.Time `json:"endTime,omitempty" yaml:"endTime"`
	Modality         string     `json:"modality" yaml:"modality"`
	ImpactType       string     `json:"impactType" yaml:"impactType"`
}

// BatchRequest - тело POST /api/v1/downtimes/batch
type BatchRequest struct {
	Downtimes []DowntimeRequest `json:"downtimes" yaml:"downtimes"`
}

// ToCommand переводит запрос в команду use case
func (r DowntimeRequest) ToCommand() usecase.ReportDowntimeCommand {
	return usecase.ReportDowntimeCommand{
		IncidentID:       r.IncidentID,
		Category:         r.Category,
		AffectedChannels: r.AffectedChannels,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		Modality:         r.Modality,
		ImpactType:       r.ImpactType,
	}
}

// ToCommands переводит пакет в команды use case
func (b BatchRequest) ToCommands() []usecase.ReportDowntimeCommand {
	cmds := make([]usecase.ReportDowntimeCommand, len(b.Downtimes))
	for i, d := range b.Downtimes {
		cmds[i] = d.ToCommand()
	}
	return cmds
}

// Validator проверяет тела запросов по встроенным схемам
type Validator struct {
	downtime *gojsonschema.Schema
	batch    *gojsonschema.Schema
}

// NewValidator компилирует встроенные схемы
func NewValidator() (*Validator, error) {
	downtimeBytes, err := schemaFiles.ReadFile("schemas/downtime.schema.json")
	if err != nil {
		return nil, fmt.Errorf("read downtime schema: %w", err)
	}
	batchBytes, err := schemaFiles.ReadFile("schemas/downtime_batch.schema.json")
	if err != nil {
		return nil, fmt.Errorf("read batch schema: %w", err)
	}

	downtime, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(downtimeBytes))
	if err != nil {
		return nil, fmt.Errorf("compile downtime schema: %w", err)
	}

	// batch ссылается на схему строки по $id
	loader := gojsonschema.NewSchemaLoader()
	if err := loader.AddSchemas(gojsonschema.NewBytesLoader(downtimeBytes)); err != nil {
		return nil, fmt.Errorf("register downtime schema: %w", err)
	}
	batch, err := loader.Compile(gojsonschema.NewBytesLoader(batchBytes))
	if err != nil {
		return nil, fmt.Errorf("compile batch schema: %w", err)
	}

	return &Validator{downtime: downtime, batch: batch}, nil
}

// DecodeDowntime проверяет и разбирает тело одиночного отчета
func (v *Validator) DecodeDowntime(raw []byte) (DowntimeRequest, error) {
	var req DowntimeRequest
	if err := validate(v.downtime, raw); err != nil {
		return req, err
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, domainerr.NewValidationError("body", err.Error())
	}
	return req, nil
}

// DecodeBatch проверяет и разбирает тело пакета
func (v *Validator) DecodeBatch(raw []byte) (BatchRequest, error) {
	var req BatchRequest
	if err := validate(v.batch, raw); err != nil {
		return req, err
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, domainerr.NewValidationError("body", err.Error())
	}
	return req, nil
}

// ValidateBatch проверяет уже разобранный пакет (YAML-импорт)
func (v *Validator) ValidateBatch(batch BatchRequest) error {
	raw, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	return validate(v.batch, raw)
}

func validate(schema *gojsonschema.Schema, raw []byte) error {
	if !json.Valid(raw) {
		return domainerr.NewValidationError("body", "malformed JSON")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return domainerr.NewValidationError("body", err.Error())
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, maxReportedIssues)
	for i, issue := range result.Errors() {
		if i == maxReportedIssues {
			issues = append(issues, fmt.Sprintf("and %d more", len(result.Errors())-maxReportedIssues))
			break
		}
		issues = append(issues, issue.String())
	}
	return domainerr.NewValidationError("body", strings.Join(issues, "; "))
}

package postgres

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/entity"
)

func TestWhereBuilderNumbersParameters(t *testing.T) {
	var b whereBuilder
	b.add("start_date_time >= $%d", time.Unix(0, 0))
	b.addUpper("modality", " planned ")
	b.addUpper("category", "")

	if len(b.clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %v", b.clauses)
	}
	if b.clauses[1] != "UPPER(TRIM(modality)) = UPPER($2)" {
		t.Errorf("unexpected clause %q", b.clauses[1])
	}
	if b.args[1] != "planned" {
		t.Errorf("expected trimmed argument, got %v", b.args[1])
	}
}

func TestMapperKeepsOpenEnd(t *testing.T) {
	start := time.Date(2024, 1, 3, 4, 0, 0, 0, time.UTC)
	d := entity.ReconstructDowntime("id-1", "INC-1", "CASH IN", "APP", start, nil, "UNPLANNED", "FULL", "YES", start)

	model := ToDBModel(d)
	if model.EndDateTime.Valid {
		t.Fatal("ongoing downtime must map to NULL end_date_time")
	}

	back := ToEntity(model)
	if !back.IsOngoing() {
		t.Error("expected ongoing entity")
	}

	end := start.Add(time.Hour)
	model.EndDateTime = sql.NullTime{Time: end, Valid: true}
	if got := ToEntity(model).EndTime(); got == nil || !got.Equal(end) {
		t.Errorf("expected end %v, got %v", end, got)
	}
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/entity"
	"github.com/dreschagin/soc-portal/internal/domain/repository"
	_ "github.com/lib/pq"
)

const downtimeColumns = `id, downtime_id, category, affected_channel, start_date_time, end_date_time,
	modality, impact_type, reliability_impacted, created_at`

const insertDowntime = `
	INSERT INTO downtimes (` + downtimeColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// PostgresDowntimeRepository реализует repository.DowntimeRepository для PostgreSQL.
// Пул соединений принадлежит вызывающей стороне.
type PostgresDowntimeRepository struct {
	db *sql.DB
}

// NewPostgresDowntimeRepository создает новый PostgreSQL repository
func NewPostgresDowntimeRepository(db *sql.DB) *PostgresDowntimeRepository {
	return &PostgresDowntimeRepository{
		db: db,
	}
}

// Save сохраняет одну строку
func (r *PostgresDowntimeRepository) Save(ctx context.Context, d *entity.Downtime) error {
	model := ToDBModel(d)

	_, err := r.db.ExecContext(ctx, insertDowntime, insertArgs(model)...)
	if err != nil {
		return fmt.Errorf("failed to insert downtime: %w", err)
	}

	return nil
}

// SaveBatch сохраняет несколько строк одной транзакцией
func (r *PostgresDowntimeRepository) SaveBatch(ctx context.Context, downtimes []*entity.Downtime) error {
	if len(downtimes) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, insertDowntime)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range downtimes {
		if _, err := stmt.ExecContext(ctx, insertArgs(ToDBModel(d))...); err != nil {
			return fmt.Errorf("failed to insert downtime %s: %w", d.IncidentID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByIncident находит все строки инцидента
func (r *PostgresDowntimeRepository) FindByIncident(ctx context.Context, incidentID string) ([]*entity.Downtime, error) {
	query := `
		SELECT ` + downtimeColumns + `
		FROM downtimes
		WHERE downtime_id = $1
		ORDER BY start_date_time
	`

	rows, err := r.db.QueryContext(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query incident: %w", err)
	}
	defer rows.Close()

	return r.scanDowntimes(rows)
}

// FindOverlapping находит строки, пересекающие окно. Открытый простой длится до now.
func (r *PostgresDowntimeRepository) FindOverlapping(ctx context.Context, q repository.DowntimeQuery) ([]*entity.Downtime, error) {
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}

	var b whereBuilder
	startArg := b.next(q.Window.Start().UTC())
	endArg := b.next(q.Window.End().UTC())
	nowArg := b.next(now.UTC())
	b.clauses = append(b.clauses,
		fmt.Sprintf("start_date_time < $%d", endArg),
		fmt.Sprintf("COALESCE(end_date_time, $%d) > $%d", nowArg, startArg),
	)

	b.addUpper("modality", q.Modality)
	b.addUpper("impact_type", q.ImpactType)
	b.addUpper("reliability_impacted", q.Reliability)
	b.addUpper("category", q.Category)

	query := `
		SELECT ` + downtimeColumns + `
		FROM downtimes
		WHERE ` + strings.Join(b.clauses, " AND ") + `
		ORDER BY start_date_time
	`

	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query downtimes: %w", err)
	}
	defer rows.Close()

	return r.scanDowntimes(rows)
}

// CloseIncident проставляет время окончания открытым строкам инцидента
func (r *PostgresDowntimeRepository) CloseIncident(ctx context.Context, incidentID string, endTime time.Time) (int64, error) {
	query := `
		UPDATE downtimes
		SET end_date_time = $2
		WHERE downtime_id = $1 AND end_date_time IS NULL AND start_date_time <= $2
	`

	result, err := r.db.ExecContext(ctx, query, incidentID, endTime.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to close incident: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected, nil
}

// CountIncidents возвращает количество уникальных downtime_id
func (r *PostgresDowntimeRepository) CountIncidents(ctx context.Context, filter repository.IncidentCountFilter) (int64, error) {
	var b whereBuilder
	if filter.OngoingOnly {
		b.clauses = append(b.clauses, "end_date_time IS NULL")
	}
	if filter.ReliabilityOnly {
		b.addUpper("reliability_impacted", "YES")
	}
	if !filter.StartedSince.IsZero() {
		b.add("start_date_time >= $%d", filter.StartedSince.UTC())
	}

	query := `SELECT COUNT(DISTINCT downtime_id) FROM downtimes`
	if len(b.clauses) > 0 {
		query += ` WHERE ` + strings.Join(b.clauses, " AND ")
	}

	var count int64
	if err := r.db.QueryRowContext(ctx, query, b.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count incidents: %w", err)
	}

	return count, nil
}

// scanDowntimes сканирует несколько строк в слайс простоев
func (r *PostgresDowntimeRepository) scanDowntimes(rows *sql.Rows) ([]*entity.Downtime, error) {
	var downtimes []*entity.Downtime

	for rows.Next() {
		model, err := ScanDowntimeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan downtime row: %w", err)
		}
		downtimes = append(downtimes, ToEntity(model))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return downtimes, nil
}

func insertArgs(m *DowntimeDBModel) []interface{} {
	return []interface{}{
		m.ID,
		m.DowntimeID,
		m.Category,
		m.AffectedChannel,
		m.StartDateTime,
		m.EndDateTime,
		m.Modality,
		m.ImpactType,
		m.ReliabilityImpacted,
		m.CreatedAt,
	}
}

// whereBuilder собирает условия с позиционными параметрами $n
type whereBuilder struct {
	clauses []string
	args    []interface{}
}

func (b *whereBuilder) next(arg interface{}) int {
	b.args = append(b.args, arg)
	return len(b.args)
}

func (b *whereBuilder) add(format string, arg interface{}) {
	b.clauses = append(b.clauses, fmt.Sprintf(format, b.next(arg)))
}

func (b *whereBuilder) addUpper(column, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	b.add("UPPER(TRIM("+column+")) = UPPER($%d)", value)
}

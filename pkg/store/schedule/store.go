package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/store/duckdb"
)

// Store persists report schedules and their run history. The SQL is shared by
// the DuckDB and Postgres backends.
type Store interface {
	Create(ctx context.Context, s *domain.ReportSchedule) error
	Get(ctx context.Context, tenant domain.TenantID, id int64) (domain.ReportSchedule, error)
	List(ctx context.Context, tenant domain.TenantID) ([]domain.ReportSchedule, error)
	// ListDue returns active, unleased schedules of every tenant whose
	// next_run_at is not after now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.ReportSchedule, error)
	// Claim leases s until the given time. It fails with ErrScheduleClaimed when
	// the row moved on or is leased by someone else since s was read.
	Claim(ctx context.Context, s domain.ReportSchedule, now, until time.Time) error
	// Complete advances next_run_at by one interval from its previous value and
	// clears the lease and failure state. s.LockedUntil must still be the
	// stored lease, otherwise the claim was lost and ErrScheduleClaimed is
	// returned.
	Complete(ctx context.Context, s domain.ReportSchedule, ranAt time.Time) (time.Time, error)
	// Fail records a failed run. next_run_at stays put; the lease is extended
	// to retryAt so later ticks retry. It checks s.LockedUntil like Complete.
	Fail(ctx context.Context, s domain.ReportSchedule, cause string, now, retryAt time.Time) error
	Deactivate(ctx context.Context, tenant domain.TenantID, id int64) error
	Activate(ctx context.Context, tenant domain.TenantID, id int64, nextRunAt time.Time) error
	RecordRun(ctx context.Context, rec domain.RunRecord) error
	ListRuns(ctx context.Context, tenant domain.TenantID, scheduleID int64, limit int) ([]domain.RunRecord, error)
	// InTx runs fn with a transaction attached to its context.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sqlStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &sqlStore{db: db, now: time.Now}, nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *sqlStore) conn(ctx context.Context) querier {
	if tx := duckdb.GetTransaction(ctx); tx != nil {
		return tx
	}
	return s.db
}

func (s *sqlStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if duckdb.GetTransaction(ctx) != nil {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(duckdb.WithTransaction(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ts normalizes timestamps to what a TIMESTAMP column round-trips.
func ts(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

const scheduleColumns = `id, company_id, name, report_type, frequency, parameters, recipients, format,
	delivery_options, next_run_at, last_run_at, is_active, failure_count, locked_until, last_error,
	created_at, updated_at`

func (s *sqlStore) Create(ctx context.Context, sched *domain.ReportSchedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	params, err := json.Marshal(sched.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	recipients, err := json.Marshal(sched.Recipients)
	if err != nil {
		return fmt.Errorf("marshal recipients: %w", err)
	}
	opts, err := json.Marshal(sched.DeliveryOptions)
	if err != nil {
		return fmt.Errorf("marshal delivery options: %w", err)
	}

	now := ts(s.now())
	query := `
		INSERT INTO report_schedules (
			company_id, name, report_type, frequency, parameters, recipients, format,
			delivery_options, next_run_at, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING id`
	err = s.conn(ctx).QueryRowContext(ctx, query,
		int64(sched.TenantID),
		sched.Name,
		string(sched.ReportType),
		string(sched.Frequency),
		string(params),
		string(recipients),
		string(sched.Format),
		string(opts),
		ts(sched.NextRunAt),
		sched.IsActive,
		now,
	).Scan(&sched.ID)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	sched.NextRunAt = ts(sched.NextRunAt)
	sched.CreatedAt, sched.UpdatedAt = now, now
	return nil
}

func (s *sqlStore) Get(ctx context.Context, tenant domain.TenantID, id int64) (domain.ReportSchedule, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM report_schedules WHERE company_id = $1 AND id = $2`, int64(tenant), id)
	if err != nil {
		return domain.ReportSchedule{}, fmt.Errorf("query schedule: %w", err)
	}
	defer rows.Close()

	list, err := scanSchedules(rows)
	if err != nil {
		return domain.ReportSchedule{}, err
	}
	if len(list) == 0 {
		return domain.ReportSchedule{}, fmt.Errorf("schedule %d: %w", id, domain.ErrNotFound)
	}
	return list[0], nil
}

func (s *sqlStore) List(ctx context.Context, tenant domain.TenantID) ([]domain.ReportSchedule, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM report_schedules WHERE company_id = $1 ORDER BY id`, int64(tenant))
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func (s *sqlStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.ReportSchedule, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + scheduleColumns + ` FROM report_schedules
		WHERE is_active AND next_run_at <= $1 AND (locked_until IS NULL OR locked_until <= $1)
		ORDER BY next_run_at, id
		LIMIT $2`
	rows, err := s.conn(ctx).QueryContext(ctx, query, ts(now), limit)
	if err != nil {
		return nil, fmt.Errorf("query due schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func (s *sqlStore) Claim(ctx context.Context, sched domain.ReportSchedule, now, until time.Time) error {
	query := `UPDATE report_schedules SET locked_until = $1, updated_at = $2
		WHERE id = $3 AND company_id = $4 AND is_active AND next_run_at = $5
		AND (locked_until IS NULL OR locked_until <= $2)`
	res, err := s.conn(ctx).ExecContext(ctx, query,
		ts(until), ts(now), sched.ID, int64(sched.TenantID), ts(sched.NextRunAt))
	if err != nil {
		return fmt.Errorf("claim schedule %d: %w", sched.ID, err)
	}
	return expectOne(res, sched.ID, domain.ErrScheduleClaimed)
}

func (s *sqlStore) Complete(ctx context.Context, sched domain.ReportSchedule, ranAt time.Time) (time.Time, error) {
	next := ts(sched.Frequency.Advance(sched.NextRunAt))
	query := `UPDATE report_schedules SET next_run_at = $1, last_run_at = $2, failure_count = 0,
		locked_until = NULL, last_error = NULL, updated_at = $2
		WHERE id = $3 AND company_id = $4 AND locked_until IS NOT DISTINCT FROM $5`
	res, err := s.conn(ctx).ExecContext(ctx, query, next, ts(ranAt), sched.ID, int64(sched.TenantID), lease(sched))
	if err != nil {
		return time.Time{}, fmt.Errorf("complete schedule %d: %w", sched.ID, err)
	}
	if err := expectOne(res, sched.ID, domain.ErrScheduleClaimed); err != nil {
		return time.Time{}, err
	}
	return next, nil
}

func (s *sqlStore) Fail(ctx context.Context, sched domain.ReportSchedule, cause string, now, retryAt time.Time) error {
	query := `UPDATE report_schedules SET failure_count = failure_count + 1, last_error = $1,
		locked_until = $2, updated_at = $3
		WHERE id = $4 AND company_id = $5 AND locked_until IS NOT DISTINCT FROM $6`
	res, err := s.conn(ctx).ExecContext(ctx, query, cause, ts(retryAt), ts(now), sched.ID, int64(sched.TenantID), lease(sched))
	if err != nil {
		return fmt.Errorf("fail schedule %d: %w", sched.ID, err)
	}
	return expectOne(res, sched.ID, domain.ErrScheduleClaimed)
}

// lease is the locked_until value the caller expects to still hold.
func lease(sched domain.ReportSchedule) any {
	if sched.LockedUntil == nil {
		return nil
	}
	return ts(*sched.LockedUntil)
}

func (s *sqlStore) Deactivate(ctx context.Context, tenant domain.TenantID, id int64) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE report_schedules SET is_active = false, locked_until = NULL, updated_at = $1
		WHERE id = $2 AND company_id = $3`, ts(s.now()), id, int64(tenant))
	if err != nil {
		return fmt.Errorf("deactivate schedule %d: %w", id, err)
	}
	return expectOne(res, id, domain.ErrNotFound)
}

func (s *sqlStore) Activate(ctx context.Context, tenant domain.TenantID, id int64, nextRunAt time.Time) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE report_schedules SET is_active = true, next_run_at = $1, failure_count = 0,
		locked_until = NULL, last_error = NULL, updated_at = $2
		WHERE id = $3 AND company_id = $4`, ts(nextRunAt), ts(s.now()), id, int64(tenant))
	if err != nil {
		return fmt.Errorf("activate schedule %d: %w", id, err)
	}
	return expectOne(res, id, domain.ErrNotFound)
}

func (s *sqlStore) RecordRun(ctx context.Context, rec domain.RunRecord) error {
	query := `
		INSERT INTO run_history (
			id, schedule_id, company_id, status, period_start, period_end,
			recipients_notified, file_path, error, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		rec.ID,
		rec.ScheduleID,
		int64(rec.TenantID),
		string(rec.Status),
		ts(rec.PeriodStart),
		ts(rec.PeriodEnd),
		rec.RecipientsNotified,
		rec.FilePath,
		rec.Error,
		ts(rec.StartedAt),
		ts(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

func (s *sqlStore) ListRuns(ctx context.Context, tenant domain.TenantID, scheduleID int64, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, schedule_id, company_id, status, period_start, period_end,
		recipients_notified, file_path, error, started_at, finished_at
		FROM run_history WHERE company_id = $1`
	args := []any{int64(tenant)}
	if scheduleID != 0 {
		query += ` AND schedule_id = $2`
		args = append(args, scheduleID)
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC, id LIMIT %d`, limit)

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	defer rows.Close()

	records := make([]domain.RunRecord, 0)
	for rows.Next() {
		var (
			rec     domain.RunRecord
			company int64
			status  string
			errText sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.ScheduleID, &company, &status, &rec.PeriodStart, &rec.PeriodEnd,
			&rec.RecipientsNotified, &rec.FilePath, &errText, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		rec.TenantID = domain.TenantID(company)
		rec.PeriodStart, rec.PeriodEnd = rec.PeriodStart.UTC(), rec.PeriodEnd.UTC()
		rec.StartedAt, rec.FinishedAt = rec.StartedAt.UTC(), rec.FinishedAt.UTC()
		rec.Status = domain.RunStatus(status)
		if errText.Valid {
			rec.Error = &errText.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func expectOne(res sql.Result, id int64, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("schedule %d: %w", id, sentinel)
	}
	return nil
}

func scanSchedules(rows *sql.Rows) ([]domain.ReportSchedule, error) {
	list := make([]domain.ReportSchedule, 0)
	for rows.Next() {
		var (
			s                           domain.ReportSchedule
			tenant                      int64
			reportType, freq, format    string
			params, recipients, options string
			lastRun, lockedUntil        sql.NullTime
			lastError                   sql.NullString
		)
		err := rows.Scan(&s.ID, &tenant, &s.Name, &reportType, &freq, &params, &recipients, &format,
			&options, &s.NextRunAt, &lastRun, &s.IsActive, &s.FailureCount, &lockedUntil, &lastError,
			&s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}

		s.TenantID = domain.TenantID(tenant)
		s.ReportType = domain.ReportType(reportType)
		s.Frequency = domain.Frequency(freq)
		s.Format = domain.ExportFormat(format)
		s.NextRunAt = s.NextRunAt.UTC()
		s.CreatedAt = s.CreatedAt.UTC()
		s.UpdatedAt = s.UpdatedAt.UTC()
		if lastRun.Valid {
			t := lastRun.Time.UTC()
			s.LastRunAt = &t
		}
		if lockedUntil.Valid {
			t := lockedUntil.Time.UTC()
			s.LockedUntil = &t
		}
		if lastError.Valid {
			s.LastError = &lastError.String
		}

		if err := errors.Join(
			decodeColumn("parameters", params, &s.Parameters),
			decodeColumn("recipients", recipients, &s.Recipients),
			decodeColumn("delivery_options", options, &s.DeliveryOptions),
		); err != nil {
			return nil, fmt.Errorf("schedule %d: %w", s.ID, err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func decodeColumn(name, raw string, dst any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

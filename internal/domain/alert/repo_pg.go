package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindwell/crisis/internal/platform/db"
	"github.com/mindwell/crisis/pkg/risk"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const alertCols = `id, user_id, status, level, score, trigger_source,
	risk_factors, protective_factors, interventions_triggered,
	previous_alert_id, override_active,
	created_at, last_escalated_at, resolved_at, resolved_by, resolution_note`

func (r *repoPG) scanAlert(row pgx.Row) (*CrisisAlert, error) {
	var a CrisisAlert
	var level int
	err := row.Scan(&a.ID, &a.UserID, &a.Status, &level, &a.Score, &a.TriggerSource,
		&a.RiskFactors, &a.ProtectiveFactors, &a.InterventionsTriggered,
		&a.PreviousAlertID, &a.OverrideActive,
		&a.CreatedAt, &a.LastEscalatedAt, &a.ResolvedAt, &a.ResolvedBy, &a.ResolutionNote)
	a.Level = risk.CrisisLevel(level)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *CrisisAlert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO crisis_alert (id, user_id, status, level, score, trigger_source,
			risk_factors, protective_factors, interventions_triggered,
			previous_alert_id, override_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.ID, a.UserID, a.Status, int(a.Level), a.Score, a.TriggerSource,
		a.RiskFactors, a.ProtectiveFactors, a.InterventionsTriggered,
		a.PreviousAlertID, a.OverrideActive, a.CreatedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*CrisisAlert, error) {
	return r.scanAlert(r.conn(ctx).QueryRow(ctx, `SELECT `+alertCols+` FROM crisis_alert WHERE id = $1`, id))
}

func (r *repoPG) UpdateLevel(ctx context.Context, id uuid.UUID, level risk.CrisisLevel, escalatedAt time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE crisis_alert SET level = $2, last_escalated_at = $3 WHERE id = $1`,
		id, int(level), escalatedAt)
	return err
}

func (r *repoPG) AppendIntervention(ctx context.Context, id uuid.UUID, t risk.InterventionType) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE crisis_alert
		SET interventions_triggered = interventions_triggered || to_jsonb($2::text)
		WHERE id = $1`,
		id, string(t))
	return err
}

func (r *repoPG) SetOverride(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE crisis_alert SET override_active = $2 WHERE id = $1`,
		id, active)
	return err
}

func (r *repoPG) Resolve(ctx context.Context, id uuid.UUID, resolvedAt time.Time, resolvedBy, note string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE crisis_alert SET status = $2, resolved_at = $3, resolved_by = $4, resolution_note = $5
		WHERE id = $1`,
		id, StatusResolved, resolvedAt, resolvedBy, note)
	return err
}

func (r *repoPG) AppendTransition(ctx context.Context, tr *LevelTransition) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO crisis_alert_transition (id, alert_id, from_level, to_level, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		tr.ID, tr.AlertID, int(tr.FromLevel), int(tr.ToLevel), tr.Reason, tr.CreatedAt)
	return err
}

func (r *repoPG) ListTransitions(ctx context.Context, alertID uuid.UUID) ([]*LevelTransition, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, alert_id, from_level, to_level, reason, created_at
		FROM crisis_alert_transition WHERE alert_id = $1 ORDER BY created_at ASC`, alertID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*LevelTransition
	for rows.Next() {
		var tr LevelTransition
		var from, to int
		if err := rows.Scan(&tr.ID, &tr.AlertID, &from, &to, &tr.Reason, &tr.CreatedAt); err != nil {
			return nil, err
		}
		tr.FromLevel = risk.CrisisLevel(from)
		tr.ToLevel = risk.CrisisLevel(to)
		items = append(items, &tr)
	}
	return items, rows.Err()
}

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*CrisisAlert, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM crisis_alert WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+alertCols+` FROM crisis_alert WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*CrisisAlert
	for rows.Next() {
		a, err := r.scanAlert(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ActiveForUser(ctx context.Context, userID uuid.UUID) (*CrisisAlert, error) {
	return r.scanAlert(r.conn(ctx).QueryRow(ctx, `
		SELECT `+alertCols+` FROM crisis_alert
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC LIMIT 1`, userID, StatusOpen))
}

func (r *repoPG) ListActive(ctx context.Context) ([]*CrisisAlert, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+alertCols+` FROM crisis_alert WHERE status = $1 ORDER BY created_at ASC`, StatusOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*CrisisAlert
	for rows.Next() {
		a, err := r.scanAlert(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) Counters(ctx context.Context) (*PlatformCounters, error) {
	var c PlatformCounters
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $1 AND level >= $2),
			COUNT(*) FILTER (WHERE status = $3),
			COALESCE(AVG(EXTRACT(EPOCH FROM (resolved_at - created_at))) FILTER (WHERE resolved_at IS NOT NULL), 0)
		FROM crisis_alert`,
		StatusOpen, int(risk.LevelHigh), StatusResolved).
		Scan(&c.TotalAlerts, &c.ActiveAlerts, &c.ActiveHighRisk, &c.ResolvedAlerts, &c.AvgResolutionSeconds)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

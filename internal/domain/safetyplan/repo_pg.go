package safetyplan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindwell/crisis/internal/platform/db"
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

const planCols = `id, user_id, status, warning_signs, coping_strategies,
	support_contacts, professional_contacts, emergency_numbers,
	activation_count, synthesized, last_activated_at, last_reviewed_at,
	created_at, updated_at`

func (r *repoPG) scanPlan(row pgx.Row) (*SafetyPlan, error) {
	var p SafetyPlan
	err := row.Scan(&p.ID, &p.UserID, &p.Status, &p.WarningSigns, &p.CopingStrategies,
		&p.SupportContacts, &p.ProfessionalContacts, &p.EmergencyNumbers,
		&p.ActivationCount, &p.Synthesized, &p.LastActivatedAt, &p.LastReviewedAt,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *SafetyPlan) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO safety_plan (id, user_id, status, warning_signs, coping_strategies,
			support_contacts, professional_contacts, emergency_numbers,
			activation_count, synthesized)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.UserID, p.Status, p.WarningSigns, p.CopingStrategies,
		p.SupportContacts, p.ProfessionalContacts, p.EmergencyNumbers,
		p.ActivationCount, p.Synthesized)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*SafetyPlan, error) {
	return r.scanPlan(r.conn(ctx).QueryRow(ctx, `SELECT `+planCols+` FROM safety_plan WHERE id = $1`, id))
}

func (r *repoPG) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*SafetyPlan, error) {
	return r.scanPlan(r.conn(ctx).QueryRow(ctx, `
		SELECT `+planCols+` FROM safety_plan WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC LIMIT 1`, userID, StatusActive))
}

func (r *repoPG) Update(ctx context.Context, p *SafetyPlan) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE safety_plan SET warning_signs=$2, coping_strategies=$3,
			support_contacts=$4, professional_contacts=$5, emergency_numbers=$6,
			last_reviewed_at=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.WarningSigns, p.CopingStrategies,
		p.SupportContacts, p.ProfessionalContacts, p.EmergencyNumbers,
		p.LastReviewedAt)
	return err
}

func (r *repoPG) SupersedeActive(ctx context.Context, userID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE safety_plan SET status = $2, updated_at = NOW()
		WHERE user_id = $1 AND status = $3`,
		userID, StatusSuperseded, StatusActive)
	return err
}

func (r *repoPG) RecordActivation(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE safety_plan
		SET activation_count = activation_count + 1, last_activated_at = $2,
			last_reviewed_at = $2, updated_at = NOW()
		WHERE id = $1`, id, at)
	return err
}

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*SafetyPlan, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM safety_plan WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+planCols+` FROM safety_plan WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*SafetyPlan
	for rows.Next() {
		p, err := r.scanPlan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

package intervention

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

const interventionCols = `id, alert_id, user_id, type, status, channel, recipient,
	counselor_id, outcome, follow_up_required, contacts_reached, response_text,
	initiated_at, responded_at`

func (r *repoPG) scanIntervention(row pgx.Row) (*CrisisIntervention, error) {
	var iv CrisisIntervention
	err := row.Scan(&iv.ID, &iv.AlertID, &iv.UserID, &iv.Type, &iv.Status, &iv.Channel,
		&iv.Recipient, &iv.CounselorID, &iv.Outcome, &iv.FollowUpRequired,
		&iv.ContactsReached, &iv.ResponseText, &iv.InitiatedAt, &iv.RespondedAt)
	return &iv, err
}

func (r *repoPG) Create(ctx context.Context, iv *CrisisIntervention) error {
	if iv.ID == uuid.Nil {
		iv.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO crisis_intervention (id, alert_id, user_id, type, status, channel,
			recipient, counselor_id, outcome, follow_up_required, contacts_reached,
			initiated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		iv.ID, iv.AlertID, iv.UserID, iv.Type, iv.Status, iv.Channel,
		iv.Recipient, iv.CounselorID, iv.Outcome, iv.FollowUpRequired, iv.ContactsReached,
		iv.InitiatedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*CrisisIntervention, error) {
	return r.scanIntervention(r.conn(ctx).QueryRow(ctx, `SELECT `+interventionCols+` FROM crisis_intervention WHERE id = $1`, id))
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string, outcome *string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE crisis_intervention SET status = $2, outcome = COALESCE($3, outcome)
		WHERE id = $1`, id, status, outcome)
	return err
}

func (r *repoPG) RecordResponse(ctx context.Context, id uuid.UUID, at time.Time, text string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE crisis_intervention SET status = $2, responded_at = $3, response_text = $4
		WHERE id = $1`, id, StatusResponded, at, text)
	return err
}

func (r *repoPG) ListByAlert(ctx context.Context, alertID uuid.UUID) ([]*CrisisIntervention, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+interventionCols+` FROM crisis_intervention
		WHERE alert_id = $1 ORDER BY initiated_at ASC`, alertID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*CrisisIntervention
	for rows.Next() {
		iv, err := r.scanIntervention(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, iv)
	}
	return items, rows.Err()
}

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*CrisisIntervention, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM crisis_intervention WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+interventionCols+` FROM crisis_intervention
		WHERE user_id = $1 ORDER BY initiated_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*CrisisIntervention
	for rows.Next() {
		iv, err := r.scanIntervention(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, iv)
	}
	return items, total, rows.Err()
}

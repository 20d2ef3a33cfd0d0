package contact

import (
	"context"

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

const contactCols = `id, user_id, name, relationship, phone, email, priority,
	consent_to_contact, available_247, preferred_channel, created_at, updated_at`

func (r *repoPG) scanContact(row pgx.Row) (*EmergencyContact, error) {
	var c EmergencyContact
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Relationship, &c.Phone, &c.Email, &c.Priority,
		&c.ConsentToContact, &c.Available247, &c.PreferredChannel, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, c *EmergencyContact) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO emergency_contact (id, user_id, name, relationship, phone, email,
			priority, consent_to_contact, available_247, preferred_channel)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		c.ID, c.UserID, c.Name, c.Relationship, c.Phone, c.Email,
		c.Priority, c.ConsentToContact, c.Available247, c.PreferredChannel)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*EmergencyContact, error) {
	return r.scanContact(r.conn(ctx).QueryRow(ctx, `SELECT `+contactCols+` FROM emergency_contact WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, c *EmergencyContact) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE emergency_contact SET name=$2, relationship=$3, phone=$4, email=$5,
			priority=$6, consent_to_contact=$7, available_247=$8, preferred_channel=$9,
			updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.Relationship, c.Phone, c.Email,
		c.Priority, c.ConsentToContact, c.Available247, c.PreferredChannel)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM emergency_contact WHERE id = $1`, id)
	return err
}

// ListByUser returns contacts in deterministic cascade order: priority
// ascending, then creation time as the stable tie-break.
func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*EmergencyContact, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+contactCols+` FROM emergency_contact
		WHERE user_id = $1 ORDER BY priority ASC, created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*EmergencyContact
	for rows.Next() {
		c, err := r.scanContact(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

package counselor

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

const counselorCols = `id, name, status, current_load, max_load, avg_response_seconds,
	phone, email, created_at, updated_at`

func (r *repoPG) scanCounselor(row pgx.Row) (*CrisisCounselor, error) {
	var c CrisisCounselor
	err := row.Scan(&c.ID, &c.Name, &c.Status, &c.CurrentLoad, &c.MaxLoad, &c.AvgResponseSeconds,
		&c.Phone, &c.Email, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, c *CrisisCounselor) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO crisis_counselor (id, name, status, current_load, max_load,
			avg_response_seconds, phone, email)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.Name, c.Status, c.CurrentLoad, c.MaxLoad,
		c.AvgResponseSeconds, c.Phone, c.Email)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*CrisisCounselor, error) {
	return r.scanCounselor(r.conn(ctx).QueryRow(ctx, `SELECT `+counselorCols+` FROM crisis_counselor WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, c *CrisisCounselor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE crisis_counselor SET name=$2, status=$3, max_load=$4,
			avg_response_seconds=$5, phone=$6, email=$7, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.Status, c.MaxLoad, c.AvgResponseSeconds, c.Phone, c.Email)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM crisis_counselor WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*CrisisCounselor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM crisis_counselor`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+counselorCols+` FROM crisis_counselor ORDER BY name ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*CrisisCounselor
	for rows.Next() {
		c, err := r.scanCounselor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListAvailable(ctx context.Context) ([]*CrisisCounselor, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+counselorCols+` FROM crisis_counselor
		WHERE status = $1 AND current_load < max_load
		ORDER BY current_load ASC, avg_response_seconds ASC`, StatusAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*CrisisCounselor
	for rows.Next() {
		c, err := r.scanCounselor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *repoPG) UpdateLoad(ctx context.Context, id uuid.UUID, load int, status string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE crisis_counselor SET current_load = $2, status = $3, updated_at = NOW()
		WHERE id = $1`, id, load, status)
	return err
}

// This file contains the data access layer for properties (farms).  Every
// query is scoped by owner where the caller needs it, and deletes are soft:
// a removed property keeps its row with is_active = FALSE and is treated as
// missing by every read.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/farm-records/internal/model"
)

// PropertyRepo encapsulates all database queries related to properties.
type PropertyRepo struct {
	db *sql.DB
}

func NewPropertyRepo(db *sql.DB) *PropertyRepo {
	return &PropertyRepo{db: db}
}

const propertyColumns = `id, user_id, name, address, total_area, production_area, main_crop,
	is_active, created_at, updated_at`

func scanProperty(row interface{ Scan(...any) error }) (*model.Property, error) {
	p := new(model.Property)
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Address, &p.TotalArea, &p.ProductionArea,
		&p.MainCrop, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new property.  The id is generated here and the row is
// read back so that timestamps are populated.
func (r *PropertyRepo) Create(ctx context.Context, p *model.Property) error {
	p.ID = uuid.NewString()
	const q = `INSERT INTO properties (id, user_id, name, address, total_area, production_area, main_crop)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, p.ID, p.UserID, p.Name, p.Address,
		p.TotalArea, p.ProductionArea, p.MainCrop); err != nil {
		return err
	}
	got, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *got
	return nil
}

// GetByID fetches an active property regardless of owner.  Missing and
// soft-deleted rows both yield ErrPropertyNotFound; ownership is left to
// the caller.
func (r *PropertyRepo) GetByID(ctx context.Context, id string) (*model.Property, error) {
	q := "SELECT " + propertyColumns + " FROM properties WHERE id = ? AND is_active = TRUE"
	p, err := scanProperty(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListByOwner returns one page of the owner's active properties ordered by
// name, together with the total number of matches.  search matches name,
// address or main crop case-insensitively.
func (r *PropertyRepo) ListByOwner(ctx context.Context, ownerID, search string, limit, offset int) ([]*model.Property, int, error) {
	where := "user_id = ? AND is_active = TRUE"
	args := []any{ownerID}
	if s := strings.TrimSpace(search); s != "" {
		where += ` AND (LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(address) LIKE ? ESCAPE '\\' OR LOWER(main_crop) LIKE ? ESCAPE '\\')`
		pat := likePattern(s)
		args = append(args, pat, pat, pat)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM properties WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := "SELECT " + propertyColumns + " FROM properties WHERE " + where + " ORDER BY name, id LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update writes the mutable fields of an active property owned by
// p.UserID.  It returns ErrPropertyNotFound when no such row exists.
func (r *PropertyRepo) Update(ctx context.Context, p *model.Property) error {
	const q = `UPDATE properties
	           SET name = ?, address = ?, total_area = ?, production_area = ?, main_crop = ?,
	               updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND user_id = ? AND is_active = TRUE`
	res, err := r.db.ExecContext(ctx, q, p.Name, p.Address, p.TotalArea, p.ProductionArea,
		p.MainCrop, p.ID, p.UserID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// unchanged rows also report zero, so re-check existence
		got, err := r.GetByID(ctx, p.ID)
		if err != nil {
			return err
		}
		if got.UserID != p.UserID {
			return ErrForbidden
		}
	}
	got, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *got
	return nil
}

// SoftDeleteByIDAndOwner deactivates a property and every culture planted
// on it.  If the property does not exist (or is already inactive),
// ErrPropertyNotFound is returned.  If it exists but belongs to a
// different user, ErrForbidden is returned.  Both updates run in a single
// transaction.
func (r *PropertyRepo) SoftDeleteByIDAndOwner(ctx context.Context, id, ownerID string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var dbOwnerID string
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM properties WHERE id = ? AND is_active = TRUE FOR UPDATE`, id).Scan(&dbOwnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPropertyNotFound
		}
		return err
	}
	if dbOwnerID != ownerID {
		return ErrForbidden
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE cultures SET is_active = FALSE, deactivation_reason = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE property_id = ? AND COALESCE(deactivation_reason, '') <> ?`,
		string(model.ReasonDeleted), id, string(model.ReasonDeleted)); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE properties SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

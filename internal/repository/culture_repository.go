// This file contains the data access layer for cultures (crop cycles).
// Reads join the owning property and count the activities recorded against
// each culture so the service can build full views from a single query.
// Soft-deleted rows (deactivation_reason = 'DELETED') are invisible to
// every read; completed cycles stay visible with is_active = FALSE.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/farm-records/internal/model"
)

// CultureFilter narrows ListByOwner.  SortBy takes the API sort keys;
// keys that cannot be ordered in SQL fall back to newest first.
type CultureFilter struct {
	Search string
	SortBy string
	Desc   bool
}

// cultureSortColumns maps API sort keys to SQL expressions.
var cultureSortColumns = map[string]string{
	"plantingDate": "c.planting_date",
	"name":         "c.name",
	"plantingArea": "c.planting_area",
	"propertyName": "p.name",
	"cycle":        "c.cycle",
	"createdAt":    "c.created_at",
}

func cultureOrderBy(sortBy string, desc bool) string {
	col, ok := cultureSortColumns[sortBy]
	if !ok {
		return "c.created_at DESC, c.id DESC"
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return col + " " + dir + ", c.id " + dir
}

const cultureSelect = `SELECT c.id, c.user_id, c.property_id, c.name, c.cultivar, c.supplier, c.origin,
	c.observations, c.planting_date, c.cycle, c.planting_area, c.is_active, c.deactivation_reason,
	c.created_at, c.updated_at,
	p.id, p.name, p.address, p.total_area, p.production_area, p.main_crop,
	(SELECT COUNT(*) FROM activities a WHERE a.culture_id = c.id) AS activity_count
FROM cultures c
JOIN properties p ON p.id = c.property_id`

// notDeleted excludes soft-deleted cultures.
const notDeleted = `COALESCE(c.deactivation_reason, '') <> 'DELETED'`

// CultureRepo encapsulates all database queries related to cultures.
type CultureRepo struct {
	db *sql.DB
}

func NewCultureRepo(db *sql.DB) *CultureRepo {
	return &CultureRepo{db: db}
}

func scanCulture(row interface{ Scan(...any) error }) (*model.Culture, error) {
	var (
		c      model.Culture
		obs    sql.NullString
		reason sql.NullString
		origin string
	)
	err := row.Scan(&c.ID, &c.UserID, &c.PropertyID, &c.Name, &c.Cultivar, &c.Supplier, &origin,
		&obs, &c.PlantingDate, &c.Cycle, &c.PlantingArea, &c.IsActive, &reason,
		&c.CreatedAt, &c.UpdatedAt,
		&c.Property.ID, &c.Property.Name, &c.Property.Address, &c.Property.TotalArea,
		&c.Property.ProductionArea, &c.Property.MainCrop,
		&c.ActivityCount)
	if err != nil {
		return nil, err
	}
	c.Origin = model.Origin(origin)
	if obs.Valid {
		c.Observations = &obs.String
	}
	c.DeactivationReason = model.DeactivationReason(reason.String)
	return &c, nil
}

func nullableReason(r model.DeactivationReason) any {
	if r == model.ReasonNone {
		return nil
	}
	return string(r)
}

// Create inserts a new active culture and reads it back with its property
// summary.
func (r *CultureRepo) Create(ctx context.Context, c *model.Culture) error {
	c.ID = uuid.NewString()
	const q = `INSERT INTO cultures (id, user_id, property_id, name, cultivar, supplier, origin,
	               observations, planting_date, cycle, planting_area, is_active)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE)`
	if _, err := r.db.ExecContext(ctx, q, c.ID, c.UserID, c.PropertyID, c.Name, c.Cultivar, c.Supplier,
		string(c.Origin), c.Observations, c.PlantingDate.Format(dateLayout), c.Cycle, c.PlantingArea); err != nil {
		return err
	}
	got, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *got
	return nil
}

// GetByID fetches a culture regardless of owner.  Missing and
// soft-deleted rows yield ErrCultureNotFound.
func (r *CultureRepo) GetByID(ctx context.Context, id string) (*model.Culture, error) {
	q := cultureSelect + " WHERE c.id = ? AND " + notDeleted
	c, err := scanCulture(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCultureNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListByOwner returns every visible culture of the owner planted on an
// active property.  Search matches the culture name, cultivar or property
// name case-insensitively.  Pagination is left to the caller because some
// orderings depend on the current date.
func (r *CultureRepo) ListByOwner(ctx context.Context, ownerID string, f CultureFilter) ([]*model.Culture, error) {
	q := cultureSelect + " WHERE c.user_id = ? AND p.is_active = TRUE AND " + notDeleted
	args := []any{ownerID}
	if s := strings.TrimSpace(f.Search); s != "" {
		q += ` AND (LOWER(c.name) LIKE ? ESCAPE '\\' OR LOWER(c.cultivar) LIKE ? ESCAPE '\\' OR LOWER(p.name) LIKE ? ESCAPE '\\')`
		pat := likePattern(s)
		args = append(args, pat, pat, pat)
	}
	q += " ORDER BY " + cultureOrderBy(f.SortBy, f.Desc)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Culture
	for rows.Next() {
		c, err := scanCulture(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes the mutable fields of a visible culture owned by c.UserID.
// Activation state is not touched.
func (r *CultureRepo) Update(ctx context.Context, c *model.Culture) error {
	q := `UPDATE cultures c
	      SET c.property_id = ?, c.name = ?, c.cultivar = ?, c.supplier = ?, c.origin = ?,
	          c.observations = ?, c.planting_date = ?, c.cycle = ?, c.planting_area = ?,
	          c.updated_at = CURRENT_TIMESTAMP
	      WHERE c.id = ? AND c.user_id = ? AND ` + notDeleted
	if _, err := r.db.ExecContext(ctx, q, c.PropertyID, c.Name, c.Cultivar, c.Supplier, string(c.Origin),
		c.Observations, c.PlantingDate.Format(dateLayout), c.Cycle, c.PlantingArea, c.ID, c.UserID); err != nil {
		return err
	}
	got, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	if got.UserID != c.UserID {
		return ErrForbidden
	}
	*c = *got
	return nil
}

// SetInactive deactivates the given cultures with the given reason.  Rows
// that are already inactive are left alone, so repeating the call is
// harmless.  It returns the number of rows changed.
func (r *CultureRepo) SetInactive(ctx context.Context, ids []string, reason model.DeactivationReason) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := `UPDATE cultures SET is_active = FALSE, deactivation_reason = ?, updated_at = CURRENT_TIMESTAMP
	      WHERE is_active = TRUE AND id IN (` + placeholders(len(ids)) + `)`
	args := make([]any, 0, len(ids)+1)
	args = append(args, nullableReason(reason))
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SoftDeleteByIDAndOwner marks a culture as deleted.  If the culture does
// not exist (or was already deleted), ErrCultureNotFound is returned.  If
// it exists but belongs to a different user, ErrForbidden is returned.
func (r *CultureRepo) SoftDeleteByIDAndOwner(ctx context.Context, id, ownerID string) (err error) {
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
		`SELECT c.user_id FROM cultures c WHERE c.id = ? AND `+notDeleted+` FOR UPDATE`, id).Scan(&dbOwnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCultureNotFound
		}
		return err
	}
	if dbOwnerID != ownerID {
		return ErrForbidden
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE cultures SET is_active = FALSE, deactivation_reason = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(model.ReasonDeleted), id)
	return err
}

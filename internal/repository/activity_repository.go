// This file contains the data access layer for field activities.
// Attachments are kept as a JSON array of storage keys on the activity
// row itself; the files live in the configured object store.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/farm-records/internal/model"
)

// ActivityFilter narrows ListByOwner.  Empty fields do not filter.
type ActivityFilter struct {
	CultureID string
	Type      model.ActivityType
}

// ActivityRepo encapsulates all database queries related to activities.
type ActivityRepo struct {
	db *sql.DB
}

func NewActivityRepo(db *sql.DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

const activityColumns = `id, user_id, culture_id, type, title, description, activity_date,
	attachments, created_at, updated_at`

func scanActivity(row interface{ Scan(...any) error }) (*model.Activity, error) {
	var (
		a       model.Activity
		culture sql.NullString
		desc    sql.NullString
		typ     string
		raw     []byte
	)
	if err := row.Scan(&a.ID, &a.UserID, &culture, &typ, &a.Title, &desc, &a.ActivityDate,
		&raw, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Type = model.ActivityType(typ)
	if culture.Valid {
		a.CultureID = &culture.String
	}
	if desc.Valid {
		a.Description = &desc.String
	}
	attachments, err := decodeAttachments(raw)
	if err != nil {
		return nil, err
	}
	a.Attachments = attachments
	return &a, nil
}

func decodeAttachments(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func encodeAttachments(keys []string) (string, error) {
	if keys == nil {
		keys = []string{}
	}
	b, err := json.Marshal(keys)
	return string(b), err
}

// Create inserts a new activity and reads it back.
func (r *ActivityRepo) Create(ctx context.Context, a *model.Activity) error {
	a.ID = uuid.NewString()
	attachments, err := encodeAttachments(a.Attachments)
	if err != nil {
		return err
	}
	const q = `INSERT INTO activities (id, user_id, culture_id, type, title, description, activity_date, attachments)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, a.ID, a.UserID, a.CultureID, string(a.Type), a.Title,
		a.Description, a.ActivityDate.Format(dateLayout), attachments); err != nil {
		return err
	}
	got, err := r.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	*a = *got
	return nil
}

// GetByID fetches an activity regardless of owner.
func (r *ActivityRepo) GetByID(ctx context.Context, id string) (*model.Activity, error) {
	a, err := scanActivity(r.db.QueryRowContext(ctx,
		"SELECT "+activityColumns+" FROM activities WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListByOwner returns one page of the owner's activities, newest activity
// date first, and the total number of matches.
func (r *ActivityRepo) ListByOwner(ctx context.Context, ownerID string, f ActivityFilter, limit, offset int) ([]*model.Activity, int, error) {
	where := "user_id = ?"
	args := []any{ownerID}
	if f.CultureID != "" {
		where += " AND culture_id = ?"
		args = append(args, f.CultureID)
	}
	if f.Type != "" {
		where += " AND type = ?"
		args = append(args, string(f.Type))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activities WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := "SELECT " + activityColumns + " FROM activities WHERE " + where +
		" ORDER BY activity_date DESC, created_at DESC, id LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update writes the mutable fields of an activity owned by a.UserID.
// Attachments are managed separately through SetAttachments.
func (r *ActivityRepo) Update(ctx context.Context, a *model.Activity) error {
	const q = `UPDATE activities
	           SET culture_id = ?, type = ?, title = ?, description = ?, activity_date = ?,
	               updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND user_id = ?`
	if _, err := r.db.ExecContext(ctx, q, a.CultureID, string(a.Type), a.Title, a.Description,
		a.ActivityDate.Format(dateLayout), a.ID, a.UserID); err != nil {
		return err
	}
	got, err := r.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if got.UserID != a.UserID {
		return ErrForbidden
	}
	*a = *got
	return nil
}

// SetAttachments replaces the attachment list of an activity.
func (r *ActivityRepo) SetAttachments(ctx context.Context, id string, keys []string) error {
	attachments, err := encodeAttachments(keys)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE activities SET attachments = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, attachments, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByIDAndOwner removes an activity row and returns the storage keys
// of its attachments so the caller can clean them up.  If the activity
// does not exist, ErrActivityNotFound is returned.  If it belongs to a
// different user, ErrForbidden is returned.
func (r *ActivityRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (keys []string, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var (
		dbOwnerID string
		raw       []byte
	)
	err = tx.QueryRowContext(ctx,
		`SELECT user_id, attachments FROM activities WHERE id = ? FOR UPDATE`, id).Scan(&dbOwnerID, &raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}
	if dbOwnerID != ownerID {
		return nil, ErrForbidden
	}
	if keys, err = decodeAttachments(raw); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM activities WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return keys, nil
}

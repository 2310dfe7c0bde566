package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/farm-records/internal/model"
	"github.com/iliyamo/farm-records/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,name,password_hash,is_active,created_at,updated_at"

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create hashes the password, inserts the user and returns its new id.
func (r *UserRepo) Create(ctx context.Context, email, name, password string, cost int) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, name, password_hash) VALUES (?,?,?,?)",
		id, email, strings.TrimSpace(name), hash)
	if err != nil {
		if isDuplicate(err) {
			return "", ErrEmailExists
		}
		return "", err
	}
	return id, nil
}

// GetByEmail fetches an active user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? AND is_active=TRUE LIMIT 1", email))
}

// GetByID fetches an active user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? AND is_active=TRUE LIMIT 1", id))
}

// UpdateProfile changes the display name and, when passwordHash is
// non-empty, the password.
func (r *UserRepo) UpdateProfile(ctx context.Context, id, name, passwordHash string) error {
	q := "UPDATE users SET name=?, updated_at=CURRENT_TIMESTAMP WHERE id=? AND is_active=TRUE"
	args := []any{strings.TrimSpace(name), id}
	if passwordHash != "" {
		q = "UPDATE users SET name=?, password_hash=?, updated_at=CURRENT_TIMESTAMP WHERE id=? AND is_active=TRUE"
		args = []any{strings.TrimSpace(name), passwordHash, id}
	}
	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 affected rows when nothing changed, so confirm the row exists
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Deactivate closes an account.  The user's properties and cultures are
// soft-deleted and every refresh token is revoked in the same transaction.
func (r *UserRepo) Deactivate(ctx context.Context, id string) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
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
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET is_active=FALSE, updated_at=CURRENT_TIMESTAMP WHERE id=? AND is_active=TRUE", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE cultures SET is_active=FALSE, deactivation_reason=?, updated_at=CURRENT_TIMESTAMP
		 WHERE user_id=? AND COALESCE(deactivation_reason,'') <> ?`,
		string(model.ReasonDeleted), id, string(model.ReasonDeleted)); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE properties SET is_active=FALSE, updated_at=CURRENT_TIMESTAMP WHERE user_id=? AND is_active=TRUE", id); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL", id)
	return err
}

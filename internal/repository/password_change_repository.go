package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// PasswordChangeRepo reads the append-only password-change audit log.
// Writes happen inside the user repository's transactions; this repo
// only serves the admin audit view.
type PasswordChangeRepo struct{ DB *sql.DB }

func NewPasswordChangeRepo(db *sql.DB) *PasswordChangeRepo { return &PasswordChangeRepo{DB: db} }

// History returns the user's password changes, newest first.
func (r *PasswordChangeRepo) History(ctx context.Context, userID uint64) ([]model.PasswordChange, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, old_password_hash, new_password_hash, changed_at
		 FROM password_changes WHERE user_id=? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PasswordChange
	for rows.Next() {
		var c model.PasswordChange
		if err := rows.Scan(&c.ID, &c.UserID, &c.OldHash, &c.NewHash, &c.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

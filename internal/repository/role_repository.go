package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/marketplace-backend/internal/model"
)

// RoleRepo persists the role catalog and per-user role assignments.
// The invariant it guards — at most one default assignment per user —
// is what every downstream authorization decision rests on, so the
// clear-then-set on a switch always runs inside one transaction.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// Catalog lists the roles table in id order.
func (r *RoleRepo) Catalog(ctx context.Context) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id FROM roles ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Role
	for rows.Next() {
		var id uint8
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		role, err := model.RoleFromID(id)
		if err != nil {
			// an unseeded or unknown id in the catalog is a deployment
			// problem, not a request problem
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// ListByUser returns all role assignments for a user, default first.
func (r *RoleRepo) ListByUser(ctx context.Context, userID uint64) ([]model.RoleAssignment, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT user_id, role_id, is_default, created_at FROM role_assignments
		 WHERE user_id=? ORDER BY is_default DESC, role_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RoleAssignment
	for rows.Next() {
		var (
			a  model.RoleAssignment
			id uint8
		)
		if err := rows.Scan(&a.UserID, &id, &a.IsDefault, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.RoleID = model.Role(id)
		out = append(out, a)
	}
	return out, rows.Err()
}

// SwitchDefault moves the default flag to the given role. The lookup,
// clear and set all happen inside one transaction: an interrupted
// non-atomic update would risk a user with zero or two defaults.
// Concurrent switches for the same user are serialized by the database;
// the last committed transaction wins and the invariant holds either way.
func (r *RoleRepo) SwitchDefault(ctx context.Context, userID uint64, role model.Role) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var isDefault bool
	err = tx.QueryRowContext(ctx,
		"SELECT is_default FROM role_assignments WHERE user_id=? AND role_id=? FOR UPDATE",
		userID, uint8(role)).Scan(&isDefault)
	if err == sql.ErrNoRows {
		return ErrRoleNotAssociated
	}
	if err != nil {
		return err
	}
	if isDefault {
		// idempotent: nothing to write, the caller reissues a token from
		// current state
		return ErrAlreadyDefault
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE role_assignments SET is_default=0 WHERE user_id=? AND is_default=1",
		userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE role_assignments SET is_default=1 WHERE user_id=? AND role_id=?",
		userID, uint8(role)); err != nil {
		return err
	}
	return tx.Commit()
}

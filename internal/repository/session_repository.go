package repository

import (
	"context"
	"database/sql"
	"time"
)

// SessionRepo is the session registry. Rows are an append-only audit
// trail: a signin flips every prior active row inactive and inserts the
// new one in the same transaction, so between committed transactions a
// user never has more than one live session. "Active" is always a query
// on the flag, never an assumption that one physical row exists.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Start invalidates all prior active sessions for the user and records
// the new one. Both writes commit together or not at all; a failed
// transaction means the signin fails with no partial state.
func (r *SessionRepo) Start(ctx context.Context, userID uint64, tokenHash string, expires time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET is_logged_in=0 WHERE user_id=? AND is_logged_in=1",
		userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO sessions (user_id, token_hash, is_logged_in, last_login, expires_at) VALUES (?,?,1,UTC_TIMESTAMP(),?)",
		userID, tokenHash, expires); err != nil {
		return err
	}
	return tx.Commit()
}

// InvalidateActive flips every active session for the user inactive and
// returns the number of rows touched. Zero rows means nothing was
// active — logout reports that instead of swallowing it.
func (r *SessionRepo) InvalidateActive(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET is_logged_in=0 WHERE user_id=? AND is_logged_in=1",
		userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// IsActive reports whether the token hash belongs to the user's live,
// unexpired session. This is the server-side revocation check layered on
// top of stateless token verification.
func (r *SessionRepo) IsActive(ctx context.Context, userID uint64, tokenHash string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		`SELECT 1 FROM sessions
		 WHERE user_id=? AND token_hash=? AND is_logged_in=1 AND expires_at > UTC_TIMESTAMP()
		 LIMIT 1`,
		userID, tokenHash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

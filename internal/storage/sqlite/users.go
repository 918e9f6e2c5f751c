package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ideaboard/internal/models"
)

const userColumns = `uid, email, display_name, photo_url, created_at, updated_at`

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UpsertUser creates the user record for p or merges its identity fields into
// the existing one. The board list is never touched. Calling it again with the
// same identity leaves the row, including updated_at, unchanged.
func (s *Store) UpsertUser(ctx context.Context, p models.Principal) error {
	if strings.TrimSpace(p.UID) == "" {
		return models.Invalidf("user id must not be empty")
	}

	var photo sql.NullString
	if p.PhotoURL != "" {
		photo = sql.NullString{String: p.PhotoURL, Valid: true}
	}
	email := NormalizeEmail(p.Email)
	now := s.now()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// An address that moved to another account is released from the old one.
		if email != "" {
			if _, err := tx.ExecContext(ctx, `UPDATE users SET email = '', updated_at = ?
                WHERE email = ? AND uid <> ?`, now, email, p.UID); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO users(uid, email, display_name, photo_url, created_at, updated_at)
            VALUES(?, ?, ?, ?, ?, ?)
            ON CONFLICT(uid) DO UPDATE SET
                email = excluded.email,
                display_name = excluded.display_name,
                photo_url = excluded.photo_url,
                updated_at = excluded.updated_at
            WHERE users.email IS NOT excluded.email
                OR users.display_name IS NOT excluded.display_name
                OR users.photo_url IS NOT excluded.photo_url`,
			p.UID, email, p.DisplayName, photo, now, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser fetches a user together with its board links.
func (s *Store) GetUser(ctx context.Context, uid string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE uid = ?`, uid)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.NotFoundf("user not found")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	if u.Boards, err = linkedBoards(ctx, s.db, uid); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// GetUserByEmail resolves a registered user by exact, case-insensitive email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return models.User{}, models.NotFoundf("User not found. They must be registered")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.NotFoundf("User not found. They must be registered")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user by email: %w", err)
	}
	if u.Boards, err = linkedBoards(ctx, s.db, u.UID); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// GetUsersByIDs resolves user ids in the given order, skipping unknown ids.
func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.GetUser(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// ListUsers returns up to limit users for the sharing directory.
func (s *Store) ListUsers(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (models.User, error) {
	var (
		u     models.User
		photo sql.NullString
	)
	if err := row.Scan(&u.UID, &u.Email, &u.DisplayName, &photo, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return models.User{}, err
	}
	if photo.Valid {
		u.PhotoURL = &photo.String
	}
	u.Boards = []string{}
	return u, nil
}

func linkedBoards(ctx context.Context, q querier, uid string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT board_id FROM user_boards WHERE user_id = ? ORDER BY position, rowid`, uid)
	if err != nil {
		return nil, fmt.Errorf("list user boards: %w", err)
	}
	defer rows.Close()

	boards := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user board: %w", err)
		}
		boards = append(boards, id)
	}
	return boards, rows.Err()
}

// linkBoard adds boardID to the user's board list unless already present.
func linkBoard(ctx context.Context, q querier, uid, boardID string) error {
	_, err := q.ExecContext(ctx, `INSERT INTO user_boards(user_id, board_id, position)
        VALUES(?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM user_boards WHERE user_id = ?))
        ON CONFLICT(user_id, board_id) DO NOTHING`, uid, boardID, uid)
	if err != nil {
		return fmt.Errorf("link board to user: %w", err)
	}
	return nil
}

func unlinkBoard(ctx context.Context, q querier, uid, boardID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM user_boards WHERE user_id = ? AND board_id = ?`, uid, boardID); err != nil {
		return fmt.Errorf("unlink board from user: %w", err)
	}
	return nil
}

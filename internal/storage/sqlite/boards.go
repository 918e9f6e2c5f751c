package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ideaboard/internal/models"
)

// CreateBoard stores a new board owned by userID and links it into the
// owner's board list. Both writes share one transaction.
func (s *Store) CreateBoard(ctx context.Context, userID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", models.Invalidf("board name must not be empty")
	}
	if strings.TrimSpace(userID) == "" {
		return "", models.Invalidf("board owner must not be empty")
	}

	id := s.newID()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO boards(id, name, owner, created_at) VALUES(?, ?, ?, ?)`,
			id, name, userID, s.now()); err != nil {
			return fmt.Errorf("insert board: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO board_members(board_id, user_id, position) VALUES(?, ?, 0)`,
			id, userID); err != nil {
			return fmt.Errorf("insert board owner: %w", err)
		}
		return linkBoard(ctx, tx, userID, id)
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug("board created", "board", id, "owner", userID)
	s.publishUsers(userID)
	return id, nil
}

// GetBoard fetches a single board by id.
func (s *Store) GetBoard(ctx context.Context, id string) (models.Board, error) {
	return getBoard(ctx, s.db, id)
}

func getBoard(ctx context.Context, q querier, id string) (models.Board, error) {
	var b models.Board
	err := q.QueryRowContext(ctx, `SELECT id, name, owner, created_at FROM boards WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &b.Owner, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Board{}, models.NotFoundf("board not found")
	}
	if err != nil {
		return models.Board{}, fmt.Errorf("get board: %w", err)
	}
	if b.Members, err = boardMembers(ctx, q, id); err != nil {
		return models.Board{}, err
	}
	return b, nil
}

// GetUserBoards returns every board whose member list contains userID,
// oldest first.
func (s *Store) GetUserBoards(ctx context.Context, userID string) ([]models.Board, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT b.id, b.name, b.owner, b.created_at
        FROM boards b JOIN board_members m ON m.board_id = b.id
        WHERE m.user_id = ? ORDER BY b.created_at, b.rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}

	boards := []models.Board{}
	for rows.Next() {
		var b models.Board
		if err := rows.Scan(&b.ID, &b.Name, &b.Owner, &b.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan board: %w", err)
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range boards {
		if boards[i].Members, err = boardMembers(ctx, s.db, boards[i].ID); err != nil {
			return nil, err
		}
	}
	return boards, nil
}

// AddMemberToBoard appends userID to the board's members and links the board
// into the user's list. Adding an existing member is a no-op.
func (s *Store) AddMemberToBoard(ctx context.Context, boardID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return models.Invalidf("member id must not be empty")
	}

	var (
		members []string
		added   bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		board, err := getBoard(ctx, tx, boardID)
		if err != nil {
			return err
		}
		members = board.Members
		if board.HasMember(userID) {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO board_members(board_id, user_id, position)
            VALUES(?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM board_members WHERE board_id = ?))`,
			boardID, userID, boardID); err != nil {
			return fmt.Errorf("insert board member: %w", err)
		}
		added = true
		return linkBoard(ctx, tx, userID, boardID)
	})
	if err != nil {
		return err
	}
	if !added {
		return nil
	}

	s.logger.Debug("board member added", "board", boardID, "user", userID)
	s.publishUsers(append(members, userID)...)
	return nil
}

// RemoveMemberFromBoard drops userID from the board and unlinks the board
// from the user. The owner and a board's sole member cannot be removed.
// Permission to remove is the caller's concern.
func (s *Store) RemoveMemberFromBoard(ctx context.Context, boardID, userID string) error {
	var members []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		board, err := getBoard(ctx, tx, boardID)
		if err != nil {
			return err
		}
		members = board.Members
		if !board.HasMember(userID) {
			return models.NotFoundf("user is not a member of this board")
		}
		if len(board.Members) == 1 && board.Members[0] == userID {
			return models.Invalidf("cannot remove the last member of a board")
		}
		if userID == board.Owner {
			return models.Invalidf("the board owner cannot be removed")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM board_members WHERE board_id = ? AND user_id = ?`, boardID, userID); err != nil {
			return fmt.Errorf("delete board member: %w", err)
		}
		return unlinkBoard(ctx, tx, userID, boardID)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("board member removed", "board", boardID, "user", userID)
	s.publishUsers(append(members, userID)...)
	return nil
}

// DeleteBoard removes a board, all of its tasks and every member's link to
// it. Only the owner may delete a board.
func (s *Store) DeleteBoard(ctx context.Context, boardID, requesterID string) error {
	var (
		members []string
		tasks   int64
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		board, err := getBoard(ctx, tx, boardID)
		if err != nil {
			return err
		}
		if board.Owner != requesterID {
			return models.PermissionDeniedf("only the board owner can delete this board")
		}
		members = board.Members

		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE board_id = ?`, boardID)
		if err != nil {
			return fmt.Errorf("delete board tasks: %w", err)
		}
		tasks, _ = res.RowsAffected()

		if _, err := tx.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, boardID); err != nil {
			return fmt.Errorf("delete board: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_boards WHERE board_id = ?`, boardID); err != nil {
			return fmt.Errorf("unlink deleted board: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("board deleted", "board", boardID, "tasks", tasks, "members", len(members))
	s.hub.Publish(tasksTopic(boardID))
	s.publishUsers(members...)
	return nil
}

func boardMembers(ctx context.Context, q querier, boardID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT user_id FROM board_members WHERE board_id = ? ORDER BY position`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board members: %w", err)
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan board member: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

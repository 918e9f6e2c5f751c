package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"ideaboard/internal/models"
)

// ReconcileReport counts the repairs made by Reconcile.
type ReconcileReport struct {
	OwnersRestored    int `json:"ownersRestored"`
	LinksAdded        int `json:"linksAdded"`
	LinksRemoved      int `json:"linksRemoved"`
	StatusesRewritten int `json:"statusesRewritten"`
}

// Changed reports whether any repair was made.
func (r ReconcileReport) Changed() bool {
	return r.OwnersRestored+r.LinksAdded+r.LinksRemoved+r.StatusesRewritten > 0
}

type pair struct {
	user  string
	board string
}

// Reconcile repairs drift between board member lists and user board lists:
// owners missing from their own board are re-added, member links missing
// from user_boards are created, links without a matching membership are
// dropped, and legacy task status tags are rewritten.
func (s *Store) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var (
		report ReconcileReport
		users  = map[string]struct{}{}
		boards = map[string]struct{}{}
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		owners, err := collectPairs(ctx, tx, `SELECT b.owner, b.id FROM boards b
            WHERE NOT EXISTS (SELECT 1 FROM board_members m WHERE m.board_id = b.id AND m.user_id = b.owner)`)
		if err != nil {
			return err
		}
		for _, p := range owners {
			if _, err := tx.ExecContext(ctx, `INSERT INTO board_members(board_id, user_id, position)
                VALUES(?, ?, (SELECT COALESCE(MIN(position), 1) - 1 FROM board_members WHERE board_id = ?))`,
				p.board, p.user, p.board); err != nil {
				return fmt.Errorf("restore owner: %w", err)
			}
			users[p.user] = struct{}{}
		}
		report.OwnersRestored = len(owners)

		missing, err := collectPairs(ctx, tx, `SELECT m.user_id, m.board_id FROM board_members m
            WHERE NOT EXISTS (SELECT 1 FROM user_boards u WHERE u.user_id = m.user_id AND u.board_id = m.board_id)`)
		if err != nil {
			return err
		}
		for _, p := range missing {
			if err := linkBoard(ctx, tx, p.user, p.board); err != nil {
				return err
			}
			users[p.user] = struct{}{}
		}
		report.LinksAdded = len(missing)

		dangling, err := collectPairs(ctx, tx, `SELECT u.user_id, u.board_id FROM user_boards u
            WHERE NOT EXISTS (SELECT 1 FROM board_members m WHERE m.user_id = u.user_id AND m.board_id = u.board_id)`)
		if err != nil {
			return err
		}
		for _, p := range dangling {
			if err := unlinkBoard(ctx, tx, p.user, p.board); err != nil {
				return err
			}
			users[p.user] = struct{}{}
		}
		report.LinksRemoved = len(dangling)

		rows, err := tx.QueryContext(ctx, `SELECT DISTINCT board_id FROM tasks WHERE status = ?`, models.LegacyStatusPaused)
		if err != nil {
			return fmt.Errorf("find legacy statuses: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan legacy status board: %w", err)
			}
			boards[id] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		res, err := tx.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE status = ?`, models.StatusPaused, models.LegacyStatusPaused)
		if err != nil {
			return fmt.Errorf("rewrite legacy statuses: %w", err)
		}
		n, _ := res.RowsAffected()
		report.StatusesRewritten = int(n)
		return nil
	})
	if err != nil {
		return ReconcileReport{}, err
	}

	for id := range users {
		s.publishUsers(id)
	}
	for id := range boards {
		s.hub.Publish(tasksTopic(id))
	}
	if report.Changed() {
		s.logger.Warn("membership drift repaired",
			"owners_restored", report.OwnersRestored,
			"links_added", report.LinksAdded,
			"links_removed", report.LinksRemoved,
			"statuses_rewritten", report.StatusesRewritten)
	}
	return report, nil
}

func collectPairs(ctx context.Context, q querier, query string) ([]pair, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reconcile scan: %w", err)
	}
	defer rows.Close()

	var out []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.user, &p.board); err != nil {
			return nil, fmt.Errorf("reconcile scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

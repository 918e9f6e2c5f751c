package sqlite

import (
	"context"

	"ideaboard/internal/feed"
	"ideaboard/internal/models"
)

// SubscribeToTasks calls onChange with the full task list of boardID now and
// after every change to that board's tasks, until the subscription is closed.
// Read failures are logged and skipped; the next change retries the read.
func (s *Store) SubscribeToTasks(boardID string, onChange func([]models.Task)) *feed.Subscription {
	return s.hub.Watch(func(ctx context.Context) {
		tasks, err := s.ListTasks(ctx, boardID)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("task listener failed", "board", boardID, "error", err)
			}
			return
		}
		onChange(tasks)
	}, tasksTopic(boardID))
}

// SubscribeToUserBoards calls onChange with every board userID belongs to now
// and after every board or membership change touching that user.
func (s *Store) SubscribeToUserBoards(userID string, onChange func([]models.Board)) *feed.Subscription {
	return s.hub.Watch(func(ctx context.Context) {
		boards, err := s.GetUserBoards(ctx, userID)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("board listener failed", "user", userID, "error", err)
			}
			return
		}
		onChange(boards)
	}, userBoardsTopic(userID))
}

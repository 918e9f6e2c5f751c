// Package boardview holds the per-session state a board client renders: the
// user's boards, the selected board and its live task list. Actions write
// through the repository; task changes come back only via the subscription.
package boardview

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"ideaboard/internal/feed"
	"ideaboard/internal/models"
)

// Repository is the board and task store the view drives.
type Repository interface {
	GetUserBoards(ctx context.Context, userID string) ([]models.Board, error)
	CreateBoard(ctx context.Context, userID, name string) (string, error)
	DeleteBoard(ctx context.Context, boardID, requesterID string) error
	CreateTask(ctx context.Context, boardID, text, userID string) (string, error)
	UpdateTaskStatus(ctx context.Context, boardID, taskID string, status models.Status) error
	DeleteTask(ctx context.Context, boardID, taskID string) error
	SubscribeToTasks(boardID string, onChange func([]models.Task)) *feed.Subscription
	SubscribeToUserBoards(userID string, onChange func([]models.Board)) *feed.Subscription
}

// State is a read-only snapshot for the presentation layer.
type State struct {
	Boards  []models.Board                  `json:"boards"`
	Current *models.Board                   `json:"currentBoard"`
	Tasks   []models.Task                   `json:"tasks"`
	Columns map[models.Status][]models.Task `json:"columns"`
	Loading bool                            `json:"loading"`
}

// Options configures a View.
type Options struct {
	// DefaultBoardName names the board created for a user with none.
	DefaultBoardName string
	// OnChange receives a fresh snapshot after every state change. It is
	// called without the view's lock held and must not block for long.
	OnChange func(State)
}

// View is the board/task view-model of one signed-in session.
type View struct {
	repo   Repository
	actor  models.Principal
	logger *slog.Logger
	opts   Options

	// emitMu orders snapshots: it is held from taking a snapshot until
	// OnChange returns, so a newer state is never overtaken by an older one.
	emitMu sync.Mutex

	mu       sync.Mutex
	boards   []models.Board
	current  *models.Board
	tasks    []models.Task
	loading  bool
	taskSub  *feed.Subscription
	boardSub *feed.Subscription
	closed   bool
}

// New builds a view for actor. Call Load before anything else.
func New(repo Repository, actor models.Principal, logger *slog.Logger, opts Options) *View {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(opts.DefaultBoardName) == "" {
		opts.DefaultBoardName = "My Board"
	}
	return &View{
		repo:    repo,
		actor:   actor,
		logger:  logger.With("uid", actor.UID),
		opts:    opts,
		tasks:   []models.Task{},
		loading: true,
	}
}

// Load fetches the actor's boards, creating the default board when there
// are none, selects the first board and starts the live feeds.
func (v *View) Load(ctx context.Context) error {
	boards, err := v.repo.GetUserBoards(ctx, v.actor.UID)
	if err != nil {
		v.setLoading(false)
		return v.fail(err, "load boards")
	}

	if len(boards) == 0 {
		id, err := v.repo.CreateBoard(ctx, v.actor.UID, v.opts.DefaultBoardName)
		if err != nil {
			v.setLoading(false)
			return v.fail(err, "create default board")
		}
		boards = []models.Board{v.localBoard(id, v.opts.DefaultBoardName)}
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.boards = boards
	v.loading = false
	first := boards[0]
	v.selectLocked(&first)
	if v.boardSub == nil {
		v.boardSub = v.repo.SubscribeToUserBoards(v.actor.UID, v.applyBoards)
	}
	v.mu.Unlock()

	v.emit()
	return nil
}

// AddTask creates a task on the current board.
func (v *View) AddTask(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Invalidf("task text must not be empty")
	}
	board, err := v.currentID()
	if err != nil {
		return err
	}
	if _, err := v.repo.CreateTask(ctx, board, text, v.actor.UID); err != nil {
		return v.fail(err, "add task")
	}
	return nil
}

// UpdateStatus moves a task on the current board to another column.
func (v *View) UpdateStatus(ctx context.Context, taskID string, status models.Status) error {
	status, err := models.ParseStatus(string(status))
	if err != nil {
		return err
	}
	board, err := v.currentID()
	if err != nil {
		return err
	}
	if err := v.repo.UpdateTaskStatus(ctx, board, taskID, status); err != nil {
		return v.fail(err, "update task")
	}
	return nil
}

// RemoveTask deletes a task from the current board.
func (v *View) RemoveTask(ctx context.Context, taskID string) error {
	board, err := v.currentID()
	if err != nil {
		return err
	}
	if err := v.repo.DeleteTask(ctx, board, taskID); err != nil {
		return v.fail(err, "remove task")
	}
	return nil
}

// AddBoard creates a board, appends it locally and makes it current.
func (v *View) AddBoard(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Invalidf("board name must not be empty")
	}
	id, err := v.repo.CreateBoard(ctx, v.actor.UID, name)
	if err != nil {
		return v.fail(err, "add board")
	}

	board := v.localBoard(id, name)
	v.mu.Lock()
	if !slices.ContainsFunc(v.boards, func(b models.Board) bool { return b.ID == id }) {
		v.boards = append(v.boards, board)
	}
	v.selectLocked(&board)
	v.mu.Unlock()

	v.emit()
	return nil
}

// SwitchBoard makes one of the loaded boards current.
func (v *View) SwitchBoard(boardID string) error {
	v.mu.Lock()
	idx := slices.IndexFunc(v.boards, func(b models.Board) bool { return b.ID == boardID })
	if idx < 0 {
		v.mu.Unlock()
		return models.NotFoundf("board not found")
	}
	board := v.boards[idx]
	v.selectLocked(&board)
	v.mu.Unlock()

	v.emit()
	return nil
}

// RemoveBoard deletes a board the actor owns. The last remaining board
// cannot be deleted. If it was current, the first remaining board is selected.
func (v *View) RemoveBoard(ctx context.Context, boardID string) error {
	v.mu.Lock()
	count := len(v.boards)
	v.mu.Unlock()
	if count <= 1 {
		return models.Invalidf("You cannot delete your only board")
	}

	if err := v.repo.DeleteBoard(ctx, boardID, v.actor.UID); err != nil {
		return v.fail(err, "remove board")
	}

	v.mu.Lock()
	v.boards = slices.DeleteFunc(v.boards, func(b models.Board) bool { return b.ID == boardID })
	if v.current != nil && v.current.ID == boardID {
		if len(v.boards) > 0 {
			next := v.boards[0]
			v.selectLocked(&next)
		} else {
			v.selectLocked(nil)
		}
	}
	v.mu.Unlock()

	v.emit()
	return nil
}

// State returns a copy of the current view state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Close stops the live feeds. Safe to call more than once.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	taskSub, boardSub := v.taskSub, v.boardSub
	v.taskSub, v.boardSub = nil, nil
	v.mu.Unlock()

	if taskSub != nil {
		taskSub.Close()
	}
	if boardSub != nil {
		boardSub.Close()
	}
}

// selectLocked swaps the task feed to board. Updates from the previous feed
// are dropped by applyTasks, so the old subscription is closed off-lock.
func (v *View) selectLocked(board *models.Board) {
	if v.closed {
		return
	}
	if v.current != nil && board != nil && v.current.ID == board.ID && v.taskSub != nil {
		v.current = board
		return
	}

	old := v.taskSub
	v.current = board
	v.tasks = []models.Task{}
	v.taskSub = nil
	if board != nil {
		id := board.ID
		v.taskSub = v.repo.SubscribeToTasks(id, func(tasks []models.Task) {
			v.applyTasks(id, tasks)
		})
	}
	if old != nil {
		go old.Close()
	}
}

func (v *View) applyTasks(boardID string, tasks []models.Task) {
	v.mu.Lock()
	if v.closed || v.current == nil || v.current.ID != boardID {
		v.mu.Unlock()
		v.logger.Debug("dropping stale task update", "board", boardID)
		return
	}
	v.tasks = tasks
	v.mu.Unlock()
	v.emit()
}

// applyBoards merges a pushed board list. If the current board is gone (it
// was deleted or the actor was removed from it) the first board is selected.
func (v *View) applyBoards(boards []models.Board) {
	v.mu.Lock()
	if v.closed || v.loading {
		v.mu.Unlock()
		return
	}
	v.boards = boards
	switch {
	case v.current == nil && len(boards) > 0:
		first := boards[0]
		v.selectLocked(&first)
	case v.current != nil:
		idx := slices.IndexFunc(boards, func(b models.Board) bool { return b.ID == v.current.ID })
		if idx >= 0 {
			refreshed := boards[idx]
			v.current = &refreshed
		} else if len(boards) > 0 {
			first := boards[0]
			v.selectLocked(&first)
		} else {
			v.selectLocked(nil)
		}
	}
	v.mu.Unlock()
	v.emit()
}

func (v *View) currentID() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current == nil {
		return "", models.Invalidf("No board selected")
	}
	return v.current.ID, nil
}

func (v *View) setLoading(loading bool) {
	v.mu.Lock()
	v.loading = loading
	v.mu.Unlock()
	v.emit()
}

func (v *View) localBoard(id, name string) models.Board {
	return models.Board{
		ID:      id,
		Name:    name,
		Owner:   v.actor.UID,
		Members: []string{v.actor.UID},
	}
}

func (v *View) snapshotLocked() State {
	state := State{
		Boards:  slices.Clone(v.boards),
		Tasks:   slices.Clone(v.tasks),
		Loading: v.loading,
	}
	if state.Boards == nil {
		state.Boards = []models.Board{}
	}
	if v.current != nil {
		current := *v.current
		state.Current = &current
	}
	state.Columns = models.GroupByStatus(state.Tasks)
	return state
}

func (v *View) emit() {
	if v.opts.OnChange == nil {
		return
	}
	v.emitMu.Lock()
	defer v.emitMu.Unlock()
	v.opts.OnChange(v.State())
}

func (v *View) fail(err error, op string) error {
	classified := models.Classify(err)
	if models.IsTransient(classified) {
		v.logger.Error("board action failed", "op", op, "error", err)
	}
	return classified
}

package boardview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ideaboard/internal/models"
	"ideaboard/internal/storage/sqlite"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), quiet)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestView(t *testing.T, store *sqlite.Store, uid string) *View {
	t.Helper()
	ctx := context.Background()
	p := models.Principal{UID: uid, Email: uid + "@example.com", DisplayName: uid}
	if err := store.UpsertUser(ctx, p); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	v := New(store, p, quiet, Options{DefaultBoardName: "My Board"})
	t.Cleanup(v.Close)
	if err := v.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return v
}

// waitFor polls the view until cond holds or a second passes.
func waitFor(t *testing.T, v *View, what string, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		state := v.State()
		if cond(state) {
			return state
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; last state %+v", what, state)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLoadCreatesDefaultBoard(t *testing.T) {
	store := newTestStore(t)
	v := newTestView(t, store, "u1")

	state := v.State()
	if state.Loading {
		t.Error("still loading after Load")
	}
	if len(state.Boards) != 1 || state.Boards[0].Name != "My Board" {
		t.Fatalf("boards = %+v", state.Boards)
	}
	if state.Current == nil || state.Current.ID != state.Boards[0].ID {
		t.Fatalf("current = %+v", state.Current)
	}

	boards, err := store.GetUserBoards(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUserBoards: %v", err)
	}
	if len(boards) != 1 || boards[0].Owner != "u1" {
		t.Errorf("stored boards = %+v", boards)
	}
}

func TestLoadSelectsFirstExistingBoard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.UpsertUser(ctx, models.Principal{UID: "u1", Email: "u1@example.com"}); err != nil {
		t.Fatal(err)
	}
	first, err := store.CreateBoard(ctx, "u1", "First")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := store.CreateBoard(ctx, "u1", "Second"); err != nil {
		t.Fatal(err)
	}

	v := newTestView(t, store, "u1")
	state := v.State()
	if len(state.Boards) != 2 {
		t.Fatalf("boards = %+v", state.Boards)
	}
	if state.Current == nil || state.Current.ID != first {
		t.Errorf("current = %+v, want %s", state.Current, first)
	}
}

func TestTasksArriveThroughSubscription(t *testing.T) {
	store := newTestStore(t)
	v := newTestView(t, store, "u1")
	ctx := context.Background()

	if err := v.AddTask(ctx, "   "); !errors.Is(err, models.ErrInvalid) {
		t.Errorf("blank task: got %v, want ErrInvalid", err)
	}
	if err := v.AddTask(ctx, "Write docs"); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	state := waitFor(t, v, "new task", func(s State) bool { return len(s.Tasks) == 1 })
	task := state.Tasks[0]
	if task.Status != models.StatusNew || len(state.Columns[models.StatusNew]) != 1 {
		t.Errorf("task = %+v, columns = %+v", task, state.Columns)
	}

	if err := v.UpdateStatus(ctx, task.ID, models.Status("onPaused")); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	waitFor(t, v, "paused column", func(s State) bool { return len(s.Columns[models.StatusPaused]) == 1 })

	if err := v.UpdateStatus(ctx, task.ID, models.Status("archived")); !errors.Is(err, models.ErrInvalid) {
		t.Errorf("unknown status: got %v, want ErrInvalid", err)
	}

	if err := v.RemoveTask(ctx, task.ID); err != nil {
		t.Fatalf("RemoveTask: %v", err)
	}
	waitFor(t, v, "empty board", func(s State) bool { return len(s.Tasks) == 0 })
}

func TestSwitchBoardDropsStaleTasks(t *testing.T) {
	store := newTestStore(t)
	v := newTestView(t, store, "u1")
	ctx := context.Background()
	home := v.State().Current.ID

	if err := v.AddBoard(ctx, "Side project"); err != nil {
		t.Fatalf("AddBoard: %v", err)
	}
	state := v.State()
	if len(state.Boards) != 2 || state.Current == nil || state.Current.Name != "Side project" {
		t.Fatalf("after AddBoard: %+v", state)
	}
	side := state.Current.ID

	// A write to the board we just left must not show up.
	if _, err := store.CreateTask(ctx, home, "elsewhere", "u1"); err != nil {
		t.Fatal(err)
	}
	if err := v.AddTask(ctx, "here"); err != nil {
		t.Fatal(err)
	}
	state = waitFor(t, v, "side task", func(s State) bool { return len(s.Tasks) == 1 })
	if state.Tasks[0].Text != "here" || state.Tasks[0].BoardID != side {
		t.Errorf("tasks = %+v", state.Tasks)
	}

	if err := v.SwitchBoard(home); err != nil {
		t.Fatalf("SwitchBoard: %v", err)
	}
	state = waitFor(t, v, "home tasks", func(s State) bool {
		return len(s.Tasks) == 1 && s.Tasks[0].BoardID == home
	})
	if state.Current.ID != home {
		t.Errorf("current = %s, want %s", state.Current.ID, home)
	}

	if err := v.SwitchBoard("missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown board: got %v, want ErrNotFound", err)
	}

	deadline := time.Now().Add(time.Second)
	for store.Hub().Subscribers("tasks:"+side) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("previous task subscription was not closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestChangesDeliveredInOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.UpsertUser(ctx, models.Principal{UID: "u1", Email: "u1@example.com"}); err != nil {
		t.Fatal(err)
	}
	first, err := store.CreateBoard(ctx, "u1", "First")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := store.CreateBoard(ctx, "u1", "Second")
	if err != nil {
		t.Fatal(err)
	}

	var (
		mu      sync.Mutex
		last    State
		armed   atomic.Bool
		once    sync.Once
		blocked = make(chan struct{})
		release = make(chan struct{})
	)
	onChange := func(s State) {
		// Hold back the task update for the first board until the switch
		// to the second board has been requested.
		if armed.Load() && s.Current != nil && s.Current.ID == first && len(s.Tasks) == 1 {
			once.Do(func() {
				close(blocked)
				<-release
			})
		}
		mu.Lock()
		last = s
		mu.Unlock()
	}

	v := New(store, models.Principal{UID: "u1", Email: "u1@example.com"}, quiet, Options{OnChange: onChange})
	t.Cleanup(v.Close)
	if err := v.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.State().Current.ID != first {
		t.Fatalf("current = %s, want %s", v.State().Current.ID, first)
	}
	armed.Store(true)

	if _, err := store.CreateTask(ctx, first, "late update", "u1"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("task update was never delivered")
	}

	done := make(chan error, 1)
	go func() { done <- v.SwitchBoard(second) }()
	time.Sleep(20 * time.Millisecond)
	close(release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SwitchBoard: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("SwitchBoard did not return")
	}
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if last.Current == nil || last.Current.ID != second {
		t.Errorf("last delivered state is for %+v, want board %s", last.Current, second)
	}
}

func TestRemoveBoard(t *testing.T) {
	store := newTestStore(t)
	v := newTestView(t, store, "u1")
	ctx := context.Background()
	home := v.State().Current.ID

	if err := v.RemoveBoard(ctx, home); !errors.Is(err, models.ErrInvalid) {
		t.Fatalf("removing only board: got %v, want ErrInvalid", err)
	}
	if len(v.State().Boards) != 1 {
		t.Fatal("only board was removed")
	}

	if err := v.AddBoard(ctx, "Temp"); err != nil {
		t.Fatal(err)
	}
	temp := v.State().Current.ID
	if err := v.RemoveBoard(ctx, temp); err != nil {
		t.Fatalf("RemoveBoard: %v", err)
	}
	state := v.State()
	if len(state.Boards) != 1 || state.Current == nil || state.Current.ID != home {
		t.Errorf("after removal: %+v", state)
	}
	if _, err := store.GetBoard(ctx, temp); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("board still stored: %v", err)
	}
}

func TestRemovedFromCurrentBoard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := newTestView(t, store, "u1")
	guest := newTestView(t, store, "u2")
	shared := owner.State().Current.ID

	if err := store.AddMemberToBoard(ctx, shared, "u2"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, guest, "shared board", func(s State) bool { return len(s.Boards) == 2 })
	if err := guest.SwitchBoard(shared); err != nil {
		t.Fatal(err)
	}

	if err := store.RemoveMemberFromBoard(ctx, shared, "u2"); err != nil {
		t.Fatal(err)
	}
	state := waitFor(t, guest, "reselection", func(s State) bool {
		return len(s.Boards) == 1 && s.Current != nil && s.Current.ID != shared
	})
	if state.Current.Owner != "u2" {
		t.Errorf("current = %+v", state.Current)
	}
}

func TestCloseStopsUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := models.Principal{UID: "u1", Email: "u1@example.com"}
	if err := store.UpsertUser(ctx, p); err != nil {
		t.Fatal(err)
	}

	var changes atomic.Int32
	v := New(store, p, quiet, Options{OnChange: func(State) { changes.Add(1) }})
	if err := v.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if v.State().Boards[0].Name != "My Board" {
		t.Errorf("fallback board name = %q", v.State().Boards[0].Name)
	}
	board := v.State().Current.ID

	v.Close()
	v.Close()
	if n := store.Hub().Subscribers("tasks:" + board); n != 0 {
		t.Errorf("task subscribers after Close = %d", n)
	}

	before := changes.Load()
	if _, err := store.CreateTask(ctx, board, "ignored", "u1"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if changes.Load() != before {
		t.Error("closed view still received updates")
	}
}

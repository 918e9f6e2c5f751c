package models

// Status is the column a task sits in.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "inProgress"
	StatusPaused     Status = "paused"
	StatusFinished   Status = "finished"
	StatusDropped    Status = "dropped"
)

// LegacyStatusPaused is the tag older clients stored for paused tasks.
// It is accepted on input and rewritten on disk by the reconcile sweep.
const LegacyStatusPaused Status = "onPaused"

// Statuses lists the board columns in display order.
var Statuses = []Status{
	StatusNew,
	StatusInProgress,
	StatusPaused,
	StatusFinished,
	StatusDropped,
}

// Valid reports whether s is one of the five column statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusPaused, StatusFinished, StatusDropped:
		return true
	}
	return false
}

// ParseStatus converts raw input to a Status, mapping the legacy paused tag.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if s == LegacyStatusPaused {
		return StatusPaused, nil
	}
	if !s.Valid() {
		return "", Invalidf("unknown task status %q", raw)
	}
	return s, nil
}

// FilterByStatus returns the tasks in the given column, keeping arrival order.
func FilterByStatus(tasks []Task, status Status) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// GroupByStatus buckets tasks into columns. Every status has an entry.
func GroupByStatus(tasks []Task) map[Status][]Task {
	columns := make(map[Status][]Task, len(Statuses))
	for _, s := range Statuses {
		columns[s] = FilterByStatus(tasks, s)
	}
	return columns
}

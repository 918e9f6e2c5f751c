package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    Status
		wantErr bool
	}{
		{raw: "new", want: StatusNew},
		{raw: "inProgress", want: StatusInProgress},
		{raw: "paused", want: StatusPaused},
		{raw: "onPaused", want: StatusPaused},
		{raw: "finished", want: StatusFinished},
		{raw: "dropped", want: StatusDropped},
		{raw: "done", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseStatus(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("ParseStatus(%q) error = %v, want ErrInvalid", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatus(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestGroupByStatus(t *testing.T) {
	tasks := []Task{
		{ID: "a", Status: StatusNew},
		{ID: "b", Status: StatusFinished},
		{ID: "c", Status: StatusNew},
	}

	columns := GroupByStatus(tasks)
	if len(columns) != len(Statuses) {
		t.Fatalf("expected %d columns, got %d", len(Statuses), len(columns))
	}
	if got := columns[StatusNew]; len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("new column = %+v, want [a c] in arrival order", got)
	}
	if got := columns[StatusPaused]; len(got) != 0 {
		t.Errorf("paused column should be empty, got %+v", got)
	}
}

func TestClassify(t *testing.T) {
	raw := errors.New("disk I/O error")

	if err := Classify(nil); err != nil {
		t.Fatalf("Classify(nil) = %v", err)
	}

	wrapped := Classify(fmt.Errorf("insert task: %w", raw))
	if !errors.Is(wrapped, ErrTransient) {
		t.Errorf("store failure should classify as transient, got %v", wrapped)
	}
	if !errors.Is(wrapped, raw) {
		t.Errorf("transient error should keep the raw cause")
	}
	if PublicMessage(wrapped) != GenericFailureMessage {
		t.Errorf("transient message = %q", PublicMessage(wrapped))
	}

	notFound := fmt.Errorf("add member: %w", NotFoundf("board %s not found", "b1"))
	if Classify(notFound) != notFound {
		t.Errorf("classified errors must pass through unchanged")
	}
	if IsTransient(notFound) {
		t.Errorf("not found must not be transient")
	}
	if got := PublicMessage(notFound); got != "board b1 not found" {
		t.Errorf("PublicMessage = %q", got)
	}
}

func TestBoardHasMember(t *testing.T) {
	b := Board{Owner: "u1", Members: []string{"u1", "u2"}}
	if !b.HasMember("u2") {
		t.Error("expected u2 to be a member")
	}
	if b.HasMember("u3") {
		t.Error("u3 is not a member")
	}
}

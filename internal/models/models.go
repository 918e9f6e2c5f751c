package models

import (
	"slices"
	"time"
)

// Principal is the authenticated identity behind a request or live session.
type Principal struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// User is the stored profile of a registered principal.
type User struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	PhotoURL    *string   `json:"photoURL"`
	Boards      []string  `json:"boards"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Board groups tasks and the users allowed to see them.
type Board struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasMember reports whether uid is in the member list.
func (b Board) HasMember(uid string) bool {
	return slices.Contains(b.Members, uid)
}

// Task is a single card ("idea") on a board.
type Task struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"boardId"`
	Text      string    `json:"text"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy"`
}

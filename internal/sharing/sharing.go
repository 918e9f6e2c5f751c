// Package sharing implements the board membership workflow: inviting a
// registered user by email, removing members, and member search.
package sharing

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"ideaboard/internal/models"
)

// Store is the subset of the repository the workflow needs.
type Store interface {
	GetBoard(ctx context.Context, id string) (models.Board, error)
	AddMemberToBoard(ctx context.Context, boardID, userID string) error
	RemoveMemberFromBoard(ctx context.Context, boardID, userID string) error
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListUsers(ctx context.Context, limit int) ([]models.User, error)
}

// Options tunes member search.
type Options struct {
	DirectoryLimit int
	SuggestLimit   int
}

// Service runs share and removal requests on behalf of an acting principal.
type Service struct {
	store  Store
	logger *slog.Logger
	opts   Options
}

// NewService builds the workflow. Zero options fall back to 50 directory
// entries and 5 suggestions.
func NewService(store Store, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DirectoryLimit <= 0 {
		opts.DirectoryLimit = 50
	}
	if opts.SuggestLimit <= 0 {
		opts.SuggestLimit = 5
	}
	return &Service{store: store, logger: logger, opts: opts}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail trims raw and checks it has the local@domain.tld shape.
func ValidateEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", models.Invalidf("Please enter an email")
	}
	if !emailPattern.MatchString(email) {
		return "", models.Invalidf("Invalid email")
	}
	return email, nil
}

// Share adds the registered user with the given email to the board. Input is
// fully validated before any write; the actor must already be a member.
func (s *Service) Share(ctx context.Context, actor *models.Principal, boardID, email string) (models.User, error) {
	email, err := ValidateEmail(email)
	if err != nil {
		return models.User{}, err
	}
	if actor == nil || actor.UID == "" {
		return models.User{}, models.PermissionDeniedf("You must be signed in")
	}
	if boardID == "" {
		return models.User{}, models.Invalidf("No board selected")
	}

	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return models.User{}, s.fail(err, "load board", boardID)
	}
	if !board.HasMember(actor.UID) {
		return models.User{}, models.PermissionDeniedf("You are not a member of this board")
	}

	target, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return models.User{}, s.fail(err, "find user by email", boardID)
	}
	if target.UID == actor.UID {
		return models.User{}, models.Invalidf("You are already on this board")
	}
	if board.HasMember(target.UID) {
		return models.User{}, models.Invalidf("%s is already on this board", target.Email)
	}

	if err := s.store.AddMemberToBoard(ctx, boardID, target.UID); err != nil {
		return models.User{}, s.fail(err, "add member", boardID)
	}

	s.logger.Info("board shared", "board", boardID, "by", actor.UID, "with", target.UID)
	return target, nil
}

// RemoveMember takes memberID off the board and returns the refreshed member
// list. The owner may remove anyone but themselves; other members may only
// remove themselves.
func (s *Service) RemoveMember(ctx context.Context, actor *models.Principal, boardID, memberID string) ([]models.User, error) {
	if actor == nil || actor.UID == "" {
		return nil, models.PermissionDeniedf("You must be signed in")
	}

	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, s.fail(err, "load board", boardID)
	}
	if actor.UID != board.Owner && actor.UID != memberID {
		return nil, models.PermissionDeniedf("Only the board owner can remove members")
	}
	if !board.HasMember(memberID) {
		return nil, models.NotFoundf("That user is not a member of this board")
	}
	if len(board.Members) == 1 {
		return nil, models.Invalidf("A board must keep at least one member")
	}
	if memberID == board.Owner {
		return nil, models.Invalidf("The board owner cannot be removed")
	}

	if err := s.store.RemoveMemberFromBoard(ctx, boardID, memberID); err != nil {
		return nil, s.fail(err, "remove member", boardID)
	}
	s.logger.Info("board member removed", "board", boardID, "by", actor.UID, "member", memberID)

	board, err = s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, s.fail(err, "reload board", boardID)
	}
	return s.resolve(ctx, board)
}

// Members resolves the board's member ids to user records, in member order.
func (s *Service) Members(ctx context.Context, actor *models.Principal, boardID string) ([]models.User, error) {
	if actor == nil || actor.UID == "" {
		return nil, models.PermissionDeniedf("You must be signed in")
	}
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, s.fail(err, "load board", boardID)
	}
	if !board.HasMember(actor.UID) {
		return nil, models.PermissionDeniedf("You are not a member of this board")
	}
	return s.resolve(ctx, board)
}

// Directory prefetches the users offered as search suggestions.
func (s *Service) Directory(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx, s.opts.DirectoryLimit)
	if err != nil {
		return nil, s.fail(err, "load directory", "")
	}
	return users, nil
}

// Suggest matches query against a fresh directory. With a board id the
// board's current members are left out; without one only the actor is.
func (s *Service) Suggest(ctx context.Context, actor *models.Principal, boardID, query string) ([]models.User, error) {
	if actor == nil || actor.UID == "" {
		return nil, models.PermissionDeniedf("You must be signed in")
	}
	exclude := []string{actor.UID}
	if boardID != "" {
		members, err := s.Members(ctx, actor, boardID)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			exclude = append(exclude, m.UID)
		}
	}
	directory, err := s.Directory(ctx)
	if err != nil {
		return nil, err
	}
	return Match(directory, query, exclude, s.opts.SuggestLimit), nil
}

// SuggestLimit reports the configured cap on suggestions.
func (s *Service) SuggestLimit() int {
	return s.opts.SuggestLimit
}

// Match returns up to limit users whose email or display name contains query,
// ignoring case. Users listed in exclude are skipped. A blank query matches
// nothing.
func Match(directory []models.User, query string, exclude []string, limit int) []models.User {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	var out []models.User
	for _, u := range directory {
		if _, ok := skip[u.UID]; ok {
			continue
		}
		if strings.Contains(strings.ToLower(u.Email), q) || strings.Contains(strings.ToLower(u.DisplayName), q) {
			out = append(out, u)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func (s *Service) resolve(ctx context.Context, board models.Board) ([]models.User, error) {
	users, err := s.store.GetUsersByIDs(ctx, board.Members)
	if err != nil {
		return nil, s.fail(err, "resolve members", board.ID)
	}
	return users, nil
}

// fail classifies a repository error and logs the raw cause of transient ones.
func (s *Service) fail(err error, op, boardID string) error {
	classified := models.Classify(err)
	if models.IsTransient(classified) {
		s.logger.Error("sharing failed", "op", op, "board", boardID, "error", err)
	}
	return classified
}

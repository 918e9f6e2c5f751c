package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ideaboard/internal/boardview"
	"ideaboard/internal/models"
	"ideaboard/internal/sharing"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// clientMessage is a command sent by the board client. ID is echoed back on
// the reply so the client can match answers to requests.
type clientMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Text    string `json:"text,omitempty"`
	Name    string `json:"name,omitempty"`
	TaskID  string `json:"taskId,omitempty"`
	BoardID string `json:"boardId,omitempty"`
	Status  string `json:"status,omitempty"`
	Email   string `json:"email,omitempty"`
	UserID  string `json:"userId,omitempty"`
	Query   string `json:"query,omitempty"`
}

type serverMessage struct {
	Type    string           `json:"type"`
	ID      string           `json:"id,omitempty"`
	State   *boardview.State `json:"state,omitempty"`
	Error   string           `json:"error,omitempty"`
	BoardID string           `json:"boardId,omitempty"`
	User    *models.User     `json:"user,omitempty"`
	Users   []models.User    `json:"users,omitempty"`
}

// handleWebSocket upgrades the request into a live board session.
func (s *Server) handleWebSocket(c *gin.Context) {
	principal := currentPrincipal(c)
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "uid", principal.UID, "error", err)
		return
	}

	s.resolver.Resolve(c.Request.Context(), principal)
	newSession(s, conn, principal).run()
}

// session is one websocket client. A single writer goroutine owns the
// connection's write side; everything else queues messages for it.
type session struct {
	srv       *Server
	conn      *websocket.Conn
	principal models.Principal
	logger    *slog.Logger
	view      *boardview.View
	suggest   *sharing.Debouncer

	ctx    context.Context
	cancel context.CancelFunc
	send   chan serverMessage
	once   sync.Once

	mu         sync.Mutex
	state      *boardview.State
	stateReady chan struct{}
	shareTimer *time.Timer
}

func newSession(s *Server, conn *websocket.Conn, principal models.Principal) *session {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		srv:        s,
		conn:       conn,
		principal:  principal,
		logger:     s.logger.With("uid", principal.UID),
		suggest:    sharing.NewDebouncer(s.opts.SuggestDebounce),
		ctx:        ctx,
		cancel:     cancel,
		send:       make(chan serverMessage, sendBuffer),
		stateReady: make(chan struct{}, 1),
	}
	sess.view = boardview.New(s.store, principal, s.logger, boardview.Options{
		DefaultBoardName: s.opts.DefaultBoardName,
		OnChange:         sess.pushState,
	})
	return sess
}

func (ws *session) run() {
	defer ws.close()
	ws.logger.Debug("websocket session opened")

	go ws.writeLoop()
	if err := ws.view.Load(ws.ctx); err != nil {
		ws.replyError("", err)
	}
	ws.readLoop()
}

func (ws *session) close() {
	ws.once.Do(func() {
		ws.cancel()
		ws.suggest.Stop()
		ws.mu.Lock()
		if ws.shareTimer != nil {
			ws.shareTimer.Stop()
		}
		ws.mu.Unlock()
		ws.view.Close()
		ws.conn.Close()
		ws.logger.Debug("websocket session closed")
	})
}

func (ws *session) readLoop() {
	ws.conn.SetReadLimit(maxMessageSize)
	if err := ws.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	ws.conn.SetPongHandler(func(string) error {
		return ws.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		if err := ws.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			ws.replyError("", models.Invalidf("malformed message"))
			continue
		}
		ws.dispatch(msg)
	}
}

func (ws *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-ws.ctx.Done():
			return
		case <-ws.stateReady:
			ws.mu.Lock()
			state := ws.state
			ws.state = nil
			ws.mu.Unlock()
			if state != nil {
				err = ws.write(serverMessage{Type: "state", State: state})
			}
		case msg := <-ws.send:
			err = ws.write(msg)
		case <-ticker.C:
			if err = ws.conn.SetWriteDeadline(time.Now().Add(writeWait)); err == nil {
				err = ws.conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
		if err != nil {
			ws.logger.Debug("websocket write failed", "error", err)
			ws.conn.Close()
			return
		}
	}
}

func (ws *session) write(msg serverMessage) error {
	if err := ws.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.conn.WriteJSON(msg)
}

// pushState keeps only the newest snapshot; the writer sends it when free.
func (ws *session) pushState(state boardview.State) {
	ws.mu.Lock()
	ws.state = &state
	ws.mu.Unlock()
	select {
	case ws.stateReady <- struct{}{}:
	default:
	}
}

func (ws *session) reply(msg serverMessage) {
	select {
	case ws.send <- msg:
	case <-ws.ctx.Done():
	}
}

func (ws *session) replyError(id string, err error) {
	ws.reply(serverMessage{Type: "error", ID: id, Error: models.PublicMessage(models.Classify(err))})
}

func (ws *session) dispatch(msg clientMessage) {
	ctx := ws.ctx
	ack := true
	var err error

	switch msg.Type {
	case "addTask":
		err = ws.view.AddTask(ctx, msg.Text)
	case "updateStatus":
		err = ws.view.UpdateStatus(ctx, msg.TaskID, models.Status(msg.Status))
	case "removeTask":
		err = ws.view.RemoveTask(ctx, msg.TaskID)
	case "addBoard":
		err = ws.view.AddBoard(ctx, msg.Name)
	case "switchBoard":
		err = ws.view.SwitchBoard(msg.BoardID)
	case "removeBoard":
		err = ws.view.RemoveBoard(ctx, msg.BoardID)
	case "members":
		ack = false
		err = ws.sendMembers(msg.ID, ws.boardFor(msg))
	case "share":
		ack = false
		err = ws.share(msg)
	case "removeMember":
		ack = false
		err = ws.removeMember(msg)
	case "suggest":
		ws.scheduleSuggest(msg)
		return
	default:
		err = models.Invalidf("unknown message type %q", msg.Type)
	}

	if err != nil {
		ws.replyError(msg.ID, err)
		return
	}
	if ack {
		ws.reply(serverMessage{Type: "ack", ID: msg.ID})
	}
}

// boardFor returns the board a sharing command targets: the one it names,
// or the currently selected board.
func (ws *session) boardFor(msg clientMessage) string {
	if msg.BoardID != "" {
		return msg.BoardID
	}
	if current := ws.view.State().Current; current != nil {
		return current.ID
	}
	return ""
}

func (ws *session) sendMembers(id, boardID string) error {
	users, err := ws.srv.sharing.Members(ws.ctx, &ws.principal, boardID)
	if err != nil {
		return err
	}
	ws.reply(serverMessage{Type: "members", ID: id, BoardID: boardID, Users: users})
	return nil
}

// share adds a member and, after the configured delay, tells the client the
// share dialog can close.
func (ws *session) share(msg clientMessage) error {
	boardID := ws.boardFor(msg)
	user, err := ws.srv.sharing.Share(ws.ctx, &ws.principal, boardID, msg.Email)
	if err != nil {
		return err
	}
	ws.reply(serverMessage{Type: "shared", ID: msg.ID, BoardID: boardID, User: &user})

	ws.mu.Lock()
	if ws.shareTimer != nil {
		ws.shareTimer.Stop()
	}
	ws.shareTimer = time.AfterFunc(ws.srv.opts.ShareCloseDelay, func() {
		ws.reply(serverMessage{Type: "shareClosed", ID: msg.ID, BoardID: boardID})
	})
	ws.mu.Unlock()
	return nil
}

func (ws *session) removeMember(msg clientMessage) error {
	boardID := ws.boardFor(msg)
	users, err := ws.srv.sharing.RemoveMember(ws.ctx, &ws.principal, boardID, msg.UserID)
	if err != nil {
		return err
	}
	ws.reply(serverMessage{Type: "members", ID: msg.ID, BoardID: boardID, Users: users})
	return nil
}

// scheduleSuggest answers only the last of a burst of keystrokes.
func (ws *session) scheduleSuggest(msg clientMessage) {
	boardID := ws.boardFor(msg)
	ws.suggest.Trigger(func() {
		users, err := ws.srv.sharing.Suggest(ws.ctx, &ws.principal, boardID, msg.Query)
		if err != nil {
			ws.replyError(msg.ID, err)
			return
		}
		ws.reply(serverMessage{Type: "suggestions", ID: msg.ID, BoardID: boardID, Users: users})
	})
}

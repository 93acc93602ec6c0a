package deriv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNoToken is returned by calls that need an authorized session.
var ErrNoToken = errors.New("deriv: api token missing")

// APIError is an error object returned by the Deriv API.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	MsgType string `json:"-"`
}

func (e *APIError) Error() string {
	if e.MsgType != "" {
		return fmt.Sprintf("deriv %s: %s (%s)", e.MsgType, e.Message, e.Code)
	}
	return fmt.Sprintf("deriv: %s (%s)", e.Message, e.Code)
}

// envelope is the common part of every response.
type envelope struct {
	MsgType string    `json:"msg_type"`
	ReqID   int64     `json:"req_id"`
	Error   *APIError `json:"error"`
}

// Session is one open connection. Calls are serialized.
type Session struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	nextID atomic.Int64
	closed atomic.Bool
}

func newSession(conn *websocket.Conn) *Session {
	s := &Session{conn: conn}
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})
	return s
}

// Close sends a normal closure and closes the connection.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = s.conn.Close()
}

// Call sends req (with a fresh req_id) and decodes the matching response
// into out. Responses with other req_ids are skipped.
func (s *Session) Call(ctx context.Context, req map[string]any, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID.Add(1)
	req["req_id"] = id

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	_ = s.conn.SetWriteDeadline(deadline)
	_ = s.conn.SetReadDeadline(deadline)

	// unblock a pending read when the caller gives up early
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("deriv: write: %w", err)
	}

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("deriv: read: %w", err)
		}
		var env envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			return fmt.Errorf("deriv: decode: %w", err)
		}
		if env.ReqID != id {
			continue
		}
		if env.Error != nil {
			env.Error.MsgType = env.MsgType
			return env.Error
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(msg, out); err != nil {
			return fmt.Errorf("deriv: decode %s: %w", env.MsgType, err)
		}
		return nil
	}
}

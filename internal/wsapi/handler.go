// Package wsapi serves one quiz session over a websocket: intents arrive
// as JSON messages and every resulting view is pushed back as JSON.
package wsapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-quiz/internal/session"
)

const readLimit = 4096

// Message types pushed to the client.
const (
	TypeView  = "view"
	TypeError = "error"
)

// Message is one server-to-client frame.
type Message struct {
	Type  string        `json:"type"`
	View  *session.View `json:"view,omitempty"`
	Error string        `json:"error,omitempty"`
}

// ControllerFunc builds the controller for a new connection. Each call
// resumes from whatever the store holds.
type ControllerFunc func(ctx context.Context) *session.Controller

// Handler upgrades requests to websockets. Only one connection is served
// at a time; others get 409 Conflict.
type Handler struct {
	newController  ControllerFunc
	originPatterns []string
	busy           atomic.Bool
}

// NewHandler creates a websocket handler. originPatterns is passed to
// websocket.AcceptOptions for cross-origin browsers.
func NewHandler(newController ControllerFunc, originPatterns ...string) *Handler {
	return &Handler{
		newController:  newController,
		originPatterns: originPatterns,
	}
}

// Busy reports whether a session connection is open.
func (h *Handler) Busy() bool {
	return h.busy.Load()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.busy.CompareAndSwap(false, true) {
		http.Error(w, "session already in use", http.StatusConflict)
		return
	}
	defer h.busy.Store(false)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(readLimit)
	slog.Info("websocket session opened", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	intents := make(chan session.Intent)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		readIntents(ctx, conn, intents)
	}()

	c := h.newController(ctx)
	c.Run(ctx, intents, func(v session.View) {
		if err := wsjson.Write(ctx, conn, Message{Type: TypeView, View: &v}); err != nil {
			slog.Debug("websocket write failed", "error", err)
			cancel()
		}
	})

	conn.Close(websocket.StatusNormalClosure, "session ended")
	cancel()
	wg.Wait()
	slog.Info("websocket session closed", "remote", r.RemoteAddr)
}

// readIntents forwards decoded intents until the connection or ctx ends,
// then closes out.
func readIntents(ctx context.Context, conn *websocket.Conn, out chan<- session.Intent) {
	defer close(out)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
				slog.Debug("websocket read failed", "error", err)
			}
			return
		}

		var in session.Intent
		if err := json.Unmarshal(data, &in); err != nil || in.Action == "" {
			msg := "intent must be a JSON object with an action"
			if werr := wsjson.Write(ctx, conn, Message{Type: TypeError, Error: msg}); werr != nil {
				return
			}
			continue
		}

		select {
		case out <- in:
		case <-ctx.Done():
			return
		}
	}
}
